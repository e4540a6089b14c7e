package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/keygate/keygate/internal/model"
	"github.com/keygate/keygate/internal/store"
)

// UserHandler serves the admin-only user administration endpoints.
type UserHandler struct {
	store *store.Store
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(s *store.Store) *UserHandler {
	return &UserHandler{store: s}
}

// List returns all user accounts as principals.
// GET /api/v1/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users: "+err.Error())
		return
	}

	principals := make([]model.Principal, len(users))
	for i := range users {
		principals[i] = users[i].Principal()
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: principals,
		Meta:     &model.ResponseMeta{Count: len(principals)},
	})
}

// Get returns a single user by ID.
// GET /api/v1/users/{userId}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	user, err := h.store.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get user: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, user.Principal())
}

// updateUserRequest is the expected payload for Update. Pointer fields
// distinguish "not provided" from zero values.
type updateUserRequest struct {
	Role     *model.Role `json:"role,omitempty"`
	IsActive *bool       `json:"is_active,omitempty"`
}

// Update changes a user's role or active flag. Deactivating a user
// invalidates all of their credentials at resolution time: both token and
// API key paths reject inactive users.
// PATCH /api/v1/users/{userId}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	user, err := h.store.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get user: "+err.Error())
		return
	}

	var req updateUserRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Role != nil {
		if *req.Role != model.RoleUser && *req.Role != model.RoleAdmin {
			writeError(w, http.StatusBadRequest, "Invalid role: "+string(*req.Role))
			return
		}
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := h.store.UpdateUser(r.Context(), user); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update user: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, user.Principal())
}

func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "userId")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID: "+idStr)
		return 0, false
	}
	return id, true
}
