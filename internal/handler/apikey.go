package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keygate/keygate/internal/model"
	"github.com/keygate/keygate/internal/server/middleware"
	"github.com/keygate/keygate/internal/service"
)

// APIKeyHandler serves the API key management endpoints. Every operation is
// scoped to the authenticated principal: users manage only their own keys.
type APIKeyHandler struct {
	keys *service.APIKeyService
}

// NewAPIKeyHandler creates an APIKeyHandler.
func NewAPIKeyHandler(keys *service.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{keys: keys}
}

// List returns the caller's active API keys, without hashes or raw values.
// GET /api/v1/api-keys
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	keys, err := h.keys.List(r.Context(), principal.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: keys,
		Meta:     &model.ResponseMeta{Count: len(keys)},
	})
}

// createKeyRequest is the expected payload for Create.
type createKeyRequest struct {
	Name          string `json:"name"`
	ExpiresInDays *int   `json:"expires_in_days,omitempty"`
}

// createKeyResponse includes the plaintext key. This is the only response
// that ever carries it.
type createKeyResponse struct {
	ID        int64      `json:"id"`
	Key       string     `json:"key"`
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	Warning   string     `json:"warning"`
}

// Create generates a new API key for the caller and returns the plaintext
// value exactly once.
// POST /api/v1/api-keys
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req createKeyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Key name is required")
		return
	}

	created, err := h.keys.Create(r.Context(), principal.ID, req.Name, req.ExpiresInDays)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createKeyResponse{
		ID:        created.ID,
		Key:       created.Key,
		Name:      created.Name,
		ExpiresAt: created.ExpiresAt,
		CreatedAt: created.CreatedAt,
		Warning:   "Store this key now. It cannot be retrieved again.",
	})
}

// revokeRequest is the expected payload for Revoke.
type revokeRequest struct {
	Key string `json:"key"`
}

// Revoke deactivates a key identified by its raw value. Revocation is
// irreversible and idempotent.
// POST /api/v1/api-keys/revoke
func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req revokeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	if _, err := h.keys.Revoke(r.Context(), req.Key, principal.ID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "API key revoked",
	})
}

// RevokeByID deactivates a key by ID.
// DELETE /api/v1/api-keys/{keyId}
func (h *APIKeyHandler) RevokeByID(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	keyID, ok := keyIDParam(w, r)
	if !ok {
		return
	}

	if _, err := h.keys.RevokeByID(r.Context(), keyID, principal.ID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "API key revoked",
	})
}

// Delete permanently removes a key record.
// DELETE /api/v1/api-keys/{keyId}/purge
func (h *APIKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	keyID, ok := keyIDParam(w, r)
	if !ok {
		return
	}

	if _, err := h.keys.Delete(r.Context(), keyID, principal.ID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "API key deleted",
	})
}

func keyIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "keyId")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid key ID: "+idStr)
		return 0, false
	}
	return id, true
}
