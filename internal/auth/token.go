package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/keygate/keygate/internal/model"
)

// RefreshTokenType is the token_type claim value carried by refresh tokens.
// Access tokens carry no token_type claim.
const RefreshTokenType = "refresh"

var (
	// ErrTokenExpired is returned when a token's signature is valid but its
	// expiry has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for every other verification failure:
	// wrong secret, malformed token, unexpected signing algorithm.
	ErrTokenInvalid = errors.New("invalid token")
)

// TokenConfig holds the signing secret and algorithm. Both come from
// configuration, never from hard-coded values.
type TokenConfig struct {
	Secret    string
	Algorithm string // HS256, HS384, or HS512
}

// AccessClaims is the typed claim set of an access token.
type AccessClaims struct {
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims is the typed claim set of a refresh token. It carries only
// the subject and a token_type discriminator.
type RefreshClaims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenIssuer creates and verifies HMAC-signed access and refresh tokens.
// Tokens are stateless: their authority derives entirely from signature and
// expiry, and there is no server-side revocation list.
type TokenIssuer struct {
	secret []byte
	method jwt.SigningMethod

	// now is the clock used for both issuance and expiry validation.
	// Tests override it to simulate the passage of time.
	now func() time.Time
}

// NewTokenIssuer creates a TokenIssuer from config. Only symmetric HMAC
// algorithms are supported.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret must not be empty")
	}

	var method jwt.SigningMethod
	switch cfg.Algorithm {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}

	return &TokenIssuer{
		secret: []byte(cfg.Secret),
		method: method,
		now:    time.Now,
	}, nil
}

// CreateAccessToken mints an access token for the given principal.
func (t *TokenIssuer) CreateAccessToken(p model.Principal, ttl time.Duration) (string, error) {
	now := t.now()
	claims := AccessClaims{
		Username: p.Username,
		Email:    p.Email,
		Role:     p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(t.method, claims).SignedString(t.secret)
}

// CreateRefreshToken mints a refresh token for the given user ID.
func (t *TokenIssuer) CreateRefreshToken(userID int64, ttl time.Duration) (string, error) {
	now := t.now()
	claims := RefreshClaims{
		TokenType: RefreshTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(t.method, claims).SignedString(t.secret)
}

// VerifyAccess verifies the signature and expiry of an access token and
// returns its claims.
func (t *TokenIssuer) VerifyAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := t.verify(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefresh verifies the signature and expiry of a refresh token and
// returns its claims. Callers must additionally check TokenType: an access
// token also passes signature verification here.
func (t *TokenIssuer) VerifyRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := t.verify(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (t *TokenIssuer) verify(token string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(tok *jwt.Token) (interface{}, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
			}
			return t.secret, nil
		},
		jwt.WithValidMethods([]string{t.method.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}
	if !parsed.Valid {
		return ErrTokenInvalid
	}
	return nil
}

// DecodeUnverified extracts a token's claims WITHOUT checking the signature.
// The result carries no authority and must never feed an authorization
// decision; it exists for diagnostics only. Returns an empty map for
// tokens that cannot be parsed at all.
func (t *TokenIssuer) DecodeUnverified(token string) map[string]interface{} {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return map[string]interface{}{}
	}
	return claims
}

// Subject parses the numeric user ID out of a subject claim. Returns an
// error when the claim is absent or not a valid ID.
func Subject(sub string) (int64, error) {
	if sub == "" {
		return 0, errors.New("empty subject")
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse subject: %w", err)
	}
	return id, nil
}
