package httpapi

import (
	"net/http"
	"strings"
	"time"

	"meridian.org/internal/auth"
	"meridian.org/internal/authz"
)

type tokenRequest struct {
	PrincipalID string `json:"principal_id"`
	Role        string `json:"role"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

const tokenTTL = 15 * time.Minute

// handleAuthToken mints short-lived development tokens. Production callers
// arrive with tokens from the identity provider instead.
func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	principalID := strings.TrimSpace(req.PrincipalID)
	if principalID == "" {
		writeError(w, r, http.StatusBadRequest, "principal_id is required")
		return
	}
	role, err := authz.ParseRole(req.Role)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "unknown role")
		return
	}

	token, err := auth.GenerateToken(principalID, role, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	expiresAt := time.Now().UTC().Add(tokenTTL)
	a.audit(r.Context(), "auth.token.issued", map[string]any{
		"principal_id": principalID,
		"role":         string(role),
		"expires_at":   expiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

type whoamiResponse struct {
	PrincipalID string    `json:"principal_id"`
	Role        string    `json:"role"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// handleAuthWhoami echoes the resolved principal and how long the presented
// token remains valid.
func (a *API) handleAuthWhoami(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	token, ok := auth.TokenFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	expiresAt, err := auth.TokenExpiry(token)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid token")
		return
	}

	writeJSON(w, http.StatusOK, whoamiResponse{
		PrincipalID: principal.ID,
		Role:        string(principal.Role),
		ExpiresAt:   expiresAt.UTC(),
	})
}
