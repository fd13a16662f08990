package api

import (
	"net/http"
	"time"
)

// tokenResponse is the body returned by POST /auth/token.
type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
	Role        string    `json:"role"`
}

// handleIssueToken exchanges the caller's credentials for a bearer token
// carrying the same role.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	token, expiresAt, err := s.auth.IssueToken(id)
	if err != nil {
		s.logger.Error("issuing access token", "username", id.Username, "error", err)
		writeInternalError(w, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(expiresAt).Seconds()),
		ExpiresAt:   expiresAt.UTC(),
		Role:        string(id.Role),
	})
}
