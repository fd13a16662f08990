package api

import "net/http"

// handleDashboard returns the aggregate view for the caller's role.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	v, err := s.composer.Compose(identityFrom(r.Context()))
	if err != nil {
		// Compose only fails for callers the router should already have
		// rejected.
		writeUnauthorized(w, s.realm, msgNotAuthorized)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
