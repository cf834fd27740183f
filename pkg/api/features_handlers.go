package api

import (
	"net/http"

	"github.com/genbaworks/tally/pkg/httputil"
)

// getOrgFeatures returns the entitlement snapshot for an organization.
// Organizations without an active contract get an empty package set, not
// a 404: absence of entitlements is a valid answer.
func (s *Server) getOrgFeatures(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "orgID")
	if !ok {
		return
	}

	state, err := s.resolver.Resolve(r.Context(), orgID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	httputil.WriteJSONOrError(w, http.StatusOK, state, "failed to encode feature state")
}
