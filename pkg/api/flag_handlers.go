package api

import (
	"net/http"

	"github.com/genbaworks/tally/pkg/httputil"
)

// listOrgFlags returns the explicit feature flag grants for an organization
func (s *Server) listOrgFlags(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "orgID")
	if !ok {
		return
	}

	flags, err := s.flags.ListFeatureFlags(orgID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	httputil.WriteJSONOrError(w, http.StatusOK, map[string]interface{}{
		"org_id": orgID,
		"flags":  flags,
	}, "failed to encode feature flags")
}

// grantOrgFlag grants an explicit feature flag and evicts the cached
// entitlement snapshot so the grant is visible immediately
func (s *Server) grantOrgFlag(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "orgID")
	if !ok {
		return
	}

	var req grantFlagRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Flag, "flag") {
		return
	}

	if err := s.flags.GrantFeatureFlag(orgID, req.Flag, actor(r)); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.resolver.Invalidate(r.Context(), orgID)

	s.logger.WithFields(map[string]interface{}{
		"org_id": orgID,
		"flag":   req.Flag,
	}).Info("feature flag granted")
	httputil.WriteNoContent(w)
}

// revokeOrgFlag removes a feature flag grant
func (s *Server) revokeOrgFlag(w http.ResponseWriter, r *http.Request) {
	orgID, ok := httputil.ParsePathInt64OrError(w, r, "orgID")
	if !ok {
		return
	}
	flag, ok := httputil.ParsePathStringOrError(w, r, "flag")
	if !ok {
		return
	}

	revoked, err := s.flags.RevokeFeatureFlag(orgID, flag)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if !revoked {
		httputil.WriteNotFoundError(w, "flag grant not found")
		return
	}
	s.resolver.Invalidate(r.Context(), orgID)

	s.logger.WithFields(map[string]interface{}{
		"org_id": orgID,
		"flag":   flag,
	}).Info("feature flag revoked")
	httputil.WriteNoContent(w)
}
