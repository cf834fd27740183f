package api

import (
	"errors"
	"net/http"

	"github.com/genbaworks/tally/pkg/accounts"
	"github.com/genbaworks/tally/pkg/contracts"
	"github.com/genbaworks/tally/pkg/documents"
	"github.com/genbaworks/tally/pkg/httputil"
	"github.com/genbaworks/tally/pkg/orgs"
)

// writeDomainError maps domain errors onto HTTP status codes. Anything
// unrecognized is a 500 with the message suppressed.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, contracts.ErrNotFound),
		errors.Is(err, documents.ErrNotFound),
		errors.Is(err, accounts.ErrNotFound),
		errors.Is(err, orgs.ErrNotFound):
		httputil.WriteNotFoundError(w, err.Error())
	case contracts.IsValidationError(err):
		httputil.WriteValidationError(w, err.Error())
	case contracts.IsPolicyViolationError(err), documents.IsInvalidTransitionError(err):
		httputil.WriteConflict(w, err.Error())
	case contracts.IsExternalProviderError(err):
		s.logger.WithError(err).Error("ledger provider failure")
		httputil.WriteErrorMessage(w, http.StatusBadGateway, "ledger provider unavailable")
	default:
		s.logger.WithError(err).Error("unhandled error")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}
