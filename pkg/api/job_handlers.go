package api

import (
	"net/http"
	"time"

	"github.com/genbaworks/tally/pkg/httputil"
)

// runEnforcer triggers a seat enforcement sweep. The optional date field
// overrides "today", mostly for backfills and tests.
func (s *Server) runEnforcer(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.ContentLength > 0 && !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	today, err := parseDate(req.Date, time.Now())
	if err != nil {
		httputil.WriteValidationError(w, "date must be YYYY-MM-DD")
		return
	}

	result, err := s.enforcer.Run(r.Context(), today)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.logger.WithFields(map[string]interface{}{
		"scanned":     result.Scanned,
		"processed":   result.Processed,
		"deactivated": result.Deactivated,
		"errors":      len(result.Errors),
	}).Info("enforcement sweep finished")

	httputil.WriteJSONOrError(w, http.StatusOK, result, "failed to encode sweep result")
}

// runBilling triggers a recurring billing run for the given date
func (s *Server) runBilling(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.ContentLength > 0 && !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	asOf, err := parseDate(req.Date, time.Now())
	if err != nil {
		httputil.WriteValidationError(w, "date must be YYYY-MM-DD")
		return
	}

	result, err := s.lifecycle.RunRecurringBilling(r.Context(), asOf)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.logger.WithFields(map[string]interface{}{
		"due":     result.Due,
		"issued":  result.Issued,
		"skipped": result.Skipped,
		"errors":  len(result.Errors),
	}).Info("billing run finished")

	httputil.WriteJSONOrError(w, http.StatusOK, result, "failed to encode billing run result")
}
