// Package httputil holds the JSON plumbing shared by the admin trigger
// surface and the public entitlement endpoint.
//
// # Request Parsing
//
// JSON bodies:
//
//	var req contracts.CreateContractRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // 400 already written
//	}
//
// Route and query parameters:
//
//	contractID, ok := httputil.ParsePathInt64OrError(w, r, "contractID")
//	docType := httputil.ParseQueryString(r, "type", "")
//	limit, err := httputil.ParseQueryInt(r, "limit", 0)
//
// # Responses
//
//	httputil.WriteJSONOrError(w, http.StatusOK, contract, "failed to encode contract")
//	httputil.WriteValidationError(w, "package_ids is required")
//	httputil.WriteConflict(w, "contract 42 is not a draft")
//	httputil.WriteNoContent(w)
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// Authentication and rate limiting for the admin surface live in
// pkg/middleware.
package httputil
