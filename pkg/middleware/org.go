package middleware

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/genbaworks/tally/pkg/observability"
)

// OrgContextMiddleware extracts the {orgID} path variable and stores it in
// the request context so handlers and log lines carry the organization.
// Requests without the variable pass through unchanged.
func OrgContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		raw, ok := vars["orgID"]
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		orgID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || orgID <= 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid organization ID"}`))
			return
		}

		ctx := observability.WithOrgID(r.Context(), orgID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
