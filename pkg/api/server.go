package api

import (
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/genbaworks/tally/pkg/contracts"
	"github.com/genbaworks/tally/pkg/documents"
	"github.com/genbaworks/tally/pkg/httputil"
	"github.com/genbaworks/tally/pkg/middleware"
	"github.com/genbaworks/tally/pkg/observability"
)

// Server is the HTTP front for the billing engine: the admin trigger
// surface plus the public entitlement endpoint.
type Server struct {
	router    *mux.Router
	logger    *observability.Logger
	contracts contracts.Service
	documents documents.Service
	lifecycle Lifecycle
	enforcer  EnforcerRunner
	resolver  FeatureResolver
	flags     FlagStore

	adminAuth *middleware.AdminAuthMiddleware
	limiter   *middleware.RateLimitMiddleware
}

// Config collects the server's collaborators
type Config struct {
	Contracts  contracts.Service
	Documents  documents.Service
	Lifecycle  Lifecycle
	Enforcer   EnforcerRunner
	Resolver   FeatureResolver
	Flags      FlagStore
	AdminToken string
	Logger     *observability.Logger

	// RateLimit overrides the admin surface rate limit; nil uses
	// middleware.AdminRateLimitConfig.
	RateLimit *middleware.RateLimitConfig
}

// NewServer creates a new API server
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, os.Stdout)
	}

	limitCfg := cfg.RateLimit
	if limitCfg == nil {
		limitCfg = middleware.AdminRateLimitConfig()
	}

	s := &Server{
		router:    mux.NewRouter(),
		logger:    logger,
		contracts: cfg.Contracts,
		documents: cfg.Documents,
		lifecycle: cfg.Lifecycle,
		enforcer:  cfg.Enforcer,
		resolver:  cfg.Resolver,
		flags:     cfg.Flags,
		adminAuth: middleware.NewAdminAuthMiddleware(cfg.AdminToken),
		limiter:   middleware.NewRateLimitMiddleware(limitCfg),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	// Public entitlement endpoint
	features := s.router.PathPrefix("/orgs").Subrouter()
	features.Use(middleware.OrgContextMiddleware)
	features.HandleFunc("/{orgID}/features", s.getOrgFeatures).Methods("GET")

	// Admin trigger surface
	admin := s.router.PathPrefix("/admin").Subrouter()
	admin.Use(s.adminAuth.Handler)
	admin.Use(s.limiter.Handler)

	// Contract lifecycle
	admin.HandleFunc("/contracts", s.createContract).Methods("POST")
	admin.HandleFunc("/contracts/{contractID}", s.getContract).Methods("GET")
	admin.HandleFunc("/contracts/{contractID}/complete", s.completeContract).Methods("POST")
	admin.HandleFunc("/contracts/{contractID}/cancel", s.cancelContract).Methods("POST")

	// Estimate and invoice flow
	admin.HandleFunc("/contracts/{contractID}/estimate", s.generateEstimate).Methods("POST")
	admin.HandleFunc("/contracts/{contractID}/estimate/send", s.markEstimateSent).Methods("POST")
	admin.HandleFunc("/contracts/{contractID}/estimate/reject", s.rejectEstimate).Methods("POST")
	admin.HandleFunc("/contracts/{contractID}/estimate/regenerate", s.regenerateEstimate).Methods("POST")
	admin.HandleFunc("/contracts/{contractID}/estimate/convert", s.convertEstimate).Methods("POST")
	admin.HandleFunc("/contracts/{contractID}/documents", s.listDocuments).Methods("GET")
	admin.HandleFunc("/documents/{documentID}/paid", s.recordInvoicePaid).Methods("POST")

	// Plan changes
	admin.HandleFunc("/contracts/{contractID}/plan-change/preview", s.previewPlanChange).Methods("POST")
	admin.HandleFunc("/contracts/{contractID}/plan-change", s.changePlan).Methods("POST")

	// Feature flag grants
	admin.HandleFunc("/orgs/{orgID}/flags", s.listOrgFlags).Methods("GET")
	admin.HandleFunc("/orgs/{orgID}/flags", s.grantOrgFlag).Methods("POST")
	admin.HandleFunc("/orgs/{orgID}/flags/{flag}", s.revokeOrgFlag).Methods("DELETE")

	// Batch jobs
	admin.HandleFunc("/enforcer/run", s.runEnforcer).Methods("POST")
	admin.HandleFunc("/billing/run", s.runBilling).Methods("POST")
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware(s.logger),
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(1<<20),
	)
	return chain(s.router)
}

// Router exposes the raw router, mostly for tests
func (s *Server) Router() *mux.Router {
	return s.router
}

// actor labels audit trail entries for a request. Falls back to "admin"
// when the caller does not identify itself.
func actor(r *http.Request) string {
	if a := r.Header.Get("X-Actor"); a != "" {
		return a
	}
	return "admin"
}

// parseDate reads a YYYY-MM-DD value, defaulting to now when empty
func parseDate(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return now, nil
	}
	return time.Parse("2006-01-02", value)
}
