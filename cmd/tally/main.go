package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/genbaworks/tally/pkg/accounts"
	"github.com/genbaworks/tally/pkg/api"
	"github.com/genbaworks/tally/pkg/audit"
	"github.com/genbaworks/tally/pkg/bizday"
	"github.com/genbaworks/tally/pkg/config"
	"github.com/genbaworks/tally/pkg/contracts"
	"github.com/genbaworks/tally/pkg/documents"
	"github.com/genbaworks/tally/pkg/enforcer"
	"github.com/genbaworks/tally/pkg/entitlement"
	"github.com/genbaworks/tally/pkg/ledger"
	"github.com/genbaworks/tally/pkg/lifecycle"
	"github.com/genbaworks/tally/pkg/middleware"
	"github.com/genbaworks/tally/pkg/notify"
	"github.com/genbaworks/tally/pkg/observability"
	"github.com/genbaworks/tally/pkg/orgs"
)

const memoryCacheEntries = 4096

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(observability.ParseLevel(cfg.Observability.LogLevel), os.Stdout)
	domainLog := newDomainLogger(cfg)

	// Database
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Info("Connected to PostgreSQL")

	// Redis is optional: without it the entitlement cache is in-process
	// and rate limiting is per-instance.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		logger.WithField("addr", cfg.Redis.Addr).Info("Connected to Redis")
	}

	// Stores
	contractSvc := contracts.NewPostgresService(db)
	documentSvc := documents.NewPostgresService(db)
	accountSvc := accounts.NewPostgresService(db)
	orgSvc := orgs.NewPostgresService(db)
	auditLogger, err := audit.NewDBLogger(db)
	if err != nil {
		log.Fatalf("Failed to initialize audit logger: %v", err)
	}

	// External providers
	var ledgerProvider ledger.Provider
	if cfg.Ledger.BaseURL != "" {
		ledgerProvider = ledger.NewRESTProvider(cfg.Ledger.BaseURL, cfg.Ledger.APIKey, domainLog)
	} else {
		logger.Warn("No ledger URL configured, using in-memory fake ledger")
		ledgerProvider = ledger.NewFake()
	}
	var provisioner accounts.Provisioner
	if cfg.Auth.BaseURL != "" {
		provisioner = accounts.NewRESTProvisioner(cfg.Auth.BaseURL, cfg.Auth.APIKey)
	} else {
		logger.Warn("No auth URL configured, minting local identities")
		provisioner = &accounts.LocalProvisioner{}
	}

	// Business-day calendar
	var holidaySource bizday.HolidaySource
	if cfg.Billing.HolidayFile != "" {
		fileSource, err := bizday.NewFileSource(cfg.Billing.HolidayFile)
		if err != nil {
			log.Fatalf("Failed to load holiday calendar: %v", err)
		}
		stop := make(chan struct{})
		go fileSource.Watch(stop, domainLog)
		defer close(stop)
		holidaySource = bizday.NewDailyCache(fileSource)
	}
	calendar := bizday.NewCalendar(holidaySource)

	// Entitlement resolver with snapshot cache
	var snapshotCache entitlement.SnapshotCache
	if redisClient != nil {
		snapshotCache = entitlement.NewRedisCache(redisClient, cfg.Redis.CacheTTL)
	} else {
		snapshotCache = entitlement.NewMemoryCache(memoryCacheEntries, cfg.Redis.CacheTTL)
	}
	resolver := entitlement.NewResolver(contractSvc, orgSvc, snapshotCache)

	var notifier notify.Notifier
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.WebhookSecret, notify.DefaultWebhookRetryConfig())
	} else {
		notifier = notify.NewLogNotifier(domainLog)
	}
	controller := lifecycle.NewController(
		contractSvc,
		documentSvc,
		ledgerProvider,
		accountSvc,
		provisioner,
		notifier,
		auditLogger,
		calendar,
		resolver,
		domainLog,
		lifecycle.Config{
			TaxRatePercent:  cfg.Billing.TaxRatePercent,
			GracePeriodDays: cfg.Billing.GracePeriodDays,
		},
	)
	seatEnforcer := enforcer.New(contractSvc, accountSvc, notifier, auditLogger, domainLog)

	apiServer := api.NewServer(api.Config{
		Contracts:  contractSvc,
		Documents:  documentSvc,
		Lifecycle:  controller,
		Enforcer:   seatEnforcer,
		Resolver:   resolver,
		Flags:      orgSvc,
		AdminToken: cfg.Server.AdminToken,
		Logger:     logger,
	})

	handler := apiServer.Handler()
	if redisClient != nil {
		handler = middleware.NewDistributedRateLimitMiddleware(
			redisClient, middleware.DefaultRateLimitConfig()).Handler(handler)
	}

	// Health and metrics on a separate port for probes
	healthMux := http.NewServeMux()
	checker := observability.NewHealthChecker(db, redisClient)
	checker.SetVersion(cfg.Observability.OTelServiceVersion)
	observability.RegisterHealthRoutes(healthMux, checker)
	if cfg.Observability.MetricsEnabled {
		registry := prometheus.NewRegistry()
		metrics := observability.NewMetrics(registry)
		observability.RegisterMetricsEndpoint(healthMux, registry)
		handler = observability.HTTPMetricsMiddleware(metrics)(handler)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Resources release in reverse registration order: the health server
	// stops first, the database closes last.
	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return db.Close()
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return redisClient.Close()
		})
	}

	if cfg.Observability.OTelEnabled {
		providers, err := observability.InitOTel(context.Background(), observability.OTelConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, logger)
		if err != nil {
			log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
		}
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return providers.Shutdown(ctx, logger)
		})
	}
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Health server failed")
		}
	}()
	go func() {
		logger.WithField("addr", server.Addr).Info("Billing engine listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		log.Fatalf("Shutdown failed: %v", err)
	}
	logger.Info("Shutdown complete")
}

// newDomainLogger builds the logrus logger shared by the billing packages
func newDomainLogger(cfg *config.Config) *logrus.Logger {
	l := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.Observability.LogLevel); err == nil {
		l.SetLevel(lvl)
	}
	if cfg.Observability.LogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return l
}
