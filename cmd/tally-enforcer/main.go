package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/genbaworks/tally/pkg/accounts"
	"github.com/genbaworks/tally/pkg/audit"
	"github.com/genbaworks/tally/pkg/bizday"
	"github.com/genbaworks/tally/pkg/config"
	"github.com/genbaworks/tally/pkg/contracts"
	"github.com/genbaworks/tally/pkg/documents"
	"github.com/genbaworks/tally/pkg/enforcer"
	"github.com/genbaworks/tally/pkg/ledger"
	"github.com/genbaworks/tally/pkg/lifecycle"
	"github.com/genbaworks/tally/pkg/notify"
)

func main() {
	// Parse command line flags
	runOnce := flag.Bool("run-once", false, "Run the enforcement sweep and billing run once, then exit")
	dateStr := flag.String("date", "", "Date to process in run-once mode (YYYY-MM-DD, defaults to today)")
	skipBilling := flag.Bool("skip-billing", false, "Skip the recurring billing job")
	skipEnforcer := flag.Bool("skip-enforcer", false, "Skip the seat enforcement sweep")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	domainLog := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.Observability.LogLevel); err == nil {
		domainLog.SetLevel(lvl)
	}
	if cfg.Observability.LogFormat == "json" {
		domainLog.SetFormatter(&logrus.JSONFormatter{})
	}

	// Connect to database
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	contractSvc := contracts.NewPostgresService(db)
	documentSvc := documents.NewPostgresService(db)
	accountSvc := accounts.NewPostgresService(db)
	auditLogger, err := audit.NewDBLogger(db)
	if err != nil {
		log.Fatalf("Failed to initialize audit logger: %v", err)
	}
	var notifier notify.Notifier
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.WebhookSecret, notify.DefaultWebhookRetryConfig())
	} else {
		notifier = notify.NewLogNotifier(domainLog)
	}

	var ledgerProvider ledger.Provider
	if cfg.Ledger.BaseURL != "" {
		ledgerProvider = ledger.NewRESTProvider(cfg.Ledger.BaseURL, cfg.Ledger.APIKey, domainLog)
	} else {
		log.Println("No ledger URL configured, using in-memory fake ledger")
		ledgerProvider = ledger.NewFake()
	}

	var holidaySource bizday.HolidaySource
	if cfg.Billing.HolidayFile != "" {
		fileSource, err := bizday.NewFileSource(cfg.Billing.HolidayFile)
		if err != nil {
			log.Fatalf("Failed to load holiday calendar: %v", err)
		}
		holidaySource = bizday.NewDailyCache(fileSource)
	}
	calendar := bizday.NewCalendar(holidaySource)

	// The daemon never provisions accounts, so lifecycle gets a local
	// provisioner and no feature cache to invalidate.
	controller := lifecycle.NewController(
		contractSvc,
		documentSvc,
		ledgerProvider,
		accountSvc,
		&accounts.LocalProvisioner{},
		notifier,
		auditLogger,
		calendar,
		nil,
		domainLog,
		lifecycle.Config{
			TaxRatePercent:  cfg.Billing.TaxRatePercent,
			GracePeriodDays: cfg.Billing.GracePeriodDays,
		},
	)
	seatEnforcer := enforcer.New(contractSvc, accountSvc, notifier, auditLogger, domainLog)

	runEnforcer := func(day time.Time) {
		log.Printf("Starting seat enforcement sweep for %s", day.Format("2006-01-02"))
		result, err := seatEnforcer.Run(context.Background(), day)
		if err != nil {
			log.Printf("Seat enforcement sweep failed: %v", err)
			return
		}
		log.Printf("Seat enforcement sweep complete: scanned=%d processed=%d deactivated=%d errors=%d",
			result.Scanned, result.Processed, result.Deactivated, len(result.Errors))
	}
	runBilling := func(day time.Time) {
		log.Printf("Starting recurring billing run for %s", day.Format("2006-01-02"))
		result, err := controller.RunRecurringBilling(context.Background(), day)
		if err != nil {
			log.Printf("Recurring billing run failed: %v", err)
			return
		}
		log.Printf("Recurring billing run complete: due=%d issued=%d skipped=%d errors=%d",
			result.Due, result.Issued, result.Skipped, len(result.Errors))
	}

	// Run-once mode for manual and backfill runs
	if *runOnce {
		day := time.Now()
		if *dateStr != "" {
			day, err = time.Parse("2006-01-02", *dateStr)
			if err != nil {
				log.Fatalf("Invalid date format, expected YYYY-MM-DD: %v", err)
			}
		}
		if !*skipEnforcer {
			runEnforcer(day)
		}
		if !*skipBilling {
			runBilling(day)
		}
		return
	}

	// Scheduled mode
	c := cron.New()
	if !*skipEnforcer {
		if _, err := c.AddFunc(cfg.Billing.EnforcerSchedule, func() { runEnforcer(time.Now()) }); err != nil {
			log.Fatalf("Failed to schedule enforcement sweep: %v", err)
		}
		log.Printf("Seat enforcement sweep scheduled: %s", cfg.Billing.EnforcerSchedule)
	}
	if !*skipBilling {
		if _, err := c.AddFunc(cfg.Billing.BillingSchedule, func() { runBilling(time.Now()) }); err != nil {
			log.Fatalf("Failed to schedule recurring billing: %v", err)
		}
		log.Printf("Recurring billing scheduled: %s", cfg.Billing.BillingSchedule)
	}
	c.Start()
	log.Println("Billing daemon started")

	// Wait for interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	ctx := c.Stop()
	<-ctx.Done()
	log.Println("Shutdown complete")
}
