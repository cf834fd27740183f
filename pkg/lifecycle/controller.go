// Package lifecycle orchestrates contract and document state: estimate
// issuance, activation, plan changes and recurring billing. It owns the
// ordering and compensation logic; the arithmetic lives in pkg/billing and
// persistence in the store packages.
package lifecycle

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/genbaworks/tally/pkg/accounts"
	"github.com/genbaworks/tally/pkg/audit"
	"github.com/genbaworks/tally/pkg/bizday"
	"github.com/genbaworks/tally/pkg/contracts"
	"github.com/genbaworks/tally/pkg/documents"
	"github.com/genbaworks/tally/pkg/ledger"
	"github.com/genbaworks/tally/pkg/notify"
)

// FeatureInvalidator evicts an organization's cached entitlement snapshot
// after a contract mutation.
type FeatureInvalidator interface {
	Invalidate(ctx context.Context, orgID int64)
}

// Config holds the policy knobs of the controller
type Config struct {
	// TaxRatePercent is applied to every document total
	TaxRatePercent int64
	// GracePeriodDays is how long excess seats survive a seat limit reduction
	GracePeriodDays int
}

// DefaultConfig returns the standard policy values
func DefaultConfig() Config {
	return Config{
		TaxRatePercent:  10,
		GracePeriodDays: 30,
	}
}

// Controller coordinates contract lifecycle operations
type Controller struct {
	contracts   contracts.Service
	documents   documents.Service
	ledger      ledger.Provider
	accounts    accounts.Service
	provisioner accounts.Provisioner
	notifier    notify.Notifier
	audit       audit.Logger
	calendar    *bizday.Calendar
	features    FeatureInvalidator
	logger      *logrus.Logger
	cfg         Config

	now func() time.Time
}

// NewController wires a lifecycle controller
func NewController(
	contractSvc contracts.Service,
	documentSvc documents.Service,
	ledgerProvider ledger.Provider,
	accountSvc accounts.Service,
	provisioner accounts.Provisioner,
	notifier notify.Notifier,
	auditLogger audit.Logger,
	calendar *bizday.Calendar,
	features FeatureInvalidator,
	logger *logrus.Logger,
	cfg Config,
) *Controller {
	if logger == nil {
		logger = logrus.New()
	}
	if auditLogger == nil {
		auditLogger = &audit.NoOpLogger{}
	}
	if cfg.TaxRatePercent == 0 {
		cfg.TaxRatePercent = 10
	}
	if cfg.GracePeriodDays == 0 {
		cfg.GracePeriodDays = 30
	}
	return &Controller{
		contracts:   contractSvc,
		documents:   documentSvc,
		ledger:      ledgerProvider,
		accounts:    accountSvc,
		provisioner: provisioner,
		notifier:    notifier,
		audit:       auditLogger,
		calendar:    calendar,
		features:    features,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

func (c *Controller) today() time.Time {
	t := c.now()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func (c *Controller) invalidateFeatures(ctx context.Context, orgID int64) {
	if c.features != nil {
		c.features.Invalidate(ctx, orgID)
	}
}

// sendNotification delivers best-effort; failures are logged and never
// propagate to the caller.
func (c *Controller) sendNotification(ctx context.Context, template notify.Template, recipient string, payload map[string]interface{}) {
	if c.notifier == nil || recipient == "" {
		return
	}
	if err := c.notifier.Send(ctx, template, recipient, payload); err != nil {
		c.logger.WithFields(logrus.Fields{
			"template":  template,
			"recipient": recipient,
		}).WithError(err).Warn("notification delivery failed")
	}
}
