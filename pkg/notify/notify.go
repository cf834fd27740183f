// Package notify delivers operational notifications raised by the billing
// engine: welcome mail on activation, deactivation notices from the seat
// enforcer, and admin summaries. Delivery failures never block the caller.
package notify

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Template identifies a notification template
type Template string

const (
	// TemplateWelcome greets the organization admin after activation
	TemplateWelcome Template = "welcome"
	// TemplateSeatDeactivated tells a user their seat was removed
	TemplateSeatDeactivated Template = "seat_deactivated"
	// TemplateSeatEnforcementSummary tells admins which seats were removed
	TemplateSeatEnforcementSummary Template = "seat_enforcement_summary"
	// TemplateEstimateIssued tells the billing contact an estimate is ready
	TemplateEstimateIssued Template = "estimate_issued"
	// TemplateInvoiceIssued tells the billing contact an invoice is open
	TemplateInvoiceIssued Template = "invoice_issued"
)

// Notifier delivers a templated notification to a recipient
type Notifier interface {
	Send(ctx context.Context, template Template, recipient string, payload map[string]interface{}) error
}

// LogNotifier writes notifications to the structured log instead of an
// outbound channel. Used when no mail transport is configured.
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a notifier that logs deliveries
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	if logger == nil {
		logger = logrus.New()
	}
	return &LogNotifier{logger: logger}
}

// Send logs the notification
func (n *LogNotifier) Send(ctx context.Context, template Template, recipient string, payload map[string]interface{}) error {
	n.logger.WithFields(logrus.Fields{
		"template":  template,
		"recipient": recipient,
		"payload":   payload,
	}).Info("notification sent")
	return nil
}

// Recorder captures notifications for assertions in tests
type Recorder struct {
	mu   sync.Mutex
	Sent []Recorded

	// FailFor makes Send fail for the given recipients
	FailFor map[string]error
}

// Recorded is a single captured notification
type Recorded struct {
	Template  Template
	Recipient string
	Payload   map[string]interface{}
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{FailFor: make(map[string]error)}
}

// Send records the notification
func (r *Recorder) Send(ctx context.Context, template Template, recipient string, payload map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.FailFor[recipient]; ok {
		return err
	}
	r.Sent = append(r.Sent, Recorded{Template: template, Recipient: recipient, Payload: payload})
	return nil
}

// SentTo returns the notifications delivered to a recipient
func (r *Recorder) SentTo(recipient string) []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Recorded
	for _, s := range r.Sent {
		if s.Recipient == recipient {
			out = append(out, s)
		}
	}
	return out
}
