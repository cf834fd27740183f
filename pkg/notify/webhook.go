package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// WebhookRetryConfig configures delivery retry behavior
type WebhookRetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultWebhookRetryConfig returns the default retry configuration
func DefaultWebhookRetryConfig() WebhookRetryConfig {
	return WebhookRetryConfig{
		MaxAttempts:       3,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// webhookEvent is the envelope posted to the receiver
type webhookEvent struct {
	ID        string                 `json:"id"`
	Template  Template               `json:"template"`
	Recipient string                 `json:"recipient"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
}

// WebhookNotifier posts notifications as JSON events to a configured
// endpoint. The payload is signed with HMAC-SHA256 when a secret is set
// so the receiver can verify the origin.
type WebhookNotifier struct {
	url    string
	secret string
	client *http.Client
	retry  WebhookRetryConfig
}

// NewWebhookNotifier creates a notifier delivering to the given URL
func NewWebhookNotifier(url, secret string, retry WebhookRetryConfig) *WebhookNotifier {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 3
	}
	if retry.InitialDelay <= 0 {
		retry.InitialDelay = 500 * time.Millisecond
	}
	if retry.MaxDelay <= 0 {
		retry.MaxDelay = 10 * time.Second
	}
	if retry.BackoffMultiplier <= 1.0 {
		retry.BackoffMultiplier = 2.0
	}
	return &WebhookNotifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		retry:  retry,
	}
}

// Send delivers the notification, retrying transient failures with
// exponential backoff before giving up.
func (n *WebhookNotifier) Send(ctx context.Context, template Template, recipient string, payload map[string]interface{}) error {
	event := webhookEvent{
		ID:        uuid.New().String(),
		Template:  template,
		Recipient: recipient,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook event: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= n.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(n.nextDelay(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if lastErr = n.deliver(ctx, event, body); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("failed to deliver webhook after %d attempts: %w", n.retry.MaxAttempts, lastErr)
}

func (n *WebhookNotifier) deliver(ctx context.Context, event webhookEvent, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tally-Event", string(event.Template))
	req.Header.Set("X-Tally-Event-ID", event.ID)
	req.Header.Set("X-Tally-Delivery", time.Now().UTC().Format(time.RFC3339))
	if n.secret != "" {
		req.Header.Set("X-Tally-Signature", signPayload(body, n.secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-2xx status: %d", resp.StatusCode)
	}
	return nil
}

// nextDelay applies exponential backoff capped at MaxDelay
func (n *WebhookNotifier) nextDelay(attempts int) time.Duration {
	delay := float64(n.retry.InitialDelay) * math.Pow(n.retry.BackoffMultiplier, float64(attempts-1))
	if delay > float64(n.retry.MaxDelay) {
		return n.retry.MaxDelay
	}
	return time.Duration(delay)
}

// signPayload computes the hex-encoded HMAC-SHA256 of the payload
func signPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
