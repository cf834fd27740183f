package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() WebhookRetryConfig {
	return WebhookRetryConfig{
		MaxAttempts:       3,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestWebhookNotifierSend(t *testing.T) {
	var gotBody []byte
	var gotSignature, gotEvent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get("X-Tally-Signature")
		gotEvent = r.Header.Get("X-Tally-Event")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, "hook-secret", fastRetry())
	err := n.Send(context.Background(), TemplateInvoiceIssued, "billing@example.test", map[string]interface{}{
		"document_number": "INV-2026-0042",
		"total":           int64(165000),
	})
	require.NoError(t, err)

	assert.Equal(t, string(TemplateInvoiceIssued), gotEvent)

	var event webhookEvent
	require.NoError(t, json.Unmarshal(gotBody, &event))
	assert.Equal(t, TemplateInvoiceIssued, event.Template)
	assert.Equal(t, "billing@example.test", event.Recipient)
	assert.Equal(t, "INV-2026-0042", event.Payload["document_number"])

	mac := hmac.New(sha256.New, []byte("hook-secret"))
	mac.Write(gotBody)
	assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), gotSignature)
}

func TestWebhookNotifierRetriesThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, "", fastRetry())
	err := n.Send(context.Background(), TemplateWelcome, "admin@example.test", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWebhookNotifierGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, "", fastRetry())
	err := n.Send(context.Background(), TemplateWelcome, "admin@example.test", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWebhookNotifierNoSignatureWithoutSecret(t *testing.T) {
	var gotSignature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Tally-Signature")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, "", fastRetry())
	require.NoError(t, n.Send(context.Background(), TemplateSeatDeactivated, "user@example.test", nil))
	assert.Empty(t, gotSignature)
}
