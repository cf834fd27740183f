package audit

import (
	"context"
	"time"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *Event) error

	// LogContractEvent records a contract lifecycle transition
	LogContractEvent(ctx context.Context, eventType EventType, contractID, orgID int64, actor, message string, changes *ChangeDetails) error

	// LogDocumentEvent records a document status change
	LogDocumentEvent(ctx context.Context, eventType EventType, contractID int64, documentNumber, actor, message string) error

	// LogSeatEvent records a seat enforcement action
	LogSeatEvent(ctx context.Context, eventType EventType, contractID, orgID int64, message string, metadata map[string]interface{}) error

	// LogFailure records a failed operation
	LogFailure(ctx context.Context, eventType EventType, contractID int64, message string, err error) error

	// Close closes the logger and flushes any buffered events
	Close() error
}

func newEvent(eventType EventType, status EventStatus) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		Metadata:  make(map[string]interface{}),
	}
}

// NoOpLogger discards all events, used when auditing is disabled
type NoOpLogger struct{}

// Log discards the event
func (l *NoOpLogger) Log(ctx context.Context, event *Event) error { return nil }

// LogContractEvent discards the event
func (l *NoOpLogger) LogContractEvent(ctx context.Context, eventType EventType, contractID, orgID int64, actor, message string, changes *ChangeDetails) error {
	return nil
}

// LogDocumentEvent discards the event
func (l *NoOpLogger) LogDocumentEvent(ctx context.Context, eventType EventType, contractID int64, documentNumber, actor, message string) error {
	return nil
}

// LogSeatEvent discards the event
func (l *NoOpLogger) LogSeatEvent(ctx context.Context, eventType EventType, contractID, orgID int64, message string, metadata map[string]interface{}) error {
	return nil
}

// LogFailure discards the event
func (l *NoOpLogger) LogFailure(ctx context.Context, eventType EventType, contractID int64, message string, err error) error {
	return nil
}

// Close does nothing
func (l *NoOpLogger) Close() error { return nil }
