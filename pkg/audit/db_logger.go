package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// DBLogger implements audit logging to PostgreSQL
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a new database-backed audit logger
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	logger := &DBLogger{db: db}
	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_logs table: %w", err)
	}
	return logger, nil
}

// ensureTable creates the audit_logs table if it doesn't exist
func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		status VARCHAR(20) NOT NULL,
		actor VARCHAR(255),
		org_id BIGINT,
		contract_id BIGINT,
		resource_type VARCHAR(50),
		resource_id VARCHAR(255),
		message TEXT,
		error_message TEXT,
		metadata JSONB,
		changes JSONB,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_event_type ON audit_logs(event_type);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_contract_id ON audit_logs(contract_id);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_org_id ON audit_logs(org_id);
	`

	_, err := l.db.Exec(query)
	return err
}

// Log writes an audit event to the database
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	var metadataJSON, changesJSON []byte
	var err error

	if event.Metadata != nil {
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}
	if event.Changes != nil {
		changesJSON, err = json.Marshal(event.Changes)
		if err != nil {
			return fmt.Errorf("failed to marshal changes: %w", err)
		}
	}

	query := `
		INSERT INTO audit_logs (
			timestamp, event_type, status,
			actor, org_id, contract_id,
			resource_type, resource_id,
			message, error_message, metadata, changes
		) VALUES (
			$1, $2, $3,
			$4, $5, $6,
			$7, $8,
			$9, $10, $11, $12
		) RETURNING id`

	err = l.db.QueryRowContext(ctx, query,
		event.Timestamp, event.EventType, event.Status,
		event.Actor, event.OrgID, event.ContractID,
		event.ResourceType, event.ResourceID,
		event.Message, event.ErrorMessage, metadataJSON, changesJSON,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// LogContractEvent records a contract lifecycle transition
func (l *DBLogger) LogContractEvent(ctx context.Context, eventType EventType, contractID, orgID int64, actor, message string, changes *ChangeDetails) error {
	event := newEvent(eventType, EventStatusSuccess)
	event.ContractID = &contractID
	event.OrgID = &orgID
	event.Actor = actor
	event.Message = message
	event.ResourceType = ResourceTypeContract
	event.ResourceID = fmt.Sprintf("%d", contractID)
	event.Changes = changes
	return l.Log(ctx, event)
}

// LogDocumentEvent records a document status change
func (l *DBLogger) LogDocumentEvent(ctx context.Context, eventType EventType, contractID int64, documentNumber, actor, message string) error {
	event := newEvent(eventType, EventStatusSuccess)
	event.ContractID = &contractID
	event.Actor = actor
	event.Message = message
	event.ResourceType = ResourceTypeDocument
	event.ResourceID = documentNumber
	return l.Log(ctx, event)
}

// LogSeatEvent records a seat enforcement action
func (l *DBLogger) LogSeatEvent(ctx context.Context, eventType EventType, contractID, orgID int64, message string, metadata map[string]interface{}) error {
	event := newEvent(eventType, EventStatusSuccess)
	event.ContractID = &contractID
	event.OrgID = &orgID
	event.Message = message
	event.ResourceType = ResourceTypeAccount
	if metadata != nil {
		event.Metadata = metadata
	}
	return l.Log(ctx, event)
}

// LogFailure records a failed operation
func (l *DBLogger) LogFailure(ctx context.Context, eventType EventType, contractID int64, message string, err error) error {
	event := newEvent(eventType, EventStatusFailure)
	event.ContractID = &contractID
	event.Message = message
	if err != nil {
		event.ErrorMessage = err.Error()
	}
	return l.Log(ctx, event)
}

// Close closes the logger. The database connection is owned by the caller.
func (l *DBLogger) Close() error {
	return nil
}
