package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionCreateUser         AuditAction = "CREATE_USER"
	AuditActionUpdateUser         AuditAction = "UPDATE_USER"
	AuditActionDeactivateUser     AuditAction = "DEACTIVATE_USER"
	AuditActionChangePassword     AuditAction = "CHANGE_PASSWORD"
	AuditActionExportUsers        AuditAction = "EXPORT_USERS"
	AuditActionExportCaseAbstract AuditAction = "EXPORT_CASE_ABSTRACT" // case abstract exporter
)

// Table names recorded on audit entries.
const (
	TableProfiles   = "profiles"
	TableIdentities = "identities"
)

// AuditLog represents an audit trail entry. Entries are append-only.
type AuditLog struct {
	ID        string          `json:"id" db:"id"` // ULID, sortable by creation time
	ActorID   uuid.UUID       `json:"user_id" db:"user_id"`
	Action    AuditAction     `json:"action" db:"action"`
	TableName string          `json:"table_name" db:"table_name"`
	RecordID  string          `json:"record_id" db:"record_id"`
	NewData   json.RawMessage `json:"new_data,omitempty" db:"new_data"`
	RequestID string          `json:"request_id,omitempty" db:"request_id"`
	IPAddress string          `json:"ip_address,omitempty" db:"ip_address"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`

	// ActorName is resolved from profiles when listing; it is not stored.
	ActorName string `json:"actor_name,omitempty" db:"-"`
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(id string, actorID uuid.UUID, action AuditAction, table, recordID string) *AuditLog {
	return &AuditLog{
		ID:        id,
		ActorID:   actorID,
		Action:    action,
		TableName: table,
		RecordID:  recordID,
		CreatedAt: time.Now().UTC(),
	}
}

// WithData sets the payload. A value that cannot be marshalled leaves the payload empty.
func (a *AuditLog) WithData(data interface{}) *AuditLog {
	if data == nil {
		return a
	}
	if raw, err := json.Marshal(data); err == nil {
		a.NewData = raw
	}
	return a
}

// WithRequest sets request metadata
func (a *AuditLog) WithRequest(requestID, ipAddress string) *AuditLog {
	a.RequestID = requestID
	a.IPAddress = ipAddress
	return a
}

// AuditPage is one page of the audit trail, newest first.
type AuditPage struct {
	Entries []*AuditLog `json:"entries"`
	Page    int         `json:"page"`
	Limit   int         `json:"limit"`
	Total   int         `json:"total"`
}
