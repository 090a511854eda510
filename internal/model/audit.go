package model

import (
	"encoding/json"
	"time"
)

// Audit actions and entities recorded in the audit log.
const (
	AuditCreate = "CREATE"
	AuditUpdate = "UPDATE"
	AuditDelete = "DELETE"

	AuditEntityPrompt  = "PROMPT"
	AuditEntityVersion = "VERSION"
	AuditEntityUser    = "USER"
)

// AuditEntry is a before/after snapshot of a mutation.
// OldData and NewData hold arbitrary JSON and may be nil.
type AuditEntry struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Action    string          `json:"action"`
	Entity    string          `json:"entity"`
	EntityID  string          `json:"entityId"`
	OldData   json.RawMessage `json:"oldData,omitempty"`
	NewData   json.RawMessage `json:"newData,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
