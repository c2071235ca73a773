// Package audit appends and queries the custody audit trail.
package audit

import (
	"context"
	"time"

	"github.com/frahmantamala/scale-custody/internal/core/custody"
	auditDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/auditlog"
)

type AuditLog struct {
	ID           int64                  `json:"id"`
	UserID       int64                  `json:"userId"`
	ScaleID      *int64                 `json:"scaleId,omitempty"`
	AssignmentID *int64                 `json:"assignmentId,omitempty"`
	ActionType   custody.ActionType     `json:"actionType"`
	Description  string                 `json:"description"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	IPAddress    *string                `json:"ipAddress,omitempty"`
	UserAgent    *string                `json:"userAgent,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
}

// Entry is one event to append. IPAddress and UserAgent fall back to the
// request provenance carried by the context.
type Entry struct {
	ActorID      int64
	ActionType   custody.ActionType
	Description  string
	ScaleID      *int64
	AssignmentID *int64
	Metadata     map[string]interface{}
	IPAddress    string
	UserAgent    string
}

// Trail is the write side used by every mutating service. Record never
// fails the caller; a nil result means the entry was not persisted.
type Trail interface {
	Record(ctx context.Context, e Entry) *AuditLog
}

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Filter fields are conjunctive; nil fields do not constrain.
type Filter struct {
	UserID       *int64
	ScaleID      *int64
	AssignmentID *int64
	ActionType   custody.ActionType
	StartDate    *time.Time
	EndDate      *time.Time
	Limit        int
}

func FromDataModel(m *auditDatamodel.AuditLog) *AuditLog {
	out := &AuditLog{
		ID:           m.ID,
		UserID:       m.UserID,
		ScaleID:      m.ScaleID,
		AssignmentID: m.AssignmentID,
		ActionType:   m.ActionType,
		Description:  m.Description,
		IPAddress:    m.IPAddress,
		UserAgent:    m.UserAgent,
		CreatedAt:    m.CreatedAt,
	}
	if len(m.Metadata) > 0 {
		out.Metadata = map[string]interface{}(m.Metadata)
	}
	return out
}

func toDataModel(e Entry) *auditDatamodel.AuditLog {
	m := &auditDatamodel.AuditLog{
		UserID:       e.ActorID,
		ScaleID:      e.ScaleID,
		AssignmentID: e.AssignmentID,
		ActionType:   e.ActionType,
		Description:  e.Description,
	}
	if len(e.Metadata) > 0 {
		m.Metadata = e.Metadata
	}
	if e.IPAddress != "" {
		ip := e.IPAddress
		m.IPAddress = &ip
	}
	if e.UserAgent != "" {
		ua := e.UserAgent
		m.UserAgent = &ua
	}
	return m
}
