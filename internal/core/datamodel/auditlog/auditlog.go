package auditlog

import (
	"time"

	"gorm.io/datatypes"

	"github.com/frahmantamala/scale-custody/internal/core/custody"
)

// AuditLog rows are insert-only.
type AuditLog struct {
	ID           int64              `gorm:"primaryKey"`
	UserID       int64              `gorm:"column:user_id;not null;index"`
	ScaleID      *int64             `gorm:"column:scale_id;index"`
	AssignmentID *int64             `gorm:"column:assignment_id;index"`
	ActionType   custody.ActionType `gorm:"column:action_type;size:20;not null"`
	Description  string             `gorm:"column:description;not null"`
	Metadata     datatypes.JSONMap  `gorm:"column:metadata"`
	IPAddress    *string            `gorm:"column:ip_address;size:45"`
	UserAgent    *string            `gorm:"column:user_agent"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime;index"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
