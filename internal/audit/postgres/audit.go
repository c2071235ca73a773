package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/frahmantamala/scale-custody/internal/audit"
	"github.com/frahmantamala/scale-custody/internal/core/database"
	auditDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/auditlog"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts under a savepoint so a failure rolls back only this row.
func (r *AuditRepository) Create(ctx context.Context, log *auditDatamodel.AuditLog) error {
	return database.Savepoint(ctx, r.db, func(tx *gorm.DB) error {
		return tx.Create(log).Error
	})
}

func (r *AuditRepository) List(ctx context.Context, filter audit.Filter) ([]*auditDatamodel.AuditLog, error) {
	q := database.Conn(ctx, r.db).Model(&auditDatamodel.AuditLog{})

	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.ScaleID != nil {
		q = q.Where("scale_id = ?", *filter.ScaleID)
	}
	if filter.AssignmentID != nil {
		q = q.Where("assignment_id = ?", *filter.AssignmentID)
	}
	if filter.ActionType != "" {
		q = q.Where("action_type = ?", filter.ActionType)
	}
	if filter.StartDate != nil {
		q = q.Where("created_at >= ?", filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		q = q.Where("created_at <= ?", filter.EndDate.UTC())
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var logs []*auditDatamodel.AuditLog
	err := q.Order("created_at DESC").Order("id DESC").Find(&logs).Error
	return logs, err
}
