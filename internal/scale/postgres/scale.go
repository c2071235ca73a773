package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/scale-custody/internal/core/custody"
	"github.com/frahmantamala/scale-custody/internal/core/database"
	assignmentDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/assignment"
	scaleDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/scale"
)

type ScaleRepository struct {
	db *gorm.DB
}

func NewScaleRepository(db *gorm.DB) *ScaleRepository {
	return &ScaleRepository{db: db}
}

func (r *ScaleRepository) List(ctx context.Context) ([]*scaleDatamodel.Scale, error) {
	var scales []*scaleDatamodel.Scale
	err := database.Conn(ctx, r.db).Order("scale_id ASC").Find(&scales).Error
	return scales, err
}

// ListAvailable returns available scales whose calibration, if known, is
// due no earlier than horizon.
func (r *ScaleRepository) ListAvailable(ctx context.Context, horizon time.Time) ([]*scaleDatamodel.Scale, error) {
	var scales []*scaleDatamodel.Scale
	err := database.Conn(ctx, r.db).
		Where("status = ?", custody.ScaleAvailable).
		Where("next_calibration_date IS NULL OR next_calibration_date >= ?", horizon.UTC()).
		Order("scale_id ASC").
		Find(&scales).Error
	return scales, err
}

func (r *ScaleRepository) GetByID(ctx context.Context, id int64) (*scaleDatamodel.Scale, error) {
	var s scaleDatamodel.Scale
	err := database.Conn(ctx, r.db).Where("id = ?", id).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *ScaleRepository) GetByIDs(ctx context.Context, ids []int64) ([]*scaleDatamodel.Scale, error) {
	var scales []*scaleDatamodel.Scale
	if len(ids) == 0 {
		return scales, nil
	}
	err := database.Conn(ctx, r.db).Where("id IN ?", ids).Find(&scales).Error
	return scales, err
}

func (r *ScaleRepository) Create(ctx context.Context, s *scaleDatamodel.Scale) error {
	return database.Conn(ctx, r.db).Create(s).Error
}

// UpdateIfStatus applies fields only while the scale is still in status
// expected and reports how many rows changed.
func (r *ScaleRepository) UpdateIfStatus(ctx context.Context, id int64, expected custody.ScaleStatus, fields map[string]interface{}) (int64, error) {
	res := database.Conn(ctx, r.db).Model(&scaleDatamodel.Scale{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(fields)
	return res.RowsAffected, res.Error
}

func (r *ScaleRepository) ActiveAssignments(ctx context.Context, scaleIDs []int64) ([]*assignmentDatamodel.Assignment, error) {
	var rows []*assignmentDatamodel.Assignment
	if len(scaleIDs) == 0 {
		return rows, nil
	}
	err := database.Conn(ctx, r.db).
		Where("scale_id IN ? AND status = ?", scaleIDs, custody.AssignmentActive).
		Find(&rows).Error
	return rows, err
}
