package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/frahmantamala/scale-custody/internal/core/custody"
	"github.com/frahmantamala/scale-custody/internal/core/database"
	assignmentDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/assignment"
	unitDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/unit"
)

type UnitRepository struct {
	db *gorm.DB
}

func NewUnitRepository(db *gorm.DB) *UnitRepository {
	return &UnitRepository{db: db}
}

func (r *UnitRepository) ListActive(ctx context.Context) ([]*unitDatamodel.Unit, error) {
	var units []*unitDatamodel.Unit
	err := database.Conn(ctx, r.db).Where("is_active = ?", true).Order("name ASC").Find(&units).Error
	return units, err
}

func (r *UnitRepository) GetByID(ctx context.Context, id int64) (*unitDatamodel.Unit, error) {
	var u unitDatamodel.Unit
	err := database.Conn(ctx, r.db).Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *UnitRepository) GetByIDs(ctx context.Context, ids []int64) ([]*unitDatamodel.Unit, error) {
	var units []*unitDatamodel.Unit
	if len(ids) == 0 {
		return units, nil
	}
	err := database.Conn(ctx, r.db).Where("id IN ?", ids).Find(&units).Error
	return units, err
}

func (r *UnitRepository) Create(ctx context.Context, u *unitDatamodel.Unit) error {
	return database.Conn(ctx, r.db).Create(u).Error
}

func (r *UnitRepository) Deactivate(ctx context.Context, id int64) error {
	return database.Conn(ctx, r.db).Model(&unitDatamodel.Unit{}).Where("id = ?", id).Update("is_active", false).Error
}

func (r *UnitRepository) CountActiveAssignments(ctx context.Context, unitID int64) (int64, error) {
	var n int64
	err := database.Conn(ctx, r.db).Model(&assignmentDatamodel.Assignment{}).
		Where("unit_id = ? AND status = ?", unitID, custody.AssignmentActive).
		Count(&n).Error
	return n, err
}
