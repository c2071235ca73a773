package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/frahmantamala/scale-custody/internal/core/custody"
	"github.com/frahmantamala/scale-custody/internal/core/database"
	assignmentDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/assignment"
)

type AssignmentRepository struct {
	db *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// List returns assignments newest first, optionally restricted to one
// stored status.
func (r *AssignmentRepository) List(ctx context.Context, status *custody.AssignmentStatus) ([]*assignmentDatamodel.Assignment, error) {
	var rows []*assignmentDatamodel.Assignment
	q := database.Conn(ctx, r.db)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	err := q.Order("assigned_at DESC, id DESC").Find(&rows).Error
	return rows, err
}

func (r *AssignmentRepository) GetByID(ctx context.Context, id int64) (*assignmentDatamodel.Assignment, error) {
	var a assignmentDatamodel.Assignment
	err := database.Conn(ctx, r.db).Where("id = ?", id).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *AssignmentRepository) Create(ctx context.Context, a *assignmentDatamodel.Assignment) error {
	return database.Conn(ctx, r.db).Create(a).Error
}

// CloseActive moves an active assignment to returned with the given fields.
// It reports zero rows when the assignment is missing or no longer active.
func (r *AssignmentRepository) CloseActive(ctx context.Context, id int64, fields map[string]interface{}) (int64, error) {
	fields["status"] = custody.AssignmentReturned
	res := database.Conn(ctx, r.db).Model(&assignmentDatamodel.Assignment{}).
		Where("id = ? AND status = ?", id, custody.AssignmentActive).
		Updates(fields)
	return res.RowsAffected, res.Error
}
