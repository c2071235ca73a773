package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/scale-custody/internal/core/database"
	userDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/user"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) List(ctx context.Context) ([]*userDatamodel.User, error) {
	var users []*userDatamodel.User
	err := database.Conn(ctx, r.db).Order("last_name ASC").Order("first_name ASC").Find(&users).Error
	return users, err
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := database.Conn(ctx, r.db).Model(&userDatamodel.User{}).Count(&n).Error
	return n, err
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*userDatamodel.User, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByIDForUpdate reads the user and locks its row until the transaction
// in ctx ends.
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id int64) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := database.Conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// LockTable blocks concurrent user inserts until the transaction in ctx ends.
func (r *UserRepository) LockTable(ctx context.Context) error {
	return database.LockTable(ctx, r.db, "users")
}

func (r *UserRepository) GetByDodID(ctx context.Context, dodID string) (*userDatamodel.User, error) {
	return r.first(ctx, "dod_id = ?", dodID)
}

func (r *UserRepository) first(ctx context.Context, query string, arg interface{}) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := database.Conn(ctx, r.db).Where(query, arg).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByIDs(ctx context.Context, ids []int64) ([]*userDatamodel.User, error) {
	var users []*userDatamodel.User
	if len(ids) == 0 {
		return users, nil
	}
	err := database.Conn(ctx, r.db).Where("id IN ?", ids).Find(&users).Error
	return users, err
}

func (r *UserRepository) Create(ctx context.Context, u *userDatamodel.User) error {
	return database.Conn(ctx, r.db).Create(u).Error
}

func (r *UserRepository) Update(ctx context.Context, id int64, fields map[string]interface{}) error {
	return database.Conn(ctx, r.db).Model(&userDatamodel.User{}).Where("id = ?", id).Updates(fields).Error
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	return database.Conn(ctx, r.db).Model(&userDatamodel.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"last_login_at": at.UTC()}).Error
}
