package user

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/frahmantamala/scale-custody/internal"
	"github.com/frahmantamala/scale-custody/internal/audit"
	"github.com/frahmantamala/scale-custody/internal/core/access"
	"github.com/frahmantamala/scale-custody/internal/core/custody"
	"github.com/frahmantamala/scale-custody/internal/core/database"
	userDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/user"
	"github.com/frahmantamala/scale-custody/pkg/logger"
)

type RepositoryAPI interface {
	List(ctx context.Context) ([]*userDatamodel.User, error)
	Count(ctx context.Context) (int64, error)
	GetByID(ctx context.Context, id int64) (*userDatamodel.User, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*userDatamodel.User, error)
	LockTable(ctx context.Context) error
	GetByIDs(ctx context.Context, ids []int64) ([]*userDatamodel.User, error)
	Create(ctx context.Context, u *userDatamodel.User) error
	Update(ctx context.Context, id int64, fields map[string]interface{}) error
}

type Service struct {
	repo       RepositoryAPI
	tx         database.Transactor
	audit      audit.Trail
	bcryptCost int
	logger     *slog.Logger
}

func NewService(repo RepositoryAPI, tx database.Transactor, trail audit.Trail, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:       repo,
		tx:         tx,
		audit:      trail,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

func (s *Service) List(ctx context.Context) ([]*User, error) {
	if _, err := access.Check(ctx, access.Users); err != nil {
		return nil, err
	}

	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, internal.NewInternalError("failed to list users", err)
	}
	users := make([]*User, 0, len(rows))
	for _, row := range rows {
		users = append(users, FromDataModel(row))
	}
	return users, nil
}

// Get returns a user. Anyone may read their own record; reading others
// needs the users capability.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	actor, ok := internal.ActorFromContext(ctx)
	if !ok {
		return nil, internal.ErrAuthRequired()
	}
	if actor.UserID != id {
		if _, err := access.Check(ctx, access.Users); err != nil {
			return nil, err
		}
	}
	return s.load(ctx, id)
}

// Summaries loads the projections for ids, keyed by id. Missing ids are
// absent from the map.
func (s *Service) Summaries(ctx context.Context, ids []int64) (map[int64]*Summary, error) {
	out := make(map[int64]*Summary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, internal.NewInternalError("failed to load users", err)
	}
	for _, row := range rows {
		out[row.ID] = FromDataModel(row).Summary()
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, id int64) (*User, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("failed to load user", err)
	}
	if row == nil {
		return nil, internal.NewNotFoundError(fmt.Sprintf("user %d not found", id), internal.ErrCodeUserNotFound)
	}
	return FromDataModel(row), nil
}

func (s *Service) Create(ctx context.Context, dto CreateUserDTO) (*User, error) {
	actor, err := access.Check(ctx, access.Users, access.Create)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, dto, actor.UserID)
}

// Bootstrap creates the first account of an empty installation. The audit
// entry is attributed to the new user since no actor exists yet. The users
// table stays locked from the emptiness check to the insert, so concurrent
// bootstraps cannot both succeed.
func (s *Service) Bootstrap(ctx context.Context, dto CreateUserDTO) (*User, error) {
	if dto.Role == "" {
		dto.Role = string(custody.RoleAdmin)
	}

	var created *User
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.LockTable(ctx); err != nil {
			return internal.NewInternalError("failed to lock users", err)
		}
		n, err := s.repo.Count(ctx)
		if err != nil {
			return internal.NewInternalError("failed to count users", err)
		}
		if n > 0 {
			return internal.NewInvalidStateError("users already exist; bootstrap is only allowed on an empty store")
		}
		created, err = s.create(ctx, dto, 0)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) create(ctx context.Context, dto CreateUserDTO, actorID int64) (*User, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	role := custody.Role(dto.Role)
	if role == "" {
		role = custody.RoleViewer
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.bcryptCost)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	row := &userDatamodel.User{
		DodID:        dto.DodID,
		PasswordHash: string(hash),
		FirstName:    dto.FirstName,
		LastName:     dto.LastName,
		Email:        dto.Email,
		Role:         role,
		IsActive:     true,
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, row); err != nil {
			return database.TranslateError(err, "failed to create user")
		}
		if actorID == 0 {
			actorID = row.ID
		}
		s.audit.Record(ctx, audit.Entry{
			ActorID:     actorID,
			ActionType:  custody.ActionCreated,
			Description: fmt.Sprintf("User account created: %s %s", row.FirstName, row.LastName),
			Metadata: map[string]interface{}{
				"userId": row.ID,
				"dodId":  row.DodID,
				"role":   string(row.Role),
			},
		})
		return nil
	})
	if err != nil {
		logger.FromOr(ctx, s.logger).Warn("user creation failed", "dod_id", dto.DodID, "error", err)
		return nil, err
	}

	logger.FromOr(ctx, s.logger).Info("user created", "user_id", row.ID, "role", row.Role)
	return FromDataModel(row), nil
}

func (s *Service) Update(ctx context.Context, id int64, dto UpdateUserDTO) (*User, error) {
	actor, err := access.Check(ctx, access.Users, access.Update)
	if err != nil {
		return nil, err
	}
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	var (
		updated *User
		fields  map[string]interface{}
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		row, err := s.repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return internal.NewInternalError("failed to load user", err)
		}
		if row == nil {
			return internal.NewNotFoundError(fmt.Sprintf("user %d not found", id), internal.ErrCodeUserNotFound)
		}
		current := FromDataModel(row)

		var changes map[string]interface{}
		fields, changes, err = s.diff(current, dto)
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			updated = current
			return nil
		}

		if actor.UserID == id {
			if _, ok := changes["isActive"]; ok {
				return internal.NewInvalidStateError("you cannot deactivate your own account")
			}
			if _, ok := changes["role"]; ok {
				return internal.NewInvalidStateError("you cannot change your own role")
			}
		}

		if err := s.repo.Update(ctx, id, fields); err != nil {
			return database.TranslateError(err, "failed to update user")
		}
		row, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return internal.NewInternalError("failed to reload user", err)
		}
		updated = FromDataModel(row)
		s.audit.Record(ctx, audit.Entry{
			ActorID:     actor.UserID,
			ActionType:  custody.ActionUpdated,
			Description: fmt.Sprintf("User account updated: %s", updated.FullName()),
			Metadata: map[string]interface{}{
				"userId":  id,
				"changes": changes,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(fields) > 0 {
		logger.FromOr(ctx, s.logger).Info("user updated", "user_id", id, "fields", len(fields))
	}
	return updated, nil
}

func (s *Service) diff(current *User, dto UpdateUserDTO) (map[string]interface{}, map[string]interface{}, error) {
	fields := map[string]interface{}{}
	changes := map[string]interface{}{}

	set := func(column, name string, from, to interface{}) {
		fields[column] = to
		changes[name] = map[string]interface{}{"from": from, "to": to}
	}

	if dto.FirstName != nil && *dto.FirstName != current.FirstName {
		set("first_name", "firstName", current.FirstName, *dto.FirstName)
	}
	if dto.LastName != nil && *dto.LastName != current.LastName {
		set("last_name", "lastName", current.LastName, *dto.LastName)
	}
	if dto.Email != nil && *dto.Email != current.Email {
		set("email", "email", current.Email, *dto.Email)
	}
	if dto.Role != nil && custody.Role(*dto.Role) != current.Role {
		set("role", "role", string(current.Role), *dto.Role)
	}
	if dto.IsActive != nil && *dto.IsActive != current.IsActive {
		set("is_active", "isActive", current.IsActive, *dto.IsActive)
	}
	if dto.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*dto.Password), s.bcryptCost)
		if err != nil {
			return nil, nil, internal.NewInternalError("failed to hash password", err)
		}
		fields["password_hash"] = string(hash)
		changes["password"] = "changed"
	}
	return fields, changes, nil
}
