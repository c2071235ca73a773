package unit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/scale-custody/internal"
	"github.com/frahmantamala/scale-custody/internal/audit"
	"github.com/frahmantamala/scale-custody/internal/core/access"
	"github.com/frahmantamala/scale-custody/internal/core/custody"
	"github.com/frahmantamala/scale-custody/internal/core/database"
	unitDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/unit"
	"github.com/frahmantamala/scale-custody/pkg/logger"
)

type RepositoryAPI interface {
	ListActive(ctx context.Context) ([]*unitDatamodel.Unit, error)
	GetByID(ctx context.Context, id int64) (*unitDatamodel.Unit, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*unitDatamodel.Unit, error)
	Create(ctx context.Context, u *unitDatamodel.Unit) error
	Deactivate(ctx context.Context, id int64) error
	CountActiveAssignments(ctx context.Context, unitID int64) (int64, error)
}

type Service struct {
	repo   RepositoryAPI
	tx     database.Transactor
	audit  audit.Trail
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, tx database.Transactor, trail audit.Trail, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		tx:     tx,
		audit:  trail,
		logger: logger,
	}
}

func (s *Service) List(ctx context.Context) ([]*Unit, error) {
	if _, err := access.Check(ctx, access.Inventory); err != nil {
		return nil, err
	}

	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, internal.NewInternalError("failed to list units", err)
	}
	units := make([]*Unit, 0, len(rows))
	for _, row := range rows {
		units = append(units, FromDataModel(row))
	}
	logger.FromOr(ctx, s.logger).Debug("retrieved units", "count", len(units))
	return units, nil
}

// Summaries loads unit projections keyed by id, inactive units included.
func (s *Service) Summaries(ctx context.Context, ids []int64) (map[int64]*Summary, error) {
	out := make(map[int64]*Summary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, internal.NewInternalError("failed to load units", err)
	}
	for _, row := range rows {
		out[row.ID] = FromDataModel(row).Summary()
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, dto CreateUnitDTO) (*Unit, error) {
	actor, err := access.Check(ctx, access.Inventory, access.Create)
	if err != nil {
		return nil, err
	}
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	row := ToDataModel(NewUnit(dto.Name, dto.Code, dto.Description))
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, row); err != nil {
			return database.TranslateError(err, "failed to create unit")
		}
		s.audit.Record(ctx, audit.Entry{
			ActorID:     actor.UserID,
			ActionType:  custody.ActionCreated,
			Description: fmt.Sprintf("Unit created: %s (%s)", row.Name, row.Code),
			Metadata: map[string]interface{}{
				"unitId": row.ID,
				"code":   row.Code,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromOr(ctx, s.logger).Info("unit created", "unit_id", row.ID, "code", row.Code)
	return FromDataModel(row), nil
}

// Deactivate retires a unit from new assignments. Units still holding a
// scale cannot be deactivated.
func (s *Service) Deactivate(ctx context.Context, id int64) (*Unit, error) {
	actor, err := access.Check(ctx, access.Delete)
	if err != nil {
		return nil, err
	}

	var out *Unit
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		row, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return internal.NewInternalError("failed to load unit", err)
		}
		if row == nil {
			return internal.NewNotFoundError(fmt.Sprintf("unit %d not found", id), internal.ErrCodeUnitNotFound)
		}
		if !row.IsActive {
			return internal.NewInvalidStateError(fmt.Sprintf("unit %s is already inactive", row.Code))
		}

		active, err := s.repo.CountActiveAssignments(ctx, id)
		if err != nil {
			return internal.NewInternalError("failed to check unit assignments", err)
		}
		if active > 0 {
			return internal.NewInvalidStateError(fmt.Sprintf("unit %s still holds %d active assignment(s)", row.Code, active))
		}

		if err := s.repo.Deactivate(ctx, id); err != nil {
			return database.TranslateError(err, "failed to deactivate unit")
		}
		row.IsActive = false
		out = FromDataModel(row)

		s.audit.Record(ctx, audit.Entry{
			ActorID:     actor.UserID,
			ActionType:  custody.ActionUpdated,
			Description: fmt.Sprintf("Unit deactivated: %s (%s)", row.Name, row.Code),
			Metadata: map[string]interface{}{
				"unitId": row.ID,
				"code":   row.Code,
				"changes": map[string]interface{}{
					"isActive": map[string]interface{}{"from": true, "to": false},
				},
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromOr(ctx, s.logger).Info("unit deactivated", "unit_id", id)
	return out, nil
}
