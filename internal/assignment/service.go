package assignment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/scale-custody/internal"
	"github.com/frahmantamala/scale-custody/internal/audit"
	"github.com/frahmantamala/scale-custody/internal/calibration"
	"github.com/frahmantamala/scale-custody/internal/core/access"
	"github.com/frahmantamala/scale-custody/internal/core/custody"
	"github.com/frahmantamala/scale-custody/internal/core/database"
	assignmentDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/assignment"
	scaleDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/scale"
	"github.com/frahmantamala/scale-custody/internal/core/events"
	"github.com/frahmantamala/scale-custody/internal/obs"
	"github.com/frahmantamala/scale-custody/internal/scale"
	"github.com/frahmantamala/scale-custody/internal/unit"
	"github.com/frahmantamala/scale-custody/internal/user"
	"github.com/frahmantamala/scale-custody/pkg/logger"
)

type RepositoryAPI interface {
	List(ctx context.Context, status *custody.AssignmentStatus) ([]*assignmentDatamodel.Assignment, error)
	GetByID(ctx context.Context, id int64) (*assignmentDatamodel.Assignment, error)
	Create(ctx context.Context, a *assignmentDatamodel.Assignment) error
	CloseActive(ctx context.Context, id int64, fields map[string]interface{}) (int64, error)
}

// ScaleStore is the slice of the scale repository the engine drives.
type ScaleStore interface {
	GetByID(ctx context.Context, id int64) (*scaleDatamodel.Scale, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*scaleDatamodel.Scale, error)
	UpdateIfStatus(ctx context.Context, id int64, expected custody.ScaleStatus, fields map[string]interface{}) (int64, error)
}

type UnitDirectory interface {
	Summaries(ctx context.Context, ids []int64) (map[int64]*unit.Summary, error)
}

type UserDirectory interface {
	Summaries(ctx context.Context, ids []int64) (map[int64]*user.Summary, error)
}

type Service struct {
	repo   RepositoryAPI
	scales ScaleStore
	units  UnitDirectory
	users  UserDirectory
	tx     database.Transactor
	audit  audit.Trail
	events events.Publisher
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func NewService(
	repo RepositoryAPI,
	scales ScaleStore,
	units UnitDirectory,
	users UserDirectory,
	tx database.Transactor,
	trail audit.Trail,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		repo:   repo,
		scales: scales,
		units:  units,
		users:  users,
		tx:     tx,
		audit:  trail,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assign hands an available scale to a unit. The scale status flip and the
// new active assignment commit together; a concurrent assign of the same
// scale loses on the status compare-and-swap or on the active index.
func (s *Service) Assign(ctx context.Context, dto AssignDTO) (*Assignment, error) {
	actor, err := access.Check(ctx, access.Assignments, access.Create)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if appErr := dto.Validate(now); appErr != nil {
		return nil, appErr
	}
	log := logger.FromOr(ctx, s.logger)

	var (
		created *assignmentDatamodel.Assignment
		target  *scaleDatamodel.Scale
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		if target, err = s.loadScale(ctx, dto.ScaleID); err != nil {
			return err
		}
		u, err := s.loadUnit(ctx, dto.UnitID)
		if err != nil {
			return err
		}

		if err := assignable(target); err != nil {
			log.Warn("assign rejected", "scale_id", target.ScaleID, "status", target.Status)
			return err
		}
		n, err := s.scales.UpdateIfStatus(ctx, target.ID, custody.ScaleAvailable, map[string]interface{}{
			"status": custody.ScaleAssigned,
		})
		if err != nil {
			return database.TranslateError(err, "failed to update scale status")
		}
		if n == 0 {
			return internal.NewInvalidStateError(fmt.Sprintf("scale %s already has an active assignment", target.ScaleID))
		}

		created = &assignmentDatamodel.Assignment{
			ScaleID:              target.ID,
			UnitID:               u.ID,
			AssignedToPersonName: dto.AssignedToPersonName,
			AssignedByID:         actor.UserID,
			AssignedAt:           now,
			ExpectedReturnDate:   dto.ExpectedReturnDate.Std(),
			AssignmentNotes:      dto.AssignmentNotes,
			Status:               custody.AssignmentActive,
			Location:             dto.Location,
		}
		if err := s.repo.Create(ctx, created); err != nil {
			if database.IsUniqueViolation(err) {
				return internal.NewInvalidStateError(fmt.Sprintf("scale %s already has an active assignment", target.ScaleID))
			}
			return database.TranslateError(err, "failed to create assignment")
		}

		s.audit.Record(ctx, audit.Entry{
			ActorID:      actor.UserID,
			ActionType:   custody.ActionAssigned,
			Description:  fmt.Sprintf("Scale assigned to %s", created.AssignedToPersonName),
			ScaleID:      &target.ID,
			AssignmentID: &created.ID,
			Metadata: map[string]interface{}{
				"unitId":               u.ID,
				"unitCode":             u.Code,
				"location":             created.Location,
				"assignedToPersonName": created.AssignedToPersonName,
				"expectedReturnDate":   created.ExpectedReturnDate,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result := calibration.Evaluate(target.NextCalibrationDate, now); result.Status == calibration.StatusExpired || result.Status == calibration.StatusExpiring {
		log.Warn("assigned scale calibration needs attention",
			"scale_id", target.ScaleID, "calibration", result.Status, "next_due", target.NextCalibrationDate)
	}
	log.Info("scale assigned", "scale_id", target.ScaleID, "assignment_id", created.ID, "unit_id", created.UnitID)
	obs.AssignmentsTotal.Inc()
	s.publish(ctx, events.NewScaleAssignedEvent(created.ID, created.ScaleID, created.UnitID, created.AssignedByID))
	return FromDataModel(created), nil
}

// assignable names the precondition a scale fails, if any. Only available
// scales enter custody; calibration standing does not block assignment.
func assignable(s *scaleDatamodel.Scale) error {
	switch s.Status {
	case custody.ScaleAvailable:
		return nil
	case custody.ScaleAssigned:
		return internal.NewInvalidStateError(fmt.Sprintf("scale %s already has an active assignment", s.ScaleID))
	default:
		return internal.NewInvalidStateError(fmt.Sprintf("scale %s is %s and cannot be assigned", s.ScaleID, s.Status))
	}
}

// Return closes an active assignment and puts the scale back in the pool
// with the condition it came back in.
func (s *Service) Return(ctx context.Context, id int64, dto ReturnDTO) (*Assignment, error) {
	actor, err := access.Check(ctx, access.Assignments, access.Update)
	if err != nil {
		return nil, err
	}
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}
	condition := custody.Condition(dto.ReturnCondition)
	now := s.now()

	var closed *assignmentDatamodel.Assignment
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		n, err := s.repo.CloseActive(ctx, id, map[string]interface{}{
			"returned_at":      now,
			"returned_by_id":   actor.UserID,
			"return_condition": condition,
			"return_notes":     dto.ReturnNotes,
		})
		if err != nil {
			return database.TranslateError(err, "failed to return assignment")
		}

		if closed, err = s.repo.GetByID(ctx, id); err != nil {
			return internal.NewInternalError("failed to load assignment", err)
		}
		if closed == nil {
			return internal.NewNotFoundError(fmt.Sprintf("assignment %d not found", id), internal.ErrCodeAssignmentNotFound)
		}
		if n == 0 {
			return internal.NewInvalidStateError(fmt.Sprintf("assignment %d is already %s", id, closed.Status))
		}

		n, err = s.scales.UpdateIfStatus(ctx, closed.ScaleID, custody.ScaleAssigned, map[string]interface{}{
			"status":    custody.ScaleAvailable,
			"condition": condition,
		})
		if err != nil {
			return database.TranslateError(err, "failed to update scale status")
		}
		if n == 0 {
			return internal.NewInvalidStateError(fmt.Sprintf("scale %d is not assigned", closed.ScaleID))
		}

		s.audit.Record(ctx, audit.Entry{
			ActorID:      actor.UserID,
			ActionType:   custody.ActionReturned,
			Description:  fmt.Sprintf("Scale returned in %s condition", condition),
			ScaleID:      &closed.ScaleID,
			AssignmentID: &closed.ID,
			Metadata: map[string]interface{}{
				"returnCondition": string(condition),
				"returnNotes":     dto.ReturnNotes,
				"unitId":          closed.UnitID,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromOr(ctx, s.logger).Info("scale returned", "assignment_id", closed.ID, "scale_id", closed.ScaleID, "condition", condition)
	obs.ReturnsTotal.WithLabelValues(string(condition)).Inc()
	s.publish(ctx, events.NewScaleReturnedEvent(closed.ID, closed.ScaleID, actor.UserID, string(condition)))
	return FromDataModel(closed), nil
}

func (s *Service) List(ctx context.Context) ([]*AssignmentWithDetails, error) {
	return s.list(ctx, nil)
}

func (s *Service) ListActive(ctx context.Context) ([]*AssignmentWithDetails, error) {
	active := custody.AssignmentActive
	return s.list(ctx, &active)
}

func (s *Service) list(ctx context.Context, status *custody.AssignmentStatus) ([]*AssignmentWithDetails, error) {
	if _, err := access.Check(ctx, access.Assignments); err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, internal.NewInternalError("failed to list assignments", err)
	}
	return s.withDetails(ctx, rows)
}

func (s *Service) Get(ctx context.Context, id int64) (*AssignmentWithDetails, error) {
	if _, err := access.Check(ctx, access.Assignments); err != nil {
		return nil, err
	}
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("failed to load assignment", err)
	}
	if row == nil {
		return nil, internal.NewNotFoundError(fmt.Sprintf("assignment %d not found", id), internal.ErrCodeAssignmentNotFound)
	}
	out, err := s.withDetails(ctx, []*assignmentDatamodel.Assignment{row})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (s *Service) withDetails(ctx context.Context, rows []*assignmentDatamodel.Assignment) ([]*AssignmentWithDetails, error) {
	now := s.now()
	scaleIDs := make([]int64, 0, len(rows))
	unitIDs := make([]int64, 0, len(rows))
	userIDs := make([]int64, 0, len(rows)*2)
	for _, row := range rows {
		scaleIDs = append(scaleIDs, row.ScaleID)
		unitIDs = append(unitIDs, row.UnitID)
		userIDs = append(userIDs, row.AssignedByID)
		if row.ReturnedByID != nil {
			userIDs = append(userIDs, *row.ReturnedByID)
		}
	}

	scaleRows, err := s.scales.GetByIDs(ctx, scaleIDs)
	if err != nil {
		return nil, internal.NewInternalError("failed to load scales", err)
	}
	scales := make(map[int64]*scale.Scale, len(scaleRows))
	for _, row := range scaleRows {
		scales[row.ID] = scale.FromDataModel(row, now)
	}
	units, err := s.units.Summaries(ctx, unitIDs)
	if err != nil {
		return nil, err
	}
	users, err := s.users.Summaries(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	out := make([]*AssignmentWithDetails, 0, len(rows))
	for _, row := range rows {
		a := FromDataModel(row)
		item := &AssignmentWithDetails{
			Assignment:    a,
			Overdue:       a.IsOverdue(now),
			DisplayStatus: a.EffectiveStatus(now),
			Scale:         scales[a.ScaleID],
			Unit:          units[a.UnitID],
			AssignedBy:    users[a.AssignedByID],
		}
		if a.ReturnedByID != nil {
			item.ReturnedBy = users[*a.ReturnedByID]
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *Service) loadScale(ctx context.Context, id int64) (*scaleDatamodel.Scale, error) {
	row, err := s.scales.GetByID(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("failed to load scale", err)
	}
	if row == nil {
		return nil, internal.NewNotFoundError(fmt.Sprintf("scale %d not found", id), internal.ErrCodeScaleNotFound)
	}
	return row, nil
}

func (s *Service) loadUnit(ctx context.Context, id int64) (*unit.Summary, error) {
	found, err := s.units.Summaries(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	u, ok := found[id]
	if !ok {
		return nil, internal.NewNotFoundError(fmt.Sprintf("unit %d not found", id), internal.ErrCodeUnitNotFound)
	}
	if !u.IsActive {
		return nil, internal.NewInvalidStateError(fmt.Sprintf("unit %s is inactive", u.Code))
	}
	return u, nil
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		logger.FromOr(ctx, s.logger).Warn("event publish failed", "event_type", e.EventType(), "error", err)
	}
}
