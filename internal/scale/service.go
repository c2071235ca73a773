package scale

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
	"github.com/frahmantamala/scale-custody/internal/unit"
	"github.com/frahmantamala/scale-custody/internal/user"
	"github.com/frahmantamala/scale-custody/pkg/logger"
)

type RepositoryAPI interface {
	List(ctx context.Context) ([]*scaleDatamodel.Scale, error)
	ListAvailable(ctx context.Context, horizon time.Time) ([]*scaleDatamodel.Scale, error)
	GetByID(ctx context.Context, id int64) (*scaleDatamodel.Scale, error)
	Create(ctx context.Context, s *scaleDatamodel.Scale) error
	UpdateIfStatus(ctx context.Context, id int64, expected custody.ScaleStatus, fields map[string]interface{}) (int64, error)
	ActiveAssignments(ctx context.Context, scaleIDs []int64) ([]*assignmentDatamodel.Assignment, error)
}

type UnitDirectory interface {
	Summaries(ctx context.Context, ids []int64) (map[int64]*unit.Summary, error)
}

type UserDirectory interface {
	Summaries(ctx context.Context, ids []int64) (map[int64]*user.Summary, error)
}

type Service struct {
	repo   RepositoryAPI
	tx     database.Transactor
	audit  audit.Trail
	units  UnitDirectory
	users  UserDirectory
	events events.Publisher
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Service)

// WithClock overrides the time source used for calibration evaluation.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func NewService(repo RepositoryAPI, tx database.Transactor, trail audit.Trail, units UnitDirectory, users UserDirectory, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		tx:     tx,
		audit:  trail,
		units:  units,
		users:  users,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) List(ctx context.Context) ([]*ScaleWithAssignment, error) {
	if _, err := access.Check(ctx, access.Inventory); err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, internal.NewInternalError("failed to list scales", err)
	}
	return s.withAssignments(ctx, rows)
}

// ListAvailable returns the assignable pool: available scales whose
// calibration stays valid beyond the warning window.
func (s *Service) ListAvailable(ctx context.Context) ([]*Scale, error) {
	if _, err := access.Check(ctx, access.Inventory); err != nil {
		return nil, err
	}
	now := s.now()
	rows, err := s.repo.ListAvailable(ctx, calibration.AssignableHorizon(now))
	if err != nil {
		return nil, internal.NewInternalError("failed to list available scales", err)
	}
	out := make([]*Scale, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row, now))
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*ScaleWithAssignment, error) {
	if _, err := access.Check(ctx, access.Inventory); err != nil {
		return nil, err
	}
	row, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := s.withAssignments(ctx, []*scaleDatamodel.Scale{row})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (s *Service) load(ctx context.Context, id int64) (*scaleDatamodel.Scale, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("failed to load scale", err)
	}
	if row == nil {
		return nil, internal.NewNotFoundError(fmt.Sprintf("scale %d not found", id), internal.ErrCodeScaleNotFound)
	}
	return row, nil
}

// withAssignments stitches each scale to its active assignment, unit and
// assigning user using batch lookups.
func (s *Service) withAssignments(ctx context.Context, rows []*scaleDatamodel.Scale) ([]*ScaleWithAssignment, error) {
	now := s.now()
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	actives, err := s.repo.ActiveAssignments(ctx, ids)
	if err != nil {
		return nil, internal.NewInternalError("failed to load active assignments", err)
	}
	byScale := make(map[int64]*assignmentDatamodel.Assignment, len(actives))
	unitIDs := make([]int64, 0, len(actives))
	userIDs := make([]int64, 0, len(actives))
	for _, a := range actives {
		byScale[a.ScaleID] = a
		unitIDs = append(unitIDs, a.UnitID)
		userIDs = append(userIDs, a.AssignedByID)
	}

	units, err := s.units.Summaries(ctx, unitIDs)
	if err != nil {
		return nil, err
	}
	users, err := s.users.Summaries(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	out := make([]*ScaleWithAssignment, 0, len(rows))
	for _, row := range rows {
		item := &ScaleWithAssignment{Scale: FromDataModel(row, now)}
		if a, ok := byScale[row.ID]; ok {
			item.CurrentAssignment = &CurrentAssignment{
				ID:                   a.ID,
				AssignedToPersonName: a.AssignedToPersonName,
				AssignedAt:           a.AssignedAt,
				ExpectedReturnDate:   a.ExpectedReturnDate,
				Location:             a.Location,
				Overdue:              custody.ReturnOverdue(a.ExpectedReturnDate, now),
				Unit:                 units[a.UnitID],
				AssignedBy:           users[a.AssignedByID],
			}
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, dto CreateScaleDTO) (*Scale, error) {
	actor, err := access.Check(ctx, access.Inventory, access.Create)
	if err != nil {
		return nil, err
	}
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	row := &scaleDatamodel.Scale{
		ScaleID:             dto.ScaleID,
		SerialNumber:        dto.SerialNumber,
		Model:               dto.Model,
		Manufacturer:        dto.Manufacturer,
		Capacity:            dto.Capacity,
		Status:              custody.ScaleAvailable,
		Location:            dto.Location,
		CalibrationDate:     dto.CalibrationDate.Std(),
		NextCalibrationDate: dto.NextCalibrationDate.Std(),
		CalibrationInterval: calibration.DefaultIntervalDays,
		Condition:           custody.ConditionExcellent,
		Notes:               dto.Notes,
	}
	if dto.Status != nil {
		row.Status = custody.ScaleStatus(*dto.Status)
	}
	if dto.CalibrationInterval != nil {
		row.CalibrationInterval = *dto.CalibrationInterval
	}
	if dto.Condition != nil {
		row.Condition = custody.Condition(*dto.Condition)
	}
	if row.NextCalibrationDate == nil && row.CalibrationDate != nil {
		next := calibration.NextDue(*row.CalibrationDate, row.CalibrationInterval)
		row.NextCalibrationDate = &next
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, row); err != nil {
			return database.TranslateError(err, "failed to create scale")
		}
		s.audit.Record(ctx, audit.Entry{
			ActorID:     actor.UserID,
			ActionType:  custody.ActionCreated,
			Description: fmt.Sprintf("Scale created: %s (%s)", row.ScaleID, row.Model),
			ScaleID:     &row.ID,
			Metadata: map[string]interface{}{
				"scaleId":      row.ScaleID,
				"serialNumber": row.SerialNumber,
				"status":       string(row.Status),
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromOr(ctx, s.logger).Info("scale created", "scale_id", row.ScaleID, "id", row.ID)
	s.publish(ctx, events.NewScaleChangedEvent(row.ID, string(custody.ActionCreated)))
	return FromDataModel(row, s.now()), nil
}

// Update applies a partial edit. Status may move among available,
// maintenance and retired; the assigned status belongs to the assignment
// lifecycle and can be neither set nor left here.
func (s *Service) Update(ctx context.Context, id int64, dto UpdateScaleDTO) (*Scale, error) {
	actor, err := access.Check(ctx, access.Inventory, access.Update)
	if err != nil {
		return nil, err
	}
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	var (
		updated *scaleDatamodel.Scale
		changed bool
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.load(ctx, id)
		if err != nil {
			return err
		}

		if dto.Status != nil {
			target := custody.ScaleStatus(*dto.Status)
			if target == custody.ScaleAssigned && current.Status != custody.ScaleAssigned {
				return internal.NewInvalidStateError("status assigned can only be set by assigning the scale")
			}
			if current.Status == custody.ScaleAssigned && target != custody.ScaleAssigned {
				return internal.NewInvalidStateError(fmt.Sprintf("scale %s is assigned; return it before changing its status", current.ScaleID))
			}
		}

		fields, changes := diffScale(current, dto)
		if len(fields) == 0 {
			updated = current
			return nil
		}

		n, err := s.repo.UpdateIfStatus(ctx, id, current.Status, fields)
		if err != nil {
			return database.TranslateError(err, "failed to update scale")
		}
		if n == 0 {
			return internal.NewInvalidStateError(fmt.Sprintf("scale %s changed status concurrently; retry", current.ScaleID))
		}

		if updated, err = s.load(ctx, id); err != nil {
			return err
		}
		s.audit.Record(ctx, audit.Entry{
			ActorID:     actor.UserID,
			ActionType:  custody.ActionUpdated,
			Description: fmt.Sprintf("Scale updated: %s", updated.ScaleID),
			ScaleID:     &updated.ID,
			Metadata:    map[string]interface{}{"changes": changes},
		})
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.publish(ctx, events.NewScaleChangedEvent(id, string(custody.ActionUpdated)))
	}
	return FromDataModel(updated, s.now()), nil
}

func diffScale(current *scaleDatamodel.Scale, dto UpdateScaleDTO) (map[string]interface{}, map[string]interface{}) {
	fields := map[string]interface{}{}
	changes := map[string]interface{}{}
	set := func(column, name string, from, to interface{}) {
		fields[column] = to
		changes[name] = map[string]interface{}{"from": from, "to": to}
	}

	if dto.SerialNumber != nil && *dto.SerialNumber != current.SerialNumber {
		set("serial_number", "serialNumber", current.SerialNumber, *dto.SerialNumber)
	}
	if dto.Model != nil && *dto.Model != current.Model {
		set("model", "model", current.Model, *dto.Model)
	}
	if dto.Manufacturer != nil && *dto.Manufacturer != current.Manufacturer {
		set("manufacturer", "manufacturer", current.Manufacturer, *dto.Manufacturer)
	}
	if dto.Capacity != nil && *dto.Capacity != current.Capacity {
		set("capacity", "capacity", current.Capacity, *dto.Capacity)
	}
	if dto.Status != nil && custody.ScaleStatus(*dto.Status) != current.Status {
		set("status", "status", string(current.Status), *dto.Status)
	}
	if dto.Location != nil && !equalString(current.Location, dto.Location) {
		set("location", "location", current.Location, *dto.Location)
	}
	if dto.Condition != nil && custody.Condition(*dto.Condition) != current.Condition {
		set("condition", "condition", string(current.Condition), *dto.Condition)
	}
	if dto.Notes != nil && !equalString(current.Notes, dto.Notes) {
		set("notes", "notes", current.Notes, *dto.Notes)
	}

	interval := current.CalibrationInterval
	if dto.CalibrationInterval != nil && *dto.CalibrationInterval != current.CalibrationInterval {
		interval = *dto.CalibrationInterval
		set("calibration_interval", "calibrationInterval", current.CalibrationInterval, interval)
	}

	calibrated := current.CalibrationDate
	if cd := dto.CalibrationDate.Std(); cd != nil && !equalTime(current.CalibrationDate, cd) {
		calibrated = cd
		set("calibration_date", "calibrationDate", current.CalibrationDate, *cd)
	}

	// An explicit next date wins; otherwise a new calibration date or
	// interval moves the due date along with it.
	next := dto.NextCalibrationDate.Std()
	if next == nil && calibrated != nil {
		if _, moved := fields["calibration_date"]; moved || fields["calibration_interval"] != nil {
			due := calibration.NextDue(*calibrated, interval)
			next = &due
		}
	}
	if next != nil && !equalTime(current.NextCalibrationDate, next) {
		set("next_calibration_date", "nextCalibrationDate", current.NextCalibrationDate, *next)
	}

	return fields, changes
}

// Calibrate records a completed calibration and recomputes the due date.
func (s *Service) Calibrate(ctx context.Context, id int64, dto CalibrateScaleDTO) (*Scale, error) {
	actor, err := access.Check(ctx, access.Inventory, access.Update)
	if err != nil {
		return nil, err
	}
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	now := s.now()
	calibratedAt := now
	if cd := dto.CalibrationDate.Std(); cd != nil {
		calibratedAt = *cd
	}
	if calibratedAt.After(now) {
		return nil, internal.NewValidationFieldError("calibrationDate", "calibrationDate cannot be in the future", internal.ErrCodeInvalidDate)
	}

	var updated *scaleDatamodel.Scale
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == custody.ScaleRetired {
			return internal.NewInvalidStateError(fmt.Sprintf("scale %s is retired and cannot be calibrated", current.ScaleID))
		}

		interval := current.CalibrationInterval
		if dto.CalibrationInterval != nil {
			interval = *dto.CalibrationInterval
		}
		next := calibration.NextDue(calibratedAt, interval)

		fields := map[string]interface{}{
			"calibration_date":      calibratedAt,
			"next_calibration_date": next,
			"calibration_interval":  interval,
		}
		metadata := map[string]interface{}{
			"calibrationDate":     calibratedAt,
			"nextCalibrationDate": next,
			"calibrationInterval": interval,
		}
		if dto.Condition != nil {
			fields["condition"] = *dto.Condition
			metadata["condition"] = *dto.Condition
		}
		if dto.Notes != nil {
			fields["notes"] = *dto.Notes
			metadata["notes"] = *dto.Notes
		}

		n, err := s.repo.UpdateIfStatus(ctx, id, current.Status, fields)
		if err != nil {
			return database.TranslateError(err, "failed to calibrate scale")
		}
		if n == 0 {
			return internal.NewInvalidStateError(fmt.Sprintf("scale %s changed status concurrently; retry", current.ScaleID))
		}

		if updated, err = s.load(ctx, id); err != nil {
			return err
		}
		s.audit.Record(ctx, audit.Entry{
			ActorID:     actor.UserID,
			ActionType:  custody.ActionCalibrated,
			Description: fmt.Sprintf("Scale calibrated: %s, next due %s", updated.ScaleID, next.Format("2006-01-02")),
			ScaleID:     &updated.ID,
			Metadata:    metadata,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromOr(ctx, s.logger).Info("scale calibrated", "scale_id", updated.ScaleID, "next_due", updated.NextCalibrationDate)
	s.publish(ctx, events.NewScaleChangedEvent(id, string(custody.ActionCalibrated)))
	return FromDataModel(updated, now), nil
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		logger.FromOr(ctx, s.logger).Warn("event publish failed", "event_type", e.EventType(), "error", err)
	}
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
