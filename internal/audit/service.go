package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/scale-custody/internal"
	"github.com/frahmantamala/scale-custody/internal/core/access"
	"github.com/frahmantamala/scale-custody/internal/core/custody"
	auditDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/auditlog"
	"github.com/frahmantamala/scale-custody/internal/obs"
	"github.com/frahmantamala/scale-custody/pkg/logger"
)

type RepositoryAPI interface {
	// Create must leave an enclosing transaction usable when it fails.
	Create(ctx context.Context, log *auditDatamodel.AuditLog) error
	List(ctx context.Context, filter Filter) ([]*auditDatamodel.AuditLog, error)
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

var errInvalidEntry = errors.New("invalid audit entry")

func (e Entry) validate() error {
	if e.ActorID <= 0 {
		return fmt.Errorf("%w: actor id is required", errInvalidEntry)
	}
	if !e.ActionType.Valid() {
		return fmt.Errorf("%w: unknown action type %q", errInvalidEntry, e.ActionType)
	}
	if e.Description == "" {
		return fmt.Errorf("%w: description is required", errInvalidEntry)
	}
	return nil
}

// Record appends e within the caller's transaction, if any. A failed write
// is logged and counted but never propagated, so the documented mutation
// still commits.
func (s *Service) Record(ctx context.Context, e Entry) *AuditLog {
	log := logger.FromOr(ctx, s.logger)

	if err := e.validate(); err != nil {
		obs.AuditWriteFailuresTotal.Inc()
		log.Error("audit entry rejected", "error", err, "action_type", e.ActionType, "actor_id", e.ActorID)
		return nil
	}

	info := internal.RequestInfoFromContext(ctx)
	if e.IPAddress == "" {
		e.IPAddress = info.IPAddress
	}
	if e.UserAgent == "" {
		e.UserAgent = info.UserAgent
	}

	row := toDataModel(e)
	if err := s.repo.Create(ctx, row); err != nil {
		obs.AuditWriteFailuresTotal.Inc()
		log.Error("audit write failed",
			"error", err,
			"action_type", e.ActionType,
			"actor_id", e.ActorID,
			"scale_id", e.ScaleID,
			"assignment_id", e.AssignmentID)
		return nil
	}

	obs.AuditRecordsTotal.WithLabelValues(string(e.ActionType)).Inc()
	return FromDataModel(row)
}

func (s *Service) List(ctx context.Context, filter Filter) ([]*AuditLog, error) {
	if _, err := access.Check(ctx, access.Reports); err != nil {
		return nil, err
	}
	return s.list(ctx, filter)
}

// ListUnchecked serves trusted callers such as the CLI, which run without
// a request actor.
func (s *Service) ListUnchecked(ctx context.Context, filter Filter) ([]*AuditLog, error) {
	return s.list(ctx, filter)
}

func (s *Service) list(ctx context.Context, filter Filter) ([]*AuditLog, error) {
	if appErr := validateFilter(&filter); appErr != nil {
		return nil, appErr
	}

	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		logger.FromOr(ctx, s.logger).Error("failed to list audit logs", "error", err)
		return nil, internal.NewInternalError("failed to list audit logs", err)
	}

	out := make([]*AuditLog, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out, nil
}

func validateFilter(f *Filter) *internal.AppError {
	if f.ActionType != "" && !f.ActionType.Valid() {
		return internal.NewValidationFieldError("actionType",
			fmt.Sprintf("actionType must be one of: %v", custody.ActionTypes), internal.ErrCodeInvalidEnum)
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return internal.NewValidationFieldError("endDate", "endDate must not precede startDate", internal.ErrCodeInvalidDate)
	}
	if f.Limit < 0 {
		return internal.NewValidationFieldError("limit", "limit must be positive", internal.ErrCodeValidationFailed)
	}
	if f.Limit == 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	return nil
}
