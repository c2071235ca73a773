package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/frahmantamala/scale-custody/internal/calibration"
	"github.com/frahmantamala/scale-custody/internal/core/custody"
	"github.com/frahmantamala/scale-custody/internal/dashboard"
)

const (
	countScales   = `SELECT COUNT(*) FROM scales`
	countInField  = `SELECT COUNT(*) FROM scales WHERE status = ?`
	countExpiring = `SELECT COUNT(*) FROM scales WHERE next_calibration_date IS NOT NULL AND next_calibration_date > ? AND next_calibration_date <= ?`
	countExpired  = `SELECT COUNT(*) FROM scales WHERE next_calibration_date IS NOT NULL AND next_calibration_date <= ?`

	selectNextDue = `SELECT next_calibration_date FROM scales
		WHERE next_calibration_date IS NOT NULL AND next_calibration_date > ?
		ORDER BY next_calibration_date ASC
		LIMIT 1`

	selectDue = `SELECT id, scale_id, model, status, location, next_calibration_date
		FROM scales
		WHERE next_calibration_date IS NOT NULL AND next_calibration_date <= ? AND status <> ?
		ORDER BY next_calibration_date ASC, id ASC`
)

// DashboardRepository runs the read-side aggregates with sqlx so they share
// the server's connection pool without going through the ORM.
type DashboardRepository struct {
	db *sqlx.DB
}

func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// Stats issues the four counts at now. The expiring range excludes now
// itself so a scale is never both expiring and expired.
func (r *DashboardRepository) Stats(ctx context.Context, now time.Time) (dashboard.Stats, error) {
	now = now.UTC()
	var stats dashboard.Stats

	counts := []struct {
		dest  *int64
		query string
		args  []interface{}
	}{
		{&stats.TotalUnits, countScales, nil},
		{&stats.InField, countInField, []interface{}{string(custody.ScaleAssigned)}},
		{&stats.Expiring, countExpiring, []interface{}{now, now.Add(calibration.WarningWindow)}},
		{&stats.Expired, countExpired, []interface{}{now}},
	}
	for _, c := range counts {
		if err := r.db.GetContext(ctx, c.dest, r.db.Rebind(c.query), c.args...); err != nil {
			return dashboard.Stats{}, fmt.Errorf("dashboard count: %w", err)
		}
	}
	return stats, nil
}

// CalibrationDue lists non-retired scales due on or before horizon, most
// urgent first.
func (r *DashboardRepository) CalibrationDue(ctx context.Context, horizon time.Time) ([]dashboard.DueScale, error) {
	var rows []dashboard.DueScale
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(selectDue), horizon.UTC(), string(custody.ScaleRetired))
	if err != nil {
		return nil, fmt.Errorf("calibration due: %w", err)
	}
	return rows, nil
}

// NextStatsChange finds when the counts computed at now stop holding: the
// earliest due date after now (a scale turns expired) or the earliest due
// date beyond the warning window, shifted back by it (a scale turns expiring).
func (r *DashboardRepository) NextStatsChange(ctx context.Context, now time.Time) (*time.Time, error) {
	now = now.UTC()
	boundaries := []struct {
		after time.Time
		shift time.Duration
	}{
		{now, 0},
		{now.Add(calibration.WarningWindow), -calibration.WarningWindow},
	}

	var next *time.Time
	for _, b := range boundaries {
		var due time.Time
		err := r.db.GetContext(ctx, &due, r.db.Rebind(selectNextDue), b.after)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("next calibration boundary: %w", err)
		}
		at := due.UTC().Add(b.shift)
		if next == nil || at.Before(*next) {
			next = &at
		}
	}
	return next, nil
}
