// Package dashboard derives fleet-wide figures from current scale state.
package dashboard

import (
	"time"

	"github.com/frahmantamala/scale-custody/internal/calibration"
	"github.com/frahmantamala/scale-custody/internal/core/custody"
)

// Stats are independent counts. TotalUnits counts scales, not
// organizational units.
type Stats struct {
	TotalUnits int64 `json:"totalUnits" db:"total_units"`
	InField    int64 `json:"inField" db:"in_field"`
	Expiring   int64 `json:"expiring" db:"expiring"`
	Expired    int64 `json:"expired" db:"expired"`
}

// DueScale is a scale whose calibration is due within the warning window
// or already lapsed.
type DueScale struct {
	ID                  int64               `db:"id"`
	ScaleID             string              `db:"scale_id"`
	Model               string              `db:"model"`
	Status              custody.ScaleStatus `db:"status"`
	Location            *string             `db:"location"`
	NextCalibrationDate time.Time           `db:"next_calibration_date"`
}

type Alert struct {
	ID                  int64               `json:"id"`
	ScaleID             string              `json:"scaleId"`
	Model               string              `json:"model"`
	Status              custody.ScaleStatus `json:"status"`
	Location            *string             `json:"location,omitempty"`
	NextCalibrationDate time.Time           `json:"nextCalibrationDate"`
	Calibration         calibration.Result  `json:"calibration"`
}

func NewAlert(d DueScale, now time.Time) *Alert {
	next := d.NextCalibrationDate.UTC()
	return &Alert{
		ID:                  d.ID,
		ScaleID:             d.ScaleID,
		Model:               d.Model,
		Status:              d.Status,
		Location:            d.Location,
		NextCalibrationDate: next,
		Calibration:         calibration.Evaluate(&next, now),
	}
}

type AlertsResponse struct {
	Alerts []*Alert `json:"alerts"`
	Count  int      `json:"count"`
}
