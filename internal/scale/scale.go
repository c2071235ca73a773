package scale

import (
	"time"

	"github.com/frahmantamala/scale-custody/internal/calibration"
	"github.com/frahmantamala/scale-custody/internal/core/custody"
	scaleDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/scale"
	"github.com/frahmantamala/scale-custody/internal/unit"
	"github.com/frahmantamala/scale-custody/internal/user"
)

type Scale struct {
	ID                  int64               `json:"id"`
	ScaleID             string              `json:"scaleId"`
	SerialNumber        string              `json:"serialNumber"`
	Model               string              `json:"model"`
	Manufacturer        string              `json:"manufacturer"`
	Capacity            string              `json:"capacity"`
	Status              custody.ScaleStatus `json:"status"`
	Location            *string             `json:"location,omitempty"`
	CalibrationDate     *time.Time          `json:"calibrationDate,omitempty"`
	NextCalibrationDate *time.Time          `json:"nextCalibrationDate,omitempty"`
	CalibrationInterval int                 `json:"calibrationInterval"`
	Condition           custody.Condition   `json:"condition"`
	Notes               *string             `json:"notes,omitempty"`
	Calibration         calibration.Result  `json:"calibration"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}

func (s *Scale) IsAssigned() bool {
	return s.Status == custody.ScaleAssigned
}

// CurrentAssignment is the active custody period shown alongside a scale.
type CurrentAssignment struct {
	ID                   int64         `json:"id"`
	AssignedToPersonName string        `json:"assignedToPersonName"`
	AssignedAt           time.Time     `json:"assignedAt"`
	ExpectedReturnDate   *time.Time    `json:"expectedReturnDate,omitempty"`
	Location             *string       `json:"location,omitempty"`
	Overdue              bool          `json:"overdue"`
	Unit                 *unit.Summary `json:"unit,omitempty"`
	AssignedBy           *user.Summary `json:"assignedBy,omitempty"`
}

type ScaleWithAssignment struct {
	*Scale
	CurrentAssignment *CurrentAssignment `json:"currentAssignment,omitempty"`
}

// FromDataModel converts a stored scale, evaluating its calibration at now.
func FromDataModel(m *scaleDatamodel.Scale, now time.Time) *Scale {
	return &Scale{
		ID:                  m.ID,
		ScaleID:             m.ScaleID,
		SerialNumber:        m.SerialNumber,
		Model:               m.Model,
		Manufacturer:        m.Manufacturer,
		Capacity:            m.Capacity,
		Status:              m.Status,
		Location:            m.Location,
		CalibrationDate:     m.CalibrationDate,
		NextCalibrationDate: m.NextCalibrationDate,
		CalibrationInterval: m.CalibrationInterval,
		Condition:           m.Condition,
		Notes:               m.Notes,
		Calibration:         calibration.Evaluate(m.NextCalibrationDate, now),
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}
