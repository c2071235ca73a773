package scale

import (
	"strings"

	"github.com/frahmantamala/scale-custody/internal"
	"github.com/frahmantamala/scale-custody/internal/core/common/jsontime"
	"github.com/frahmantamala/scale-custody/internal/core/common/validation"
)

type CreateScaleDTO struct {
	ScaleID             string         `json:"scaleId" validate:"required,max=50"`
	SerialNumber        string         `json:"serialNumber" validate:"required,max=100"`
	Model               string         `json:"model" validate:"required,max=200"`
	Manufacturer        string         `json:"manufacturer" validate:"required,max=100"`
	Capacity            string         `json:"capacity" validate:"required,max=50"`
	Status              *string        `json:"status" validate:"omitempty,oneof=available maintenance retired"`
	Location            *string        `json:"location" validate:"omitempty,max=255"`
	CalibrationDate     *jsontime.Time `json:"calibrationDate"`
	NextCalibrationDate *jsontime.Time `json:"nextCalibrationDate"`
	CalibrationInterval *int           `json:"calibrationInterval" validate:"omitempty,gt=0,max=3650"`
	Condition           *string        `json:"condition" validate:"omitempty,oneof=excellent good fair needs_maintenance damaged"`
	Notes               *string        `json:"notes" validate:"omitempty,max=2000"`
}

func (d *CreateScaleDTO) Validate() *internal.AppError {
	d.ScaleID = strings.TrimSpace(d.ScaleID)
	d.SerialNumber = strings.TrimSpace(d.SerialNumber)
	d.Model = strings.TrimSpace(d.Model)
	d.Manufacturer = strings.TrimSpace(d.Manufacturer)
	d.Capacity = strings.TrimSpace(d.Capacity)
	return validation.Struct(d)
}

// UpdateScaleDTO is a partial update; nil fields are left untouched.
type UpdateScaleDTO struct {
	SerialNumber        *string        `json:"serialNumber" validate:"omitempty,min=1,max=100"`
	Model               *string        `json:"model" validate:"omitempty,min=1,max=200"`
	Manufacturer        *string        `json:"manufacturer" validate:"omitempty,min=1,max=100"`
	Capacity            *string        `json:"capacity" validate:"omitempty,min=1,max=50"`
	Status              *string        `json:"status" validate:"omitempty,oneof=available assigned maintenance retired"`
	Location            *string        `json:"location" validate:"omitempty,max=255"`
	CalibrationDate     *jsontime.Time `json:"calibrationDate"`
	NextCalibrationDate *jsontime.Time `json:"nextCalibrationDate"`
	CalibrationInterval *int           `json:"calibrationInterval" validate:"omitempty,gt=0,max=3650"`
	Condition           *string        `json:"condition" validate:"omitempty,oneof=excellent good fair needs_maintenance damaged"`
	Notes               *string        `json:"notes" validate:"omitempty,max=2000"`
}

func (d *UpdateScaleDTO) Empty() bool {
	return d.SerialNumber == nil && d.Model == nil && d.Manufacturer == nil && d.Capacity == nil &&
		d.Status == nil && d.Location == nil && d.CalibrationDate == nil && d.NextCalibrationDate == nil &&
		d.CalibrationInterval == nil && d.Condition == nil && d.Notes == nil
}

func (d *UpdateScaleDTO) Validate() *internal.AppError {
	if d.Empty() {
		return internal.NewValidationError("at least one field must be provided", internal.ErrCodeValidationFailed)
	}
	return validation.Struct(d)
}

type CalibrateScaleDTO struct {
	CalibrationDate     *jsontime.Time `json:"calibrationDate"`
	CalibrationInterval *int           `json:"calibrationInterval" validate:"omitempty,gt=0,max=3650"`
	Condition           *string        `json:"condition" validate:"omitempty,oneof=excellent good fair needs_maintenance damaged"`
	Notes               *string        `json:"notes" validate:"omitempty,max=2000"`
}

func (d *CalibrateScaleDTO) Validate() *internal.AppError {
	return validation.Struct(d)
}

type ScalesResponse struct {
	Scales []*ScaleWithAssignment `json:"scales"`
}

type AvailableScalesResponse struct {
	Scales []*Scale `json:"scales"`
}
