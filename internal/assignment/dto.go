package assignment

import (
	"strings"
	"time"

	"github.com/frahmantamala/scale-custody/internal"
	"github.com/frahmantamala/scale-custody/internal/core/common/jsontime"
	"github.com/frahmantamala/scale-custody/internal/core/common/validation"
)

type AssignDTO struct {
	ScaleID              int64          `json:"scaleId" validate:"required,gt=0"`
	UnitID               int64          `json:"unitId" validate:"required,gt=0"`
	AssignedToPersonName string         `json:"assignedToPersonName" validate:"required,max=255"`
	ExpectedReturnDate   *jsontime.Time `json:"expectedReturnDate"`
	AssignmentNotes      *string        `json:"assignmentNotes" validate:"omitempty,max=2000"`
	Location             *string        `json:"location" validate:"omitempty,max=255"`
}

// Validate checks the request. An expected return date may be today but
// not earlier.
func (d *AssignDTO) Validate(now time.Time) *internal.AppError {
	d.AssignedToPersonName = strings.TrimSpace(d.AssignedToPersonName)
	if appErr := validation.Struct(d); appErr != nil {
		return appErr
	}
	if due := d.ExpectedReturnDate.Std(); due != nil {
		today := now.UTC().Truncate(24 * time.Hour)
		if due.Before(today) {
			return internal.NewValidationFieldError("expectedReturnDate", "expectedReturnDate cannot be in the past", internal.ErrCodeInvalidDate)
		}
	}
	return nil
}

type ReturnDTO struct {
	ReturnCondition string  `json:"returnCondition" validate:"required,oneof=excellent good fair needs_maintenance damaged"`
	ReturnNotes     *string `json:"returnNotes" validate:"omitempty,max=2000"`
}

func (d *ReturnDTO) Validate() *internal.AppError {
	return validation.Struct(d)
}

type AssignmentsResponse struct {
	Assignments []*AssignmentWithDetails `json:"assignments"`
}
