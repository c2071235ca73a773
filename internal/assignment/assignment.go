package assignment

import (
	"time"

	"github.com/frahmantamala/scale-custody/internal/core/custody"
	assignmentDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/assignment"
	"github.com/frahmantamala/scale-custody/internal/scale"
	"github.com/frahmantamala/scale-custody/internal/unit"
	"github.com/frahmantamala/scale-custody/internal/user"
)

type Assignment struct {
	ID                   int64                    `json:"id"`
	ScaleID              int64                    `json:"scaleId"`
	UnitID               int64                    `json:"unitId"`
	AssignedToPersonName string                   `json:"assignedToPersonName"`
	AssignedByID         int64                    `json:"assignedById"`
	AssignedAt           time.Time                `json:"assignedAt"`
	ExpectedReturnDate   *time.Time               `json:"expectedReturnDate,omitempty"`
	ReturnedAt           *time.Time               `json:"returnedAt,omitempty"`
	ReturnedByID         *int64                   `json:"returnedById,omitempty"`
	ReturnCondition      *custody.Condition       `json:"returnCondition,omitempty"`
	AssignmentNotes      *string                  `json:"assignmentNotes,omitempty"`
	ReturnNotes          *string                  `json:"returnNotes,omitempty"`
	Status               custody.AssignmentStatus `json:"status"`
	Location             *string                  `json:"location,omitempty"`
}

func (a *Assignment) IsActive() bool {
	return a.Status == custody.AssignmentActive
}

// IsOverdue reports whether an active assignment is past its expected
// return date. Overdue never blocks a return.
func (a *Assignment) IsOverdue(now time.Time) bool {
	return a.IsActive() && custody.ReturnOverdue(a.ExpectedReturnDate, now)
}

// EffectiveStatus is the stored status, or overdue for late active assignments.
func (a *Assignment) EffectiveStatus(now time.Time) custody.AssignmentStatus {
	if a.IsOverdue(now) {
		return custody.AssignmentOverdue
	}
	return a.Status
}

// AssignmentWithDetails is the read model returned by listings: the
// assignment joined with its scale, unit and the users involved.
type AssignmentWithDetails struct {
	*Assignment
	Overdue       bool                     `json:"overdue"`
	DisplayStatus custody.AssignmentStatus `json:"displayStatus"`
	Scale         *scale.Scale             `json:"scale,omitempty"`
	Unit          *unit.Summary            `json:"unit,omitempty"`
	AssignedBy    *user.Summary            `json:"assignedBy,omitempty"`
	ReturnedBy    *user.Summary            `json:"returnedBy,omitempty"`
}

func FromDataModel(m *assignmentDatamodel.Assignment) *Assignment {
	return &Assignment{
		ID:                   m.ID,
		ScaleID:              m.ScaleID,
		UnitID:               m.UnitID,
		AssignedToPersonName: m.AssignedToPersonName,
		AssignedByID:         m.AssignedByID,
		AssignedAt:           m.AssignedAt,
		ExpectedReturnDate:   m.ExpectedReturnDate,
		ReturnedAt:           m.ReturnedAt,
		ReturnedByID:         m.ReturnedByID,
		ReturnCondition:      m.ReturnCondition,
		AssignmentNotes:      m.AssignmentNotes,
		ReturnNotes:          m.ReturnNotes,
		Status:               m.Status,
		Location:             m.Location,
	}
}
