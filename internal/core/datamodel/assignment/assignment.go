package assignment

import (
	"time"

	"github.com/frahmantamala/scale-custody/internal/core/custody"
)

type Assignment struct {
	ID                   int64                    `gorm:"primaryKey"`
	ScaleID              int64                    `gorm:"column:scale_id;not null;index"`
	UnitID               int64                    `gorm:"column:unit_id;not null;index"`
	AssignedToPersonName string                   `gorm:"column:assigned_to_person_name;size:255;not null"`
	AssignedByID         int64                    `gorm:"column:assigned_by_id;not null"`
	AssignedAt           time.Time                `gorm:"column:assigned_at;not null"`
	ExpectedReturnDate   *time.Time               `gorm:"column:expected_return_date"`
	ReturnedAt           *time.Time               `gorm:"column:returned_at"`
	ReturnedByID         *int64                   `gorm:"column:returned_by_id"`
	ReturnCondition      *custody.Condition       `gorm:"column:return_condition;size:20"`
	AssignmentNotes      *string                  `gorm:"column:assignment_notes"`
	ReturnNotes          *string                  `gorm:"column:return_notes"`
	Status               custody.AssignmentStatus `gorm:"column:status;size:20;not null"`
	Location             *string                  `gorm:"column:location;size:255"`
}

func (Assignment) TableName() string {
	return "assignments"
}
