package scale

import (
	"time"

	"github.com/frahmantamala/scale-custody/internal/core/custody"
)

type Scale struct {
	ID                  int64               `gorm:"primaryKey"`
	ScaleID             string              `gorm:"column:scale_id;size:50;uniqueIndex;not null"`
	SerialNumber        string              `gorm:"column:serial_number;size:100;uniqueIndex;not null"`
	Model               string              `gorm:"column:model;size:200;not null"`
	Manufacturer        string              `gorm:"column:manufacturer;size:100;not null"`
	Capacity            string              `gorm:"column:capacity;size:50;not null"`
	Status              custody.ScaleStatus `gorm:"column:status;size:20;not null;index"`
	Location            *string             `gorm:"column:location;size:255"`
	CalibrationDate     *time.Time          `gorm:"column:calibration_date"`
	NextCalibrationDate *time.Time          `gorm:"column:next_calibration_date;index"`
	CalibrationInterval int                 `gorm:"column:calibration_interval;not null"`
	Condition           custody.Condition   `gorm:"column:condition;size:20;not null"`
	Notes               *string             `gorm:"column:notes"`
	CreatedAt           time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Scale) TableName() string {
	return "scales"
}
