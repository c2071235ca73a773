// Package testdb opens throwaway SQLite databases carrying the full schema,
// plus fixture builders for the custody entities.
package testdb

import (
	"fmt"
	"sync/atomic"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/scale-custody/internal/core/custody"
	"github.com/frahmantamala/scale-custody/internal/core/database"
	scaleDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/scale"
	unitDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/unit"
	userDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/user"
)

var seq atomic.Int64

// Open returns an in-memory database. A single connection keeps every
// query, transactional or not, on the same memory store.
func Open() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), database.Config(gormlogger.Silent))
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func next() int64 {
	return seq.Add(1)
}

// MustUser inserts an active user with the given role. The stored hash is
// not a valid bcrypt value; use a real hash when a test logs in.
func MustUser(db *gorm.DB, role custody.Role) *userDatamodel.User {
	n := next()
	u := &userDatamodel.User{
		DodID:        fmt.Sprintf("DOD%06d", n),
		PasswordHash: "x",
		FirstName:    "Test",
		LastName:     fmt.Sprintf("User%d", n),
		Email:        fmt.Sprintf("user%d@example.mil", n),
		Role:         role,
		IsActive:     true,
	}
	if err := db.Create(u).Error; err != nil {
		panic(err)
	}
	return u
}

func MustUnit(db *gorm.DB, code string) *unitDatamodel.Unit {
	u := &unitDatamodel.Unit{
		Name:     "Unit " + code,
		Code:     code,
		IsActive: true,
	}
	if err := db.Create(u).Error; err != nil {
		panic(err)
	}
	return u
}

// MustScale inserts a scale in the given status whose next calibration is
// due at due (nil for unknown).
func MustScale(db *gorm.DB, status custody.ScaleStatus, due *time.Time) *scaleDatamodel.Scale {
	n := next()
	s := &scaleDatamodel.Scale{
		ScaleID:             fmt.Sprintf("SC-%04d", n),
		SerialNumber:        fmt.Sprintf("SN%08d", n),
		Model:               "PX-220",
		Manufacturer:        "Ohaus",
		Capacity:            "220g",
		Status:              status,
		NextCalibrationDate: utc(due),
		CalibrationInterval: 730,
		Condition:           custody.ConditionExcellent,
	}
	if err := db.Create(s).Error; err != nil {
		panic(err)
	}
	return s
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

// DaysFromNow is a UTC timestamp offset by whole days.
func DaysFromNow(days int) *time.Time {
	t := time.Now().UTC().Add(time.Duration(days) * 24 * time.Hour)
	return &t
}
