package user

import (
	"time"

	"github.com/frahmantamala/scale-custody/internal/core/custody"
)

type User struct {
	ID           int64        `gorm:"primaryKey"`
	DodID        string       `gorm:"column:dod_id;size:50;uniqueIndex;not null"`
	PasswordHash string       `gorm:"column:password_hash;not null"`
	FirstName    string       `gorm:"column:first_name;size:100;not null"`
	LastName     string       `gorm:"column:last_name;size:100;not null"`
	Email        string       `gorm:"column:email;size:255;uniqueIndex;not null"`
	Role         custody.Role `gorm:"column:role;size:20;not null"`
	IsActive     bool         `gorm:"column:is_active;not null"`
	LastLoginAt  *time.Time   `gorm:"column:last_login_at"`
	CreatedAt    time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}
