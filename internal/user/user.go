package user

import (
	"time"

	"github.com/frahmantamala/scale-custody/internal/core/custody"
	userDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/user"
)

type User struct {
	ID           int64        `json:"id"`
	DodID        string       `json:"dodId"`
	PasswordHash string       `json:"-"`
	FirstName    string       `json:"firstName"`
	LastName     string       `json:"lastName"`
	Email        string       `json:"email"`
	Role         custody.Role `json:"role"`
	IsActive     bool         `json:"isActive"`
	LastLoginAt  *time.Time   `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

func (u *User) CanLogin() bool {
	return u.IsActive
}

// Summary is the projection embedded in other read models.
type Summary struct {
	ID        int64        `json:"id"`
	DodID     string       `json:"dodId"`
	FirstName string       `json:"firstName"`
	LastName  string       `json:"lastName"`
	Role      custody.Role `json:"role"`
}

func (u *User) Summary() *Summary {
	return &Summary{
		ID:        u.ID,
		DodID:     u.DodID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
	}
}

func ToDataModel(u *User) *userDatamodel.User {
	return &userDatamodel.User{
		ID:           u.ID,
		DodID:        u.DodID,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        u.Email,
		Role:         u.Role,
		IsActive:     u.IsActive,
		LastLoginAt:  u.LastLoginAt,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:           u.ID,
		DodID:        u.DodID,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        u.Email,
		Role:         u.Role,
		IsActive:     u.IsActive,
		LastLoginAt:  u.LastLoginAt,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
