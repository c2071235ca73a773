package user

import (
	"strings"

	"github.com/frahmantamala/scale-custody/internal"
	"github.com/frahmantamala/scale-custody/internal/core/common/validation"
)

type CreateUserDTO struct {
	DodID     string `json:"dodId" validate:"required,max=50"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Role      string `json:"role" validate:"omitempty,oneof=admin technician auditor viewer"`
}

func (d *CreateUserDTO) Normalize() {
	d.DodID = strings.TrimSpace(d.DodID)
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
}

func (d *CreateUserDTO) Validate() *internal.AppError {
	d.Normalize()
	return validation.Struct(d)
}

// UpdateUserDTO carries a partial update; nil fields are left untouched.
type UpdateUserDTO struct {
	FirstName *string `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,min=1,max=100"`
	Email     *string `json:"email" validate:"omitempty,email,max=255"`
	Role      *string `json:"role" validate:"omitempty,oneof=admin technician auditor viewer"`
	IsActive  *bool   `json:"isActive"`
	Password  *string `json:"password" validate:"omitempty,min=8,max=72"`
}

func (d *UpdateUserDTO) Empty() bool {
	return d.FirstName == nil && d.LastName == nil && d.Email == nil &&
		d.Role == nil && d.IsActive == nil && d.Password == nil
}

func (d *UpdateUserDTO) Validate() *internal.AppError {
	if d.Empty() {
		return internal.NewValidationError("at least one field must be provided", internal.ErrCodeValidationFailed)
	}
	if d.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*d.Email))
		d.Email = &email
	}
	return validation.Struct(d)
}

type UsersResponse struct {
	Users []*User `json:"users"`
}
