package auth

import (
	"strings"

	"github.com/frahmantamala/scale-custody/internal"
	"github.com/frahmantamala/scale-custody/internal/core/common/validation"
)

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	DodID    string `json:"dodId" validate:"required,max=50"`
	Password string `json:"password" validate:"required,max=72"`
}

func (d *LoginDTO) Validate() *internal.AppError {
	d.DodID = strings.TrimSpace(d.DodID)
	return validation.Struct(d)
}
