package unit

import (
	"strings"

	"github.com/frahmantamala/scale-custody/internal"
	"github.com/frahmantamala/scale-custody/internal/core/common/validation"
)

type CreateUnitDTO struct {
	Name        string  `json:"name"`
	Code        string  `json:"code"`
	Description *string `json:"description"`
}

func (d *CreateUnitDTO) Validate() *internal.AppError {
	d.Name = strings.TrimSpace(d.Name)
	d.Code = strings.ToUpper(strings.TrimSpace(d.Code))

	v := validation.NewValidator()
	v.Field("name", d.Name).Required().MaxLength(100)
	v.Field("code", d.Code).Required().MaxLength(20)
	if d.Description != nil {
		v.Field("description", *d.Description).MaxLength(1000)
	}
	return v.Validate()
}

type UnitsResponse struct {
	Units []*Unit `json:"units"`
}
