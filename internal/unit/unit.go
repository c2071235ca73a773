package unit

import (
	"time"

	unitDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/unit"
)

type Unit struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description *string   `json:"description,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Summary is the projection embedded in assignment read models.
type Summary struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	IsActive bool   `json:"isActive"`
}

func (u *Unit) Summary() *Summary {
	return &Summary{ID: u.ID, Name: u.Name, Code: u.Code, IsActive: u.IsActive}
}

func NewUnit(name, code string, description *string) *Unit {
	return &Unit{
		Name:        name,
		Code:        code,
		Description: description,
		IsActive:    true,
	}
}

func ToDataModel(u *Unit) *unitDatamodel.Unit {
	return &unitDatamodel.Unit{
		ID:          u.ID,
		Name:        u.Name,
		Code:        u.Code,
		Description: u.Description,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
	}
}

func FromDataModel(u *unitDatamodel.Unit) *Unit {
	return &Unit{
		ID:          u.ID,
		Name:        u.Name,
		Code:        u.Code,
		Description: u.Description,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
	}
}
