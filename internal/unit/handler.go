package unit

import (
	"context"
	"net/http"

	"github.com/frahmantamala/scale-custody/internal/transport"
)

type ServiceAPI interface {
	List(ctx context.Context) ([]*Unit, error)
	Create(ctx context.Context, dto CreateUnitDTO) (*Unit, error)
	Deactivate(ctx context.Context, id int64) (*Unit, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

// GetUnits handles GET /units
func (h *Handler) GetUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.Service.List(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, UnitsResponse{Units: units})
}

// CreateUnit handles POST /units
func (h *Handler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	var dto CreateUnitDTO
	if appErr := h.DecodeJSON(r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	u, err := h.Service.Create(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, u)
}

// DeactivateUnit handles DELETE /units/{id}
func (h *Handler) DeactivateUnit(w http.ResponseWriter, r *http.Request) {
	id, appErr := h.ParseIDParam(r, "id")
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	u, err := h.Service.Deactivate(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, u)
}
