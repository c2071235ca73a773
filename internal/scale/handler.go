package scale

import (
	"context"
	"net/http"

	"github.com/frahmantamala/scale-custody/internal/transport"
)

type ServiceAPI interface {
	List(ctx context.Context) ([]*ScaleWithAssignment, error)
	ListAvailable(ctx context.Context) ([]*Scale, error)
	Get(ctx context.Context, id int64) (*ScaleWithAssignment, error)
	Create(ctx context.Context, dto CreateScaleDTO) (*Scale, error)
	Update(ctx context.Context, id int64, dto UpdateScaleDTO) (*Scale, error)
	Calibrate(ctx context.Context, id int64, dto CalibrateScaleDTO) (*Scale, error)
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

// ListScales handles GET /scales
func (h *Handler) ListScales(w http.ResponseWriter, r *http.Request) {
	scales, err := h.Service.List(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ScalesResponse{Scales: scales})
}

// ListAvailableScales handles GET /scales/available
func (h *Handler) ListAvailableScales(w http.ResponseWriter, r *http.Request) {
	scales, err := h.Service.ListAvailable(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, AvailableScalesResponse{Scales: scales})
}

// GetScale handles GET /scales/{id}
func (h *Handler) GetScale(w http.ResponseWriter, r *http.Request) {
	id, appErr := h.ParseIDParam(r, "id")
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	s, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, s)
}

// CreateScale handles POST /scales
func (h *Handler) CreateScale(w http.ResponseWriter, r *http.Request) {
	var dto CreateScaleDTO
	if appErr := h.DecodeJSON(r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	s, err := h.Service.Create(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, s)
}

// UpdateScale handles PATCH /scales/{id}
func (h *Handler) UpdateScale(w http.ResponseWriter, r *http.Request) {
	id, appErr := h.ParseIDParam(r, "id")
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	var dto UpdateScaleDTO
	if appErr := h.DecodeJSON(r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	s, err := h.Service.Update(r.Context(), id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, s)
}

// CalibrateScale handles POST /scales/{id}/calibrate
func (h *Handler) CalibrateScale(w http.ResponseWriter, r *http.Request) {
	id, appErr := h.ParseIDParam(r, "id")
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	var dto CalibrateScaleDTO
	if r.ContentLength != 0 {
		if appErr := h.DecodeJSON(r, &dto); appErr != nil {
			h.WriteAppError(w, appErr)
			return
		}
	}

	s, err := h.Service.Calibrate(r.Context(), id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, s)
}
