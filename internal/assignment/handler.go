package assignment

import (
	"context"
	"net/http"

	"github.com/frahmantamala/scale-custody/internal/transport"
)

type ServiceAPI interface {
	List(ctx context.Context) ([]*AssignmentWithDetails, error)
	ListActive(ctx context.Context) ([]*AssignmentWithDetails, error)
	Get(ctx context.Context, id int64) (*AssignmentWithDetails, error)
	Assign(ctx context.Context, dto AssignDTO) (*Assignment, error)
	Return(ctx context.Context, id int64, dto ReturnDTO) (*Assignment, error)
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

// ListAssignments handles GET /assignments
func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.List(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, AssignmentsResponse{Assignments: list})
}

// ListActiveAssignments handles GET /assignments/active
func (h *Handler) ListActiveAssignments(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListActive(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, AssignmentsResponse{Assignments: list})
}

// GetAssignment handles GET /assignments/{id}
func (h *Handler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	id, appErr := h.ParseIDParam(r, "id")
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	a, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, a)
}

// CreateAssignment handles POST /assignments
func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var dto AssignDTO
	if appErr := h.DecodeJSON(r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	a, err := h.Service.Assign(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, a)
}

// ReturnAssignment handles PATCH /assignments/{id}/return
func (h *Handler) ReturnAssignment(w http.ResponseWriter, r *http.Request) {
	id, appErr := h.ParseIDParam(r, "id")
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	var dto ReturnDTO
	if appErr := h.DecodeJSON(r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	a, err := h.Service.Return(r.Context(), id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, a)
}
