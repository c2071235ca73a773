package audit

import (
	"context"
	"net/http"
	"strconv"

	"github.com/frahmantamala/scale-custody/internal"
	"github.com/frahmantamala/scale-custody/internal/core/custody"
	"github.com/frahmantamala/scale-custody/internal/transport"
)

type ServiceAPI interface {
	List(ctx context.Context, filter Filter) ([]*AuditLog, error)
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

type AuditLogsResponse struct {
	AuditLogs []*AuditLog `json:"auditLogs"`
	Count     int         `json:"count"`
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	filter, appErr := h.parseFilter(r)
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	logs, err := h.Service.List(r.Context(), filter)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, AuditLogsResponse{AuditLogs: logs, Count: len(logs)})
}

func (h *Handler) parseFilter(r *http.Request) (Filter, *internal.AppError) {
	var (
		f      Filter
		appErr *internal.AppError
	)
	if f.UserID, appErr = h.QueryInt64(r, "userId"); appErr != nil {
		return f, appErr
	}
	if f.ScaleID, appErr = h.QueryInt64(r, "scaleId"); appErr != nil {
		return f, appErr
	}
	if f.AssignmentID, appErr = h.QueryInt64(r, "assignmentId"); appErr != nil {
		return f, appErr
	}
	if f.StartDate, appErr = h.QueryTime(r, "startDate"); appErr != nil {
		return f, appErr
	}
	if f.EndDate, appErr = h.QueryTime(r, "endDate"); appErr != nil {
		return f, appErr
	}
	f.ActionType = custody.ActionType(r.URL.Query().Get("actionType"))

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return f, internal.NewValidationFieldError("limit", "limit must be a positive integer", internal.ErrCodeValidationFailed)
		}
		f.Limit = limit
	}
	return f, nil
}
