package dashboard

import (
	"context"
	"net/http"

	"github.com/frahmantamala/scale-custody/internal/transport"
)

type ServiceAPI interface {
	Stats(ctx context.Context) (*Stats, error)
	Alerts(ctx context.Context) ([]*Alert, error)
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

// GetStats handles GET /dashboard/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.Stats(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, stats)
}

// GetAlerts handles GET /dashboard/alerts
func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.Service.Alerts(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, AlertsResponse{Alerts: alerts, Count: len(alerts)})
}
