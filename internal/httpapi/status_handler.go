package httpapi

import (
	"context"
	"net/http"
	"time"

	"travelmate/internal/logging"
	"travelmate/internal/utils"
	"travelmate/internal/widget"
)

type healthResponse struct {
	Status   string         `json:"status"`
	Storage  string         `json:"storage"`
	Sessions sessionsHealth `json:"sessions"`
	Widget   string         `json:"widget,omitempty"`
	Audit    *auditHealth   `json:"audit,omitempty"`
}

type sessionsHealth struct {
	Live     int `json:"live"`
	Capacity int `json:"capacity"`
}

type auditHealth struct {
	logging.ShipperStats
	PendingDeadLetters int `json:"pending_dead_letters"`
}

type healthChecker interface {
	Health(ctx context.Context) error
}

// handleHealth reports 503 when the settings store is unreachable
func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := d.Sessions.Stats()
	resp := healthResponse{
		Status:   "ok",
		Storage:  "ok",
		Sessions: sessionsHealth{Live: stats.Size, Capacity: stats.Capacity},
	}

	if hc, ok := d.Store.(healthChecker); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := hc.Health(ctx); err != nil {
			logging.Errorf("health: settings store: %v", err)
			resp.Status = "degraded"
			resp.Storage = "unavailable"
		}
	}
	if d.Widget != nil {
		resp.Widget = d.Widget.Status().State.String()
	}
	if d.Shipper != nil {
		resp.Audit = &auditHealth{ShipperStats: d.Shipper.Stats()}
		items, err := d.Shipper.GetDeadLetterItems(r.Context(), 0)
		if err != nil {
			logging.Warningf("health: audit dead letters: %v", err)
		}
		resp.Audit.PendingDeadLetters = len(items)
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	utils.RespondWithJSON(w, code, resp)
}

// handleWidget returns the widget loader status
func (d *Dependencies) handleWidget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if d.Widget == nil {
		utils.RespondWithJSON(w, http.StatusOK, widget.Status{State: widget.StateUnloaded})
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, d.Widget.Status())
}
