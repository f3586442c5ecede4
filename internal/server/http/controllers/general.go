package controllers

import (
	"net/http"

	"github.com/rzbill/taskboard/internal/runtime"
	channelsvc "github.com/rzbill/taskboard/internal/services/channels"
)

// GeneralController handles health and stats.
type GeneralController struct {
	rt *runtime.Runtime
	ch *channelsvc.Service
}

// NewGeneralController creates a new general controller.
func NewGeneralController(rt *runtime.Runtime, svc *channelsvc.Service) *GeneralController {
	return &GeneralController{rt: rt, ch: svc}
}

// RegisterRoutes registers:
//   - GET /v1/healthz
//   - GET /v1/stats
func (c *GeneralController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/healthz", c.handleHealth)
	mux.HandleFunc("/v1/stats", c.handleStats)
}

// handleHealth returns 200 {"status":"ok"} if healthy, 503 otherwise.
func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.rt.CheckHealth(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_serving")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (c *GeneralController) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	channels, err := c.ch.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to collect stats")
		return
	}
	writeJSON(w, statsResp{
		Channels:          channels,
		ActiveSubscribers: c.ch.ActiveSubscribers(),
		Storage:           c.rt.Storage(),
	})
}
