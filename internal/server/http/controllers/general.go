package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rzbill/logwindow/internal/runtime"
)

// GeneralController serves process-level endpoints.
type GeneralController struct {
	rt *runtime.Runtime
}

// NewGeneralController creates a new general controller.
func NewGeneralController(rt *runtime.Runtime) *GeneralController {
	return &GeneralController{rt: rt}
}

// RegisterRoutes registers general routes with the given router.
func (c *GeneralController) RegisterRoutes(r chi.Router) {
	r.Get("/v1/healthz", c.handleHealth)
}

type healthResp struct {
	Status     string `json:"status"`
	Backend    string `json:"backend"`
	MaxBacklog int    `json:"maxBacklog"`
	Count      int64  `json:"count"`
}

// handleHealth pings the backend and reports the window fill.
//
// 200 {"status":"ok",...} when healthy, 503 {"error":"not_serving"} otherwise.
func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.rt.CheckHealth(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_serving")
		return
	}
	n, err := c.rt.Store().Count(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, healthResp{
		Status:     "ok",
		Backend:    c.rt.Config().Backend,
		MaxBacklog: c.rt.Store().MaxBacklog(),
		Count:      n,
	})
}
