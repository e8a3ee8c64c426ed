package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status  string  `json:"status"` // "ok" or "running"
	Uptime  float64 `json:"uptime_seconds"`
	Running bool    `json:"running"`
}

// handleHealth returns an http.HandlerFunc for GET /health. The gateway is
// healthy whenever it can answer; the payload says whether a run is active.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status: "ok",
			Uptime: time.Since(g.startedAt).Truncate(time.Second).Seconds(),
		}
		if g.engine != nil {
			resp.Running = g.engine.Status().Running
			if resp.Running {
				resp.Status = "running"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
