package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"seriesrelay/internal/relay"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime float64      `json:"uptime_seconds"`
	Relay  relay.Status `json:"relay"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime: time.Since(g.startedAt).Truncate(time.Second).Seconds(),
		}
		if g.engine != nil {
			resp.Relay = g.engine.Status()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
