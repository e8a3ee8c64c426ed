package relay

import (
	"sync"
	"time"
)

// Phase names the engine's current activity.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseScanning   Phase = "scanning"
	PhaseJoining    Phase = "joining"
	PhaseClicking   Phase = "clicking"
	PhaseCollecting Phase = "collecting"
	PhaseForwarding Phase = "forwarding"
)

// Status is a snapshot of engine progress, served by the gateway and
// echoed by the control bot.
type Status struct {
	Running       bool      `json:"running"`
	Phase         Phase     `json:"phase"`
	Session       string    `json:"session,omitempty"`
	StartedAt     time.Time `json:"started_at,omitzero"`
	CurrentSeries string    `json:"current_series,omitempty"`
	CurrentSeason string    `json:"current_season,omitempty"`
	SeriesDone    int       `json:"series_done"`
	SeasonsDone   int       `json:"seasons_done"`
	FilesRelayed  int       `json:"files_relayed"`
	Skipped       int       `json:"skipped"`
	LastError     string    `json:"last_error,omitempty"`
}

// tracker guards the mutable status and fans updates out to a listener.
type tracker struct {
	mu     sync.Mutex
	status Status
	notify func(Status)
}

func (t *tracker) snapshot() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *tracker) update(fn func(*Status)) {
	t.mu.Lock()
	fn(&t.status)
	s := t.status
	notify := t.notify
	t.mu.Unlock()

	if notify != nil {
		notify(s)
	}
}
