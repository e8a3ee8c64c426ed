package gateway

import (
	"github.com/prometheus/client_golang/prometheus"

	"seriesrelay/internal/relay"
)

// Metrics exports relay progress as Prometheus gauges. Each Gateway carries
// its own registry so tests can build instances freely.
type Metrics struct {
	registry *prometheus.Registry

	running      prometheus.Gauge
	seriesDone   prometheus.Gauge
	seasonsDone  prometheus.Gauge
	filesRelayed prometheus.Gauge
	skipped      prometheus.Gauge
	updates      prometheus.Counter
}

// NewMetrics builds and registers the relay gauges.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_running",
			Help: "Whether a relay run is currently active.",
		}),
		seriesDone: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_series_done",
			Help: "Series completed in the current or last run.",
		}),
		seasonsDone: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_seasons_done",
			Help: "Seasons completed in the current or last run.",
		}),
		filesRelayed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_files_relayed",
			Help: "Files forwarded to the destination in the current or last run.",
		}),
		skipped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_files_skipped",
			Help: "Duplicate files skipped in the current or last run.",
		}),
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_status_updates_total",
			Help: "Status change notifications received from the engine.",
		}),
	}
	reg.MustRegister(m.running, m.seriesDone, m.seasonsDone, m.filesRelayed, m.skipped, m.updates)
	return m
}

// Observe records a status snapshot.
func (m *Metrics) Observe(s relay.Status) {
	if s.Running {
		m.running.Set(1)
	} else {
		m.running.Set(0)
	}
	m.seriesDone.Set(float64(s.SeriesDone))
	m.seasonsDone.Set(float64(s.SeasonsDone))
	m.filesRelayed.Set(float64(s.FilesRelayed))
	m.skipped.Set(float64(s.Skipped))
	m.updates.Inc()
}
