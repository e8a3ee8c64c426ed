// Package gateway exposes the relay's state over HTTP: health and status
// endpoints, Prometheus metrics, and a WebSocket progress stream.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"seriesrelay/internal/relay"
)

const shutdownTimeout = 10 * time.Second

// StatusSource provides the current relay status for /status and /health.
type StatusSource interface {
	Status() relay.Status
}

// Gateway is the HTTP surface of the relay. It is a leaf component, nothing
// imports it.
type Gateway struct {
	listen    string
	authToken string
	engine    StatusSource
	logger    *slog.Logger
	server    *http.Server
	metrics   *Metrics
	hub       *progressHub
	startedAt time.Time
}

// New builds a Gateway listening on listen. authToken, when non-empty, gates
// everything except /health behind bearer auth.
func New(listen, authToken string, engine StatusSource, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		listen:    listen,
		authToken: authToken,
		engine:    engine,
		logger:    logger,
		metrics:   NewMetrics(),
		hub:       newProgressHub(logger),
	}
}

// Notify records a status change in the metrics and pushes it to every
// connected WebSocket client. It is safe for concurrent use.
func (g *Gateway) Notify(s relay.Status) {
	g.metrics.Observe(s)
	g.hub.broadcast(s)
}

// Start binds the listener and serves in the background.
func (g *Gateway) Start(ctx context.Context) error {
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.listen,
		Handler:      g.buildRouter(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", g.listen)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.listen)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully and disconnects stream clients.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	g.hub.closeAll()
	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
