// Package gateway exposes the consultation daemon over HTTP: health and
// readiness probes, the consult endpoint, the tool catalog with live
// descriptor patching, a websocket feed of invocation events, and the
// Prometheus scrape endpoint. It binds to loopback by default.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wombat2006/techdev-sub003/internal/consult"
	"github.com/wombat2006/techdev-sub003/internal/store"
	"github.com/wombat2006/techdev-sub003/internal/tool"
)

// Consulter runs one consultation end to end. *consult.Orchestrator
// satisfies it.
type Consulter interface {
	Consult(ctx context.Context, req consult.Request) (consult.Response, error)
}

// HistoryStore is the slice of the invocation store the gateway reads.
// *store.Store satisfies it.
type HistoryStore interface {
	Ping(ctx context.Context) error
	Recent(ctx context.Context, n int) ([]store.Record, error)
}

// Deps are the collaborators the gateway serves. Consulter, Tools, and Hub
// back the /v1 endpoints; History backs readiness and the invocation log;
// Prometheus is the registry /metrics exposes and the gateway's own request
// instruments register into.
type Deps struct {
	Consulter  Consulter
	Tools      *tool.Registry
	History    HistoryStore
	Hub        *Hub
	Prometheus *prometheus.Registry
	Logger     *slog.Logger
}

// Gateway is the HTTP server for the daemon. It is a leaf component;
// nothing imports it except the entry point.
type Gateway struct {
	config  Config
	deps    Deps
	metrics *httpMetrics
	server  *http.Server
}

// New creates a gateway from settings and collaborators. Missing
// collaborators degrade: their endpoints answer 503 instead of panicking.
func New(cfg Config, deps Deps) *Gateway {
	cfg.defaults()
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Prometheus == nil {
		deps.Prometheus = prometheus.NewRegistry()
	}
	return &Gateway{
		config:  cfg,
		deps:    deps,
		metrics: newHTTPMetrics(deps.Prometheus),
	}
}

// Start binds the listener and serves in the background. It returns once
// the listener is bound, so a caller that sees nil can immediately hit the
// endpoints.
func (g *Gateway) Start() error {
	mux := g.buildRouter()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      mux,
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen on %s: %w", g.config.Bind, err)
	}

	if !g.config.AuthConfigured() {
		g.deps.Logger.Warn("gateway auth disabled, API endpoints are open", "bind", g.config.Bind)
	}

	go func() {
		g.deps.Logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.deps.Logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop closes the event hub and shuts the server down gracefully within the
// configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	if g.deps.Hub != nil {
		g.deps.Hub.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.deps.Logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
