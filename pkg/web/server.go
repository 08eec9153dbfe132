// Package web serves the monitor's HTTP surface: status, the start/stop
// toggle, the live warning overlay over websocket, and Prometheus metrics.
package web

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-screendistance/pkg/metrics"
	"github.com/teslashibe/go-screendistance/pkg/monitor"
)

const shutdownTimeout = 5 * time.Second

// Controller is the part of the monitor the server drives.
type Controller interface {
	Start(ctx context.Context) error
	StopMonitoring() error
	SetWarningThreshold(cm float64) error
	Status() monitor.Status
}

// Server is the HTTP server.
type Server struct {
	app    *fiber.App
	addr   string
	ctrl   Controller
	logger *slog.Logger

	overlay *OverlaySurface

	// baseCtx outlives individual requests; monitoring started over HTTP
	// runs under it. Guarded by mu.
	mu      sync.RWMutex
	baseCtx context.Context
}

// NewServer creates the server. overlay may be nil, in which case the server
// creates its own. m may be nil, in which case /metrics is not served.
func NewServer(addr string, ctrl Controller, overlay *OverlaySurface, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "web")
	if overlay == nil {
		overlay = NewOverlaySurface(logger)
	}

	s := &Server{
		addr:    addr,
		ctrl:    ctrl,
		logger:  logger,
		overlay: overlay,
		baseCtx: context.Background(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "screendistance",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/monitoring/start", s.handleStart)
	api.Post("/monitoring/stop", s.handleStop)
	api.Put("/threshold", s.handleThreshold)

	if m != nil {
		app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/overlay", websocket.New(s.handleOverlayWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Overlay returns the warning surface that mirrors the overlay to websocket
// clients.
func (s *Server) Overlay() *OverlaySurface { return s.overlay }

// Run starts the overlay hub and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()
	go s.overlay.run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web server listening", "addr", s.addr)
		errCh <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return <-errCh
}

func (s *Server) context() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseCtx
}
