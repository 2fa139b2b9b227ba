// Package api serves the relay over HTTP: the WebSocket endpoint and the REST surface.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/radsadsoap/EchoWave/modules/activity"
	"github.com/radsadsoap/EchoWave/modules/broadcast"
	"github.com/radsadsoap/EchoWave/modules/relay"
	"github.com/radsadsoap/EchoWave/modules/wsserver"
)

// Options configures the HTTP server.
type Options struct {
	Addr           string
	AllowedOrigins string
	JWTSecret      string
}

// APIModule is the HTTP API module with WebSocket support.
type APIModule struct {
	app      *fiber.App
	listener net.Listener
	opts     Options
	relay    relay.Port
	activity activity.Port
	hub      *broadcast.Hub
	ws       *wsserver.Handlers
	verifier *TokenVerifier
	logger   types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule.
func NewModule(opts Options, logger types.Logger) *APIModule {
	if opts.Addr == "" {
		opts.Addr = ":3001"
	}
	if opts.AllowedOrigins == "" {
		opts.AllowedOrigins = "http://localhost:3000"
	}
	return &APIModule{
		opts:     opts,
		verifier: NewTokenVerifier(opts.JWTSecret),
		logger:   logger,
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"relay", "activity"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "relay":
		m.relay = relay.NewAdapter(container)
	case "activity":
		m.activity = activity.NewAdapter(container)
	}
}

// SetHub sets the broadcast hub (called from main.go).
func (m *APIModule) SetHub(hub *broadcast.Hub) {
	m.hub = hub
}

// Start binds the listener and serves in the background.
func (m *APIModule) Start(_ context.Context) error {
	if m.relay == nil {
		return fmt.Errorf("relay adapter dependency not set")
	}
	if m.activity == nil {
		return fmt.Errorf("activity adapter dependency not set")
	}
	if m.hub == nil {
		return fmt.Errorf("broadcast hub dependency not set")
	}

	m.buildApp()

	ln, err := net.Listen("tcp", m.opts.Addr)
	if err != nil {
		return fmt.Errorf("HTTP server failed to start: %w", err)
	}
	m.listener = ln

	go func() {
		if err := m.app.Listener(ln); err != nil && !errors.Is(err, net.ErrClosed) {
			m.logger.Error("HTTP server error", "error", err)
		}
	}()

	m.logger.Info("HTTP server started", "addr", ln.Addr().String(), "jwt", m.verifier != nil)
	return nil
}

// buildApp creates the Fiber app with its middleware and routes.
func (m *APIModule) buildApp() {
	m.ws = wsserver.NewHandlers(m.relay, m.hub, m.logger)
	m.app = fiber.New(fiber.Config{
		AppName:               "EchoWave",
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	m.app.Use(recover.New())
	m.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
	}))
	m.app.Use(cors.New(cors.Config{
		AllowOrigins: m.opts.AllowedOrigins,
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))

	m.setupRoutes()
}

// Stop gracefully shuts down the HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	if err := m.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	m.logger.Info("HTTP server stopped")
	return nil
}

// Health returns the health status.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	if m.app == nil || m.hub == nil {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"addr":              m.Addr(),
			"connected_clients": m.hub.ClientCount(),
		},
	}
}

// Addr returns the bound listen address, or the configured one before Start.
func (m *APIModule) Addr() string {
	if m.listener != nil {
		return m.listener.Addr().String()
	}
	return m.opts.Addr
}

// errorHandler handles Fiber errors.
func (m *APIModule) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	if code >= fiber.StatusInternalServerError {
		m.logger.Error("HTTP error", "code", code, "path", c.Path(), "error", err)
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}
