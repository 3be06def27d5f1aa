package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/audit"
	"github.com/nerrad567/gray-logic-presence/internal/beacon"
	"github.com/nerrad567/gray-logic-presence/internal/eventbus"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-presence/internal/location"
	"github.com/nerrad567/gray-logic-presence/internal/permission"
	"github.com/nerrad567/gray-logic-presence/internal/presence"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Engine is the part of presence.Engine the API drives.
type Engine interface {
	StartScanning(ctx context.Context, room beacon.Room) (bool, error)
	StopScanning(ctx context.Context, roomID int) (bool, error)
	RemoveRoom(ctx context.Context, roomID int) (bool, error)
	Snapshot() *presence.Snapshot
	Bus() *eventbus.Bus
	Gate() *permission.Gate
}

// HealthChecker is a dependency reported by the health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Engine   Engine
	Rooms    location.Repository

	// Audit records operator actions when set.
	Audit audit.Repository

	// Metrics serves /metrics when set.
	Metrics http.Handler

	// Checks are reported by /api/v1/health, keyed by component name.
	Checks map[string]HealthChecker

	Version string
}

// Server is the HTTP API server for Gray Logic Presence.
//
// It manages the HTTP listener, routes, middleware, and the presence feed.
// The server is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	wsCfg   config.WebSocketConfig
	secCfg  config.SecurityConfig
	logger  *logging.Logger
	engine  Engine
	rooms   location.Repository
	audit   audit.Repository
	metrics http.Handler
	checks  map[string]HealthChecker
	version string
	server  *http.Server
	feed    *feed
	cancel  context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("presence engine is required")
	}
	if deps.Rooms == nil {
		return nil, fmt.Errorf("room repository is required")
	}

	logger := deps.Logger.With("component", "api")
	return &Server{
		cfg:     deps.Config,
		wsCfg:   deps.WS,
		secCfg:  deps.Security,
		logger:  logger,
		engine:  deps.Engine,
		rooms:   deps.Rooms,
		audit:   deps.Audit,
		metrics: deps.Metrics,
		checks:  deps.Checks,
		version: deps.Version,
		feed:    newFeed(logger.With("feed", "presence")),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It relays engine events to the presence feed and launches the
// HTTP listener in a background goroutine. The server can be stopped with
// Close().
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.relayEvents(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
