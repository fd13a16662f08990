package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fluxhaus/fluxhaus-core/internal/auth"
	"github.com/fluxhaus/fluxhaus-core/internal/command"
	"github.com/fluxhaus/fluxhaus-core/internal/device"
	"github.com/fluxhaus/fluxhaus-core/internal/infrastructure/config"
	"github.com/fluxhaus/fluxhaus-core/internal/infrastructure/logging"
	"github.com/fluxhaus/fluxhaus-core/internal/rhizome"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// bookingTimeout bounds a background booking submission.
const bookingTimeout = 30 * time.Second

// Composer builds the dashboard for a caller. *view.Composer satisfies it.
type Composer interface {
	Compose(id auth.Identity) (any, error)
}

// Dispatcher sends device commands. *command.Dispatcher satisfies it.
type Dispatcher interface {
	Robot(ctx context.Context, name string, cmd device.Command) (device.Ack, error)
	Vehicle(ctx context.Context, cmd device.Command) (device.Ack, error)
	ResyncVehicle(ctx context.Context) (command.Execution, error)
	StartDeepClean(ctx context.Context) (command.DeepCleanAck, error)
	StopDeepClean(ctx context.Context) (command.DeepCleanAck, error)
}

// Authenticator resolves request credentials. *auth.Authenticator satisfies it.
type Authenticator interface {
	AuthenticateBasic(username, password string) (auth.Identity, error)
	AuthenticateBearer(token string) (auth.Identity, error)
	IssueToken(id auth.Identity) (string, time.Time, error)
}

// BookingSubmitter sends daycare bookings. *rhizome.Client satisfies it.
type BookingSubmitter interface {
	SubmitBooking(ctx context.Context, r rhizome.BookingRequest) error
}

// CommandLog lists recent command executions. *command.SQLiteRepository
// satisfies it.
type CommandLog interface {
	List(ctx context.Context, limit int) ([]command.Execution, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger

	Composer   Composer
	Dispatcher Dispatcher
	Auth       Authenticator
	Booking    BookingSubmitter

	// Commands is optional; without it GET /commands answers 503.
	Commands CommandLog

	// Metrics serves GET /metrics when set.
	Metrics http.Handler

	// Hub is shared with the poller and dispatcher, which publish to it.
	Hub *Hub

	// Location renders booking wall-clock times.
	Location *time.Location
	Now      func() time.Time
	Version  string
}

// Server is the HTTP API server for FluxHaus Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	realm      string
	logger     *logging.Logger
	composer   Composer
	dispatcher Dispatcher
	auth       Authenticator
	booking    BookingSubmitter
	commands   CommandLog
	metrics    http.Handler
	hub        *Hub
	loc        *time.Location
	now        func() time.Time
	version    string

	server *http.Server
	cancel context.CancelFunc

	// base is the parent context of background booking submissions.
	base context.Context
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Composer == nil {
		return nil, fmt.Errorf("view composer is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("command dispatcher is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	if deps.Booking == nil {
		return nil, fmt.Errorf("booking client is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		realm:      deps.Security.Realm,
		logger:     deps.Logger,
		composer:   deps.Composer,
		dispatcher: deps.Dispatcher,
		auth:       deps.Auth,
		booking:    deps.Booking,
		commands:   deps.Commands,
		metrics:    deps.Metrics,
		hub:        deps.Hub,
		loc:        deps.Location,
		now:        deps.Now,
		version:    deps.Version,
		base:       context.Background(),
	}
	if s.realm == "" {
		s.realm = "fluxhaus"
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.hub == nil {
		s.hub = NewHub(deps.WS, deps.Logger, nil)
	}
	return s, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and launches the HTTP listener in a
// background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	s.base = srvCtx

	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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
