package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-zigbee/internal/audit"
	"github.com/nerrad567/gray-logic-zigbee/internal/bridges/zigbee"
	"github.com/nerrad567/gray-logic-zigbee/internal/converters"
	"github.com/nerrad567/gray-logic-zigbee/internal/device"
	"github.com/nerrad567/gray-logic-zigbee/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-zigbee/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-zigbee/internal/infrastructure/metrics"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Gateway is the part of the bridge the API needs.
type Gateway interface {
	Health() zigbee.HealthMessage
	QueueStats() zigbee.QueueStats
	HandleMessage(topic string, payload []byte) bool
	SetDeviceCount(n int)
}

// StateReader returns last-known device state.
type StateReader interface {
	LoadState(ctx context.Context, ieee string) (device.State, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	Registry  *device.Registry
	Models    *converters.Catalog
	Gateway   Gateway
	State     StateReader // Defaults to Registry
	Commands  audit.Repository
	Metrics   *metrics.Collector
	BaseTopic string
	Version   string
}

// Server is the admin HTTP server.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	registry  *device.Registry
	models    *converters.Catalog
	gateway   Gateway
	state     StateReader
	commands  audit.Repository
	metrics   *metrics.Collector
	baseTopic string
	version   string
	server    *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Models == nil {
		return nil, fmt.Errorf("model catalogue is required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}

	s := &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		registry:  deps.Registry,
		models:    deps.Models,
		gateway:   deps.Gateway,
		state:     deps.State,
		commands:  deps.Commands,
		metrics:   deps.Metrics,
		baseTopic: strings.TrimRight(deps.BaseTopic, "/"),
		version:   deps.Version,
	}
	if s.state == nil {
		s.state = deps.Registry
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	return s, nil
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
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

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
