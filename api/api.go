package api

import (
	"fmt"
	"net"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/aurion/api/mcp"
	"github.com/papercomputeco/aurion/pkg/facts"
)

// Server is the API server for managing and querying the fact memory
type Server struct {
	config Config
	store  *facts.Store
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The store is injected to allow sharing with other components
// (e.g., the proxy when both run in one process).
func NewServer(config Config, store *facts.Store, logger *zap.Logger) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("fact store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Store:  store,
		Noop:   config.DisableMCP,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create MCP server: %w", err)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		store:  store,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/v1/facts", s.handleListFacts)
	app.Post("/v1/facts", s.handleUpsertFact)
	app.Delete("/v1/facts", s.handleForgetFact)
	app.Post("/v1/facts/lookup", s.handleLookupFact)
	app.Post("/v1/facts/sweep", s.handleSweep)
	app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the API server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting API server",
		zap.String("listen", listener.Addr().String()),
	)
	return s.app.Listener(listener)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
