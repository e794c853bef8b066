// Package mcp provides an MCP (Model Context Protocol) server exposing aurion's
// fact memory as tools.
package mcp

import (
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/aurion/pkg/facts"
	"github.com/papercomputeco/aurion/pkg/utils"
)

type Config struct {
	// Store is the fact memory the tools read and write
	Store *facts.Store

	// Noop for empty MCP server
	Noop bool

	// Logger is the configured zap logger
	Logger *zap.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the fact tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "aurion",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.Store == nil {
			return nil, errors.New("fact store is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        lookupToolName,
			Description: lookupDescription,
		}, s.handleLookup)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        teachToolName,
			Description: teachDescription,
		}, s.handleTeach)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        forgetToolName,
			Description: forgetDescription,
		}, s.handleForget)
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
