// Package mcp provides an MCP (Model Context Protocol) server exposing the
// recommendation engine and patient records as tools.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/rxrank/pkg/recommend"
	"github.com/papercomputeco/rxrank/pkg/records"
	"github.com/papercomputeco/rxrank/pkg/utils"
)

type Config struct {
	// Registry provides the lazily loaded recommendation engine
	Registry *recommend.Registry

	// Records backs the patient_records, visit_records and list_visits tools. Defaults to records.None.
	Records records.Reader

	// Logger is the configured slog logger
	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the recommendation tools.
func NewServer(c Config) (*Server, error) {
	if c.Registry == nil {
		return nil, errors.New("engine registry is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if c.Records == nil {
		c.Records = records.None{}
	}

	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "rxrank",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        recommendToolName,
		Description: recommendDescription,
	}, s.handleRecommend)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        listPatientsToolName,
		Description: listPatientsDescription,
	}, s.handleListPatients)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        patientRecordsToolName,
		Description: patientRecordsDescription,
	}, s.handlePatientRecords)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        visitRecordsToolName,
		Description: visitRecordsDescription,
	}, s.handleVisitRecords)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        listVisitsToolName,
		Description: listVisitsDescription,
	}, s.handleListVisits)

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

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}
