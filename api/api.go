package api

import (
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/rxrank/api/mcp"
	"github.com/papercomputeco/rxrank/pkg/recommend"
	"github.com/papercomputeco/rxrank/pkg/records"
)

const (
	// RequestIDHeader carries the per-request id, generated when absent.
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "request_id"
)

// Server is the API server for recommendations and patient and visit records.
type Server struct {
	config   Config
	registry *recommend.Registry
	records  records.Reader
	logger   *slog.Logger
	app      *fiber.App
}

// NewServer creates a new API server. The registry is shared with the
// caller, which may have loaded it eagerly.
func NewServer(config Config, registry *recommend.Registry, reader records.Reader, logger *slog.Logger) (*Server, error) {
	if reader == nil {
		reader = records.None{}
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:   config,
		registry: registry,
		records:  reader,
		logger:   logger,
		app:      app,
	}

	app.Use(s.requestID)

	app.Get("/api/health", s.handleHealth)
	app.Post("/api/recommend", s.handleRecommendPost)
	app.Get("/api/recommend/:id", s.handleRecommendGet)
	app.Get("/api/patients", s.handleListPatients)
	app.Get("/api/patients/:id/records", s.handlePatientRecords)
	app.Get("/api/visits", s.handleListVisits)
	app.Get("/api/visits/:id/records", s.handleVisitRecords)

	if !config.DisableMCP {
		mcpServer, err := mcp.NewServer(mcp.Config{
			Registry: registry,
			Records:  reader,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))
	}

	return s, nil
}

// requestID tags every request with an id, reusing the caller's when given.
func (s *Server) requestID(c *fiber.Ctx) error {
	id := c.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(RequestIDHeader, id)
	c.Locals(requestIDKey, id)
	return c.Next()
}

func (s *Server) log(c *fiber.Ctx) *slog.Logger {
	if id, ok := c.Locals(requestIDKey).(string); ok {
		return s.logger.With(requestIDKey, id)
	}
	return s.logger
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
