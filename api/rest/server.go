// Package rest exposes the coordinator's HTTP control surface: health,
// worker listing and integration submission.
package rest

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/TR14WR/Testinfotecs/internal/coordinator"
	"github.com/TR14WR/Testinfotecs/pkg/types"
)

// Integrator runs one blocking integration request.
type Integrator interface {
	Integrate(ctx context.Context, lower, upper, step float64) (float64, error)
}

// WorkerLister lists the registered workers.
type WorkerLister interface {
	Workers() []types.WorkerInfo
}

// Config holds the HTTP server settings.
type Config struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DefaultConfig returns a default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:      ":8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the coordinator's REST API server.
type Server struct {
	app        *fiber.App
	integrator Integrator
	workers    WorkerLister
	config     *Config
}

// IntegrateRequest is the POST /integrate payload.
type IntegrateRequest struct {
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
	Step       float64 `json:"step"`
}

// IntegrateResponse is the POST /integrate result body.
type IntegrateResponse struct {
	Value float64 `json:"value"`
}

// NewServer creates the REST server around an integrator and worker lister.
func NewServer(integrator Integrator, workers WorkerLister, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		AppName:      "Distributed Integrator API",
	})
	app.Use(fiberrecover.New())

	s := &Server{
		app:        app,
		integrator: integrator,
		workers:    workers,
		config:     config,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", s.handleHealth)
	s.app.Get("/workers", s.handleWorkers)
	s.app.Post("/integrate", s.handleIntegrate)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleWorkers(c *fiber.Ctx) error {
	workers := s.workers.Workers()
	return c.JSON(fiber.Map{
		"count":   len(workers),
		"workers": workers,
	})
}

func (s *Server) handleIntegrate(c *fiber.Ctx) error {
	var req IntegrateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.UpperBound <= req.LowerBound || req.Step <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "upper_bound must exceed lower_bound and step must be positive",
		})
	}

	value, err := s.integrator.Integrate(c.UserContext(), req.LowerBound, req.UpperBound, req.Step)
	if err != nil {
		status := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, coordinator.ErrRequestInFlight):
			status = fiber.StatusConflict
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			status = fiber.StatusGatewayTimeout
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(IntegrateResponse{Value: value})
}

// Listen serves HTTP until Shutdown is called.
func (s *Server) Listen() error {
	return s.app.Listen(s.config.Address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the fiber app, used by tests.
func (s *Server) App() *fiber.App {
	return s.app
}
