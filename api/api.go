// Package api exposes the read-only admin surface over the memory system:
// profile inspection, fragment search, recent activity, and the manual
// retention sweep trigger. This is an ops surface, not the hot path.
package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/system"
)

// Config holds API server settings.
type Config struct {
	// ListenAddr is the address the server binds to.
	ListenAddr string
}

// Server is the admin API server.
type Server struct {
	config Config
	sys    *system.System
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new admin API server. The system handles are injected
// so the server shares stores with the rest of the process.
func NewServer(config Config, sys *system.System, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		sys:    sys,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/profiles", s.handleListProfiles)
	app.Get("/profiles/:id", s.handleGetProfile)
	app.Get("/fragments/search", s.handleSearchFragments)
	app.Get("/activity", s.handleActivity)
	app.Post("/retention/sweep", s.handleSweep)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting admin API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
