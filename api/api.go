package api

import (
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/inkwellco/corpus/api/mcp"
	"github.com/inkwellco/corpus/pkg/index"
	"github.com/inkwellco/corpus/pkg/ingest"
	"github.com/inkwellco/corpus/pkg/retrieve"
	"github.com/inkwellco/corpus/pkg/source"
)

// Server is the API server for managing and querying the corpus.
type Server struct {
	config      Config
	store       *index.Store
	coordinator *ingest.Coordinator
	retriever   *retrieve.Retriever
	src         source.Source
	logger      *slog.Logger
	app         *fiber.App
}

// Opts carries the collaborators the server exposes over HTTP.
// The store, coordinator, and retriever are injected to allow sharing with
// a CLI process embedding the server.
type Opts struct {
	Config      Config
	Store       *index.Store
	Coordinator *ingest.Coordinator
	Retriever   *retrieve.Retriever

	// Source supplies documents for POST /v1/ingest.
	Source source.Source

	// MCP optionally mounts a Model Context Protocol endpoint at /mcp.
	MCP *mcp.Server

	Logger *slog.Logger
}

// NewServer creates a new API server.
func NewServer(o Opts) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:      o.Config,
		store:       o.Store,
		coordinator: o.Coordinator,
		retriever:   o.Retriever,
		src:         o.Source,
		logger:      o.Logger,
		app:         app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/v1/search", s.handleSearch)
	app.Post("/v1/ingest", s.handleIngest)
	app.Get("/v1/versions", s.handleListVersions)
	app.Post("/v1/versions/prune", s.handlePrune)
	app.Post("/v1/versions/:id/activate", s.handleActivate)
	app.Delete("/v1/versions/:id", s.handleDeleteVersion)

	if o.MCP != nil {
		app.All("/mcp", adaptor.HTTPHandler(o.MCP.Handler()))
	}

	return s
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

// App exposes the fiber app for in-process testing.
func (s *Server) App() *fiber.App {
	return s.app
}
