// Package server provides the HTTP API for Mitsuke.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/mitsuke/internal/ai"
	"github.com/hyperjump/mitsuke/internal/config"
	"github.com/hyperjump/mitsuke/internal/keyword"
	"github.com/hyperjump/mitsuke/internal/store"
	"github.com/hyperjump/mitsuke/internal/workflow"
)

// Server is the HTTP server for the Mitsuke API.
type Server struct {
	orchestrator *workflow.Orchestrator
	store        *store.ProductStore
	keywordIndex *keyword.CatalogIndex
	transcriber  ai.Transcriber
	config       *config.Config
	logger       *zap.Logger
	server       *http.Server
}

// NewServer creates a server with the given dependencies. keywordIndex
// and transcriber may be nil; their endpoints then report unavailable.
func NewServer(
	orchestrator *workflow.Orchestrator,
	st *store.ProductStore,
	keywordIndex *keyword.CatalogIndex,
	transcriber ai.Transcriber,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		orchestrator: orchestrator,
		store:        st,
		keywordIndex: keywordIndex,
		transcriber:  transcriber,
		config:       cfg,
		logger:       logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/query", s.handleQuery)
	r.Post("/api/v1/voice", s.handleVoice)
	r.Get("/api/v1/products/featured", s.handleFeatured)
	r.Get("/api/v1/products/search", s.handleProductSearch)
	r.Get("/api/v1/products/category/{category}", s.handleProductsByCategory)
	r.Get("/api/v1/products/{id}", s.handleProduct)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	r.Get("/images/{id}", s.handleImage)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
