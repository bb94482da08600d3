// Package api exposes the relationship index and block search over REST.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/humanmade/blockindex/pkg/config"
	"github.com/humanmade/blockindex/pkg/httputil"
	"github.com/humanmade/blockindex/pkg/observability"
	"github.com/humanmade/blockindex/pkg/relations"
	"github.com/humanmade/blockindex/pkg/search"
	"github.com/humanmade/blockindex/pkg/store"
)

// Server represents our API server
type Server struct {
	store   store.Store
	index   *relations.Index
	query   *relations.Query
	search  *search.Service
	router  *mux.Router
	logger  *observability.Logger
	metrics *observability.Metrics
	cfg     config.IndexConfig
}

// NewServer creates a new API server
func NewServer(s store.Store, logger *observability.Logger, metrics *observability.Metrics, cfg config.IndexConfig) *Server {
	srv := &Server{
		store:   s,
		index:   relations.NewIndex(s, logger, metrics, cfg.EmbeddableTypes),
		query:   relations.NewQuery(s, logger),
		search:  search.NewService(s, logger, metrics, cfg.EmbeddableTypes),
		router:  mux.NewRouter(),
		logger:  logger,
		metrics: metrics,
		cfg:     cfg,
	}

	srv.setupRoutes()
	return srv
}

// Index exposes the relationship index, shared with the reconciler
func (s *Server) Index() *relations.Index {
	return s.index
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	// Relationship routes
	s.router.HandleFunc("/api/v1/relationships", s.listRelationships).Methods("GET")

	// Search routes
	s.router.HandleFunc("/api/v1/search", s.searchBlocks).Methods("GET")

	// Block routes
	s.router.HandleFunc("/api/v1/blocks", s.listBlocks).Methods("GET")
	s.router.HandleFunc("/api/v1/blocks", s.createBlock).Methods("POST")
	s.router.HandleFunc("/api/v1/blocks/{id}", s.getBlock).Methods("GET")
	s.router.HandleFunc("/api/v1/blocks/{id}", s.updateBlock).Methods("PUT")
	s.router.HandleFunc("/api/v1/blocks/{id}", s.deleteBlock).Methods("DELETE")

	// Document save pipeline
	s.router.HandleFunc("/api/v1/documents", s.createDocument).Methods("POST")
	s.router.HandleFunc("/api/v1/documents/{id}", s.updateDocument).Methods("PUT")

	// Category routes
	s.router.HandleFunc("/api/v1/categories", s.listCategories).Methods("GET")
	s.router.HandleFunc("/api/v1/categories", s.createCategory).Methods("POST")

	// Editor settings payload
	s.router.HandleFunc("/api/v1/settings", s.getSettings).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler wraps the router with the standard middleware chain
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		httputil.RecoveryMiddleware(s.logger),
		httputil.RequestIDMiddleware(s.logger),
		httputil.LoggingMiddleware(s.logger),
	}
	if s.metrics != nil {
		middlewares = append(middlewares, observability.HTTPMetricsMiddleware(s.metrics))
	}
	middlewares = append(middlewares, httputil.MaxBytesMiddleware(10<<20))
	return httputil.Chain(middlewares...)(s.router)
}
