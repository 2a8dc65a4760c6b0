// Package api provides the HTTP API server for the pacing engine.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pacing-engine/internal/pacing"
	"github.com/pacing-engine/internal/service"
	"github.com/pacing-engine/internal/storage"
	"github.com/pacing-engine/internal/types"
)

// Service interfaces for dependency injection and testing

// PacingServiceInterface defines the pacing pipeline operations
type PacingServiceInterface interface {
	Report(ctx context.Context, input *service.ReportInput) (*service.ReportResult, error)
}

// PortfolioServiceInterface defines the portfolio rollup operations
type PortfolioServiceInterface interface {
	GetSnapshot(ctx context.Context) (*types.PortfolioSnapshot, error)
}

// DeliveryFetcherInterface defines the raw delivery gateway operation
type DeliveryFetcherInterface interface {
	Fetch(ctx context.Context, lineItemIDs []string, window pacing.DateWindow) (*storage.FetchResult, error)
}

// RefreshTrigger queues a cache-warming recompute for a campaign
type RefreshTrigger interface {
	Trigger(campaignID string)
}

// Server represents the HTTP API server.
type Server struct {
	router           *mux.Router
	httpServer       *http.Server
	pacingService    PacingServiceInterface
	portfolioService PortfolioServiceInterface
	delivery         DeliveryFetcherInterface
	refresher        RefreshTrigger
	config           *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerSecond int
	Burst             int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	pacingService PacingServiceInterface,
	portfolioService PortfolioServiceInterface,
	delivery DeliveryFetcherInterface,
	refresher RefreshTrigger,
) *Server {
	s := &Server{
		router:           mux.NewRouter(),
		pacingService:    pacingService,
		portfolioService: portfolioService,
		delivery:         delivery,
		refresher:        refresher,
		config:           config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)

	// Middleware order matters: request IDs first so every later log carries one.
	s.router.Use(RequestIDMiddleware)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	apiRouter := s.router.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/pacing/report", s.handlePacingReport).Methods(http.MethodPost)
	apiRouter.HandleFunc("/pacing/portfolio", s.handlePortfolio).Methods(http.MethodGet)
	apiRouter.HandleFunc("/pacing/refresh/{campaignId}", s.handleRefresh).Methods(http.MethodPost)
	apiRouter.HandleFunc("/delivery", s.handleDelivery).Methods(http.MethodGet)

	// The write timeout sits above the gateway's query deadline so the engine
	// answers with a structured timeout before the platform cuts the socket.
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// Router returns the configured router, for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
