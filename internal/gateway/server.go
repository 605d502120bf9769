// Package gateway serves the metrics query REST API: natural-language
// queries are translated to PromQL, executed against Amazon Managed
// Prometheus and returned with generated insights.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/eks-aiops/eks-devops-agent/internal/insight"
	"github.com/eks-aiops/eks-devops-agent/internal/translate"
	"github.com/eks-aiops/eks-devops-agent/pkg/cache"
	"github.com/eks-aiops/eks-devops-agent/pkg/promql"
)

// MetricsExecutor runs PromQL queries. Satisfied by *promql.Client.
type MetricsExecutor interface {
	QueryRange(ctx context.Context, query, timeRange, step string) (*promql.Stats, error)
	DiscoverMetrics(ctx context.Context) ([]string, error)
}

// Server is the gateway HTTP server.
type Server struct {
	config     *Config
	router     *mux.Router
	httpServer *http.Server
	translator *translate.Translator
	executor   MetricsExecutor
	insights   *insight.Generator
	cache      *cache.MemoryCache
	logger     *zap.Logger
}

// NewServer wires the gateway together. The executor is injected so tests
// can substitute a fake for the Prometheus client.
func NewServer(config *Config, executor MetricsExecutor, logger *zap.Logger) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config:     config,
		router:     mux.NewRouter(),
		translator: translate.NewTranslator(logger),
		executor:   executor,
		insights:   insight.NewGenerator(logger),
		cache:      cache.NewMemoryCache(config.CacheTTL),
		logger:     logger,
	}
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         config.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/query", s.handleQuery).Methods(http.MethodPost)
	api.HandleFunc("/templates", s.handleTemplates).Methods(http.MethodGet)
	api.HandleFunc("/metrics/discover", s.handleDiscover).Methods(http.MethodGet)
	api.HandleFunc("/query/suggest", s.handleSuggest).Methods(http.MethodPost)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("metrics query gateway listening",
		zap.String("addr", s.config.Addr()),
		zap.String("workspace", s.config.WorkspaceID))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and releases the discovery cache.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down metrics query gateway")
	s.cache.Close()
	return s.httpServer.Shutdown(ctx)
}
