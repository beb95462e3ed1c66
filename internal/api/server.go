// Package api exposes the mirrored catalog over HTTP: cached reads,
// refresh triggers, entity resolution, and the read-only query passthrough.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fabmirror/fabmirror/internal/catalog"
	"github.com/fabmirror/fabmirror/internal/resolver"
	catsync "github.com/fabmirror/fabmirror/internal/sync"
)

// Server is the REST server over the catalog.
type Server struct {
	store    catalog.Store
	syncer   *catsync.Syncer
	resolver *resolver.Resolver
	logger   *slog.Logger
	port     int
	server   *http.Server
	devMode  bool
}

// Option configures the server.
type Option func(*Server)

// WithDevMode enables permissive CORS for local UI development.
func WithDevMode(dev bool) Option {
	return func(s *Server) { s.devMode = dev }
}

// New creates the server.
func New(store catalog.Store, syncer *catsync.Syncer, res *resolver.Resolver, logger *slog.Logger, port int, opts ...Option) *Server {
	s := &Server{
		store:    store,
		syncer:   syncer,
		resolver: res,
		logger:   logger,
		port:     port,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	var handler http.Handler = requestLogger(s.logger, mux)
	if s.devMode {
		handler = corsMiddleware(handler)
	}

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: handler,
	}

	s.logger.Info("starting catalog API server", "port", s.port, "dev_mode", s.devMode)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/catalog", s.handleCatalogTree)

	mux.HandleFunc("GET /api/workspaces", s.handleListWorkspaces)
	mux.HandleFunc("POST /api/workspaces/refresh", s.handleRefreshCatalog)
	mux.HandleFunc("GET /api/workspaces/{workspaceID}/items", s.handleListItems)
	mux.HandleFunc("POST /api/workspaces/{workspaceID}/probe", s.handleProbe)

	mux.HandleFunc("GET /api/workspaces/{workspaceID}/sqldb", s.handleListEndpoints)
	mux.HandleFunc("POST /api/workspaces/{workspaceID}/sqldb/reload", s.handleReloadEndpoints)

	mux.HandleFunc("GET /api/workspaces/{workspaceID}/sqldb/{databaseID}/schema", s.handleListSchemas)
	mux.HandleFunc("POST /api/workspaces/{workspaceID}/sqldb/{databaseID}/schema/refresh", s.handleRefreshSchemas)
	mux.HandleFunc("POST /api/workspaces/{workspaceID}/sqldb/{databaseID}/refresh", s.handleRefreshDatabase)
	mux.HandleFunc("GET /api/workspaces/{workspaceID}/sqldb/{databaseID}/schema/{schema}/tables", s.handleListTables)
	mux.HandleFunc("POST /api/workspaces/{workspaceID}/sqldb/{databaseID}/schema/{schema}/tables/refresh", s.handleRefreshTables)
	mux.HandleFunc("GET /api/workspaces/{workspaceID}/sqldb/{databaseID}/schema/{schema}/tables/{table}/columns", s.handleListColumns)
	mux.HandleFunc("POST /api/workspaces/{workspaceID}/sqldb/{databaseID}/schema/{schema}/tables/{table}/columns/refresh", s.handleRefreshColumns)

	mux.HandleFunc("POST /api/workspaces/{workspaceID}/sqldb/{databaseID}/query", s.handleQuery)

	mux.HandleFunc("GET /api/resolve/workspace", s.handleResolveWorkspace)
	mux.HandleFunc("GET /api/resolve/database", s.handleResolveDatabase)
}
