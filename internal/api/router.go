package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"ingestadmin/internal/gateway"
	ingestmcp "ingestadmin/internal/mcp"
	"ingestadmin/internal/runner"
	"ingestadmin/internal/schedule"
	"ingestadmin/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// Server holds the HTTP server state.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	store      *store.Store
	gw         gateway.Gateway
	executor   *gateway.Executor
	runner     *runner.Runner
	normalizer *schedule.Normalizer
	mcpServer  *ingestmcp.MCPServer
	logger     *slog.Logger
	authToken  string
	validate   *validator.Validate
}

// NewServer constructs the HTTP API server.
func NewServer(addr string, authToken string, store *store.Store, gw gateway.Gateway, executor *gateway.Executor, sched *runner.Runner, mcpServer *ingestmcp.MCPServer, logger *slog.Logger) (*Server, error) {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:     router,
		store:      store,
		gw:         gw,
		executor:   executor,
		runner:     sched,
		normalizer: schedule.NewNormalizer(logger),
		mcpServer:  mcpServer,
		logger:     logger,
		authToken:  authToken,
		validate:   validator.New(),
	}
	s.registerRoutes()

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	s.httpServer = httpServer
	return s, nil
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	// Mount MCP endpoint with optional authentication
	if s.mcpServer != nil {
		var mcpHandler http.Handler = s.mcpServer.HTTPHandler()
		if s.authToken != "" {
			mcpHandler = AuthMiddleware(s.authToken)(mcpHandler)
		}
		s.router.Handle("/mcp", mcpHandler)
	}

	s.router.Route("/v1", func(r chi.Router) {
		// Apply authentication to all API endpoints
		if s.authToken != "" {
			r.Use(AuthMiddleware(s.authToken))
		}

		r.Route("/tareas", func(r chi.Router) {
			r.Get("/", s.handleListTareas)
			r.Post("/guardar", s.handleGuardarTareas)
			r.Post("/{tareaID}/ejecutar", s.handleEjecutarTarea)
		})

		r.Post("/horarios/validar", s.handleValidarHorario)

		r.Route("/mapeos", func(r chi.Router) {
			r.Get("/", s.handleListMapeos)
			r.Post("/", s.handleCreateMapeo)

			r.Route("/{mapeoID}", func(r chi.Router) {
				r.Get("/", s.handleGetMapeo)
				r.Patch("/", s.handleUpdateMapeo)
				r.Delete("/", s.handleDeleteMapeo)
				r.Get("/columnas", s.handleListColumnas)
				r.Post("/columnas", s.handleCreateColumna)
			})
		})

		r.Route("/columnas", func(r chi.Router) {
			r.Patch("/{columnaID}", s.handleUpdateColumna)
			r.Delete("/{columnaID}", s.handleDeleteColumna)
		})

		r.Get("/monitor", s.handleMonitor)
		r.Get("/bitacora", s.handleBitacora)
	})
}
