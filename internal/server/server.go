package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/nyxus-portfolio/apiserver/config"
	"github.com/nyxus-portfolio/apiserver/internal/auth"
	"github.com/nyxus-portfolio/apiserver/internal/db"
	"github.com/nyxus-portfolio/apiserver/internal/handlers"
	"github.com/nyxus-portfolio/apiserver/internal/logutil"
	"github.com/nyxus-portfolio/apiserver/internal/metrics"
	"github.com/nyxus-portfolio/apiserver/internal/mq"
	"github.com/nyxus-portfolio/apiserver/internal/services"
	"github.com/nyxus-portfolio/apiserver/internal/storage"
	"github.com/nyxus-portfolio/apiserver/internal/store"
)

const (
	requestTimeout  = 60 * time.Second
	shutdownTimeout = 15 * time.Second
)

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Auth       *handlers.AuthHandler
	Gatekeeper *handlers.Gatekeeper
	Projects   *handlers.ProjectHandler
	Contact    *handlers.ContactHandler
	Users      *handlers.UserHandler
	Health     handlers.Pinger
}

// Server wraps the HTTP server and the resources it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     *mq.MQ
	logger     zerolog.Logger
}

// New connects to the database and the optional storage and MQ backends,
// then builds the router.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenCodec(cfg.Auth.SecretKey)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objects, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	var images services.ImageStore
	if objects != nil {
		if err := objects.EnsureBucket(ctx); err != nil {
			_ = dbConn.Close()
			return nil, fmt.Errorf("ensure bucket %s: %w", objects.Bucket(), err)
		}
		images = objects
	} else {
		logger.Warn().Msg("STORAGE_BACKEND not set, image uploads disabled")
	}

	broker, err := mq.NewFromConfig(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	var publisher services.EventPublisher
	if broker != nil {
		publisher = broker
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	userRepo := store.NewUserRepository(dbConn)
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)

	userService := services.NewUserService(userRepo, hasher)
	projectService := services.NewProjectService(store.NewProjectRepository(dbConn), images, cfg.Storage.MaxImageBytes)
	contactService := services.NewContactService(store.NewContactRepository(dbConn), publisher, cfg.MQ.ContactChannel)

	router := NewRouter(cfg, logger, reg, m, Handlers{
		Auth:       handlers.NewAuthHandler(auth.NewAuthenticator(userRepo, hasher), tokens, cfg.Auth.TokenTTL, m),
		Gatekeeper: handlers.NewGatekeeper(auth.NewGate(tokens, userRepo), m),
		Projects:   handlers.NewProjectHandler(projectService, cfg.Storage.MaxImageBytes),
		Contact:    handlers.NewContactHandler(contactService),
		Users:      handlers.NewUserHandler(userService),
		Health:     dbConn,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      requestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		broker:     broker,
		logger:     logger,
	}, nil
}

// NewRouter mounts the API under cfg.APIPrefix along with the root,
// health and metrics endpoints.
func NewRouter(cfg config.Config, logger zerolog.Logger, reg *prometheus.Registry, m *metrics.Metrics, h Handlers) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logutil.Middleware(logger),
		m.Middleware,
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
			ExposedHeaders:   []string{"X-Total-Count"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		middleware.Timeout(requestTimeout),
	)

	router.Get("/", handlers.Root(cfg.ProjectName))
	router.Get("/healthz", handlers.Healthz(h.Health))
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	router.Route(cfg.APIPrefix, func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, h.Auth, h.Gatekeeper)
		})
		r.Route("/projects", func(r chi.Router) {
			handlers.ProjectRouter(r, h.Projects, h.Gatekeeper)
		})
		r.Route("/contact", func(r chi.Router) {
			handlers.ContactRouter(r, h.Contact, h.Gatekeeper)
		})
		r.Route("/users", func(r chi.Router) {
			handlers.UserRouter(r, h.Users, h.Gatekeeper)
		})
	})

	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("server starting")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info().Msg("shutting down")
		return s.Shutdown(context.Background())
	}
}

// Shutdown drains in-flight requests and releases the database and broker.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("shutdown error")
	}
	s.close()
	s.logger.Info().Msg("server shutdown complete")
	return err
}

func (s *Server) close() {
	if s.broker != nil {
		if err := s.broker.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("closing message queue")
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
