// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects repositories, services,
// handlers and middleware, and decides:
//   - Which URL patterns map to which handler functions
//   - What middleware runs on which routes
//   - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → Server.New() creates:
//	  sqlite.DB ──────────┐
//	  village.Catalog ────┼→ services → handlers → chi routes
//	  storage.ImageStore ─┤
//	  auth.TokenService ──┘
//
// This is the "composition root": every dependency is built here, in one
// place, and handed down. Nothing below this package constructs its own
// collaborators.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sakif/village-gacha/internal/auth"
	"github.com/sakif/village-gacha/internal/config"
	"github.com/sakif/village-gacha/internal/handler"
	"github.com/sakif/village-gacha/internal/metrics"
	"github.com/sakif/village-gacha/internal/middleware"
	sqliteRepo "github.com/sakif/village-gacha/internal/repository/sqlite"
	"github.com/sakif/village-gacha/internal/response"
	"github.com/sakif/village-gacha/internal/service"
	"github.com/sakif/village-gacha/internal/storage"
	"github.com/sakif/village-gacha/internal/village"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection and the rate limiter's cleanup
// goroutine. Close releases both; Start calls it on the way out.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	images   storage.ImageStore
	limiter  *middleware.RateLimiter
	registry *prometheus.Registry

	tokens      *auth.TokenService
	github      *auth.GitHubProvider // nil when GitHub sign-in is off
	authService *service.AuthService
	gacha       *service.GachaService
	villages    *service.VillageService
	collections *service.CollectionService
	memories    *service.MemoryService
	users       *service.UserService

	passwords *auth.PasswordService
	gachaOpts []service.GachaOption
}

// Option adjusts a Server before its routes are built. Used by tests.
type Option func(*Server)

// WithGachaOptions passes options (clock, RNG) through to the gacha service.
func WithGachaOptions(opts ...service.GachaOption) Option {
	return func(s *Server) { s.gachaOpts = append(s.gachaOpts, opts...) }
}

// WithPasswordService replaces the default bcrypt cost.
func WithPasswordService(p *auth.PasswordService) Option {
	return func(s *Server) { s.passwords = p }
}

// New builds every dependency from cfg and wires the routes.
//
// WIRING ORDER:
//  1. Open and migrate the database
//  2. Load the village catalog (CSV file or the embedded default)
//  3. Pick the image store (local directory or S3 bucket)
//  4. Create token, password and metrics plumbing
//  5. Create the services, then seed demo users
//  6. Build the router
//
// If any step fails, everything opened so far is closed again.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s.db = db

	if err := s.build(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) build(ctx context.Context) error {
	cfg := s.config

	catalog, err := village.LoadFile(cfg.VillageCSVPath, s.logger)
	if err != nil {
		return fmt.Errorf("loading village catalog: %w", err)
	}
	if catalog.Len() == 0 {
		s.logger.Warn("village catalog is empty; every draw will fail")
	}

	if s.images, err = newImageStore(ctx, cfg); err != nil {
		return fmt.Errorf("creating image store: %w", err)
	}

	if s.tokens, err = auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL); err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	if cfg.GitHubEnabled() {
		s.github = auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubCallbackURL, s.logger)
	}

	// Per-server registry: tests build many servers in one process.
	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.NewCollector(s.registry)

	if s.passwords == nil {
		s.passwords = auth.NewPasswordService()
	}

	day := service.NewDayPolicy(cfg.Location())
	users, draws, collections, memories := s.db.Users(), s.db.Draws(), s.db.Collections(), s.db.Memories()

	s.authService = service.NewAuthService(users, s.tokens, s.passwords, rec, s.logger)
	s.gacha = service.NewGachaService(draws, collections, catalog, day, rec, s.logger,
		append([]service.GachaOption{service.WithDailyLimit(cfg.DailyDrawLimit)}, s.gachaOpts...)...)
	s.villages = service.NewVillageService(catalog, collections)
	s.collections = service.NewCollectionService(collections, catalog, rec, s.logger)
	s.memories = service.NewMemoryService(memories, catalog, s.images, day, s.logger)
	s.users = service.NewUserService(users, collections, memories, s.logger)

	if err := s.seedUsers(ctx); err != nil {
		return err
	}

	s.limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
		PerMinute: cfg.RateLimitPerMinute,
		Burst:     cfg.RateLimitBurst,
	}, s.logger)

	s.setupRoutes(rec)
	return nil
}

// newImageStore picks the backend named by IMAGE_STORE.
func newImageStore(ctx context.Context, cfg *config.Config) (storage.ImageStore, error) {
	if cfg.ImageStore == "s3" {
		return storage.NewS3Store(ctx, storage.S3Options{
			Bucket:        cfg.S3.Bucket,
			Region:        cfg.S3.Region,
			Endpoint:      cfg.S3.Endpoint,
			AccessKey:     cfg.S3.AccessKey,
			SecretKey:     cfg.S3.SecretKey,
			UsePathStyle:  cfg.S3.UsePathStyle,
			PublicBaseURL: cfg.S3.PublicBaseURL,
		})
	}
	return storage.NewLocalStore(cfg.UploadDir, cfg.UploadBaseURL)
}

// seedUsers creates the SEED_USERS accounts that do not exist yet.
func (s *Server) seedUsers(ctx context.Context) error {
	seeds, err := s.config.Seeds()
	if err != nil {
		return err
	}
	for _, u := range seeds {
		created, err := s.authService.EnsureUser(ctx, u.Username, u.Password, u.Email)
		if err != nil {
			return fmt.Errorf("seeding users: %w", err)
		}
		if created {
			s.logger.Info("seed user created", slog.String("username", u.Username))
		}
	}
	return nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                      → liveness + database ping
//	GET    /metrics                      → Prometheus exposition
//	GET    /uploads/*                    → memory photos (local store only)
//	POST   /api/auth/signup
//	POST   /api/auth/login
//	GET    /api/auth/github/login        → only when GitHub is configured
//	GET    /api/auth/github/callback
//	GET    /api/gacha/status             [auth]
//	POST   /api/gacha/draw               [auth]
//	GET    /api/villages                 [optional auth]
//	GET    /api/villages/{id}            [optional auth]
//	GET    /api/collections              [auth]
//	POST   /api/collections              [auth]
//	GET    /api/collections/stats        [auth]
//	DELETE /api/collections/{id}         [auth]
//	GET    /api/memories                 [auth]
//	POST   /api/memories                 [auth]
//	GET    /api/memories/{id}            [auth]
//	PUT    /api/memories/{id}            [auth]
//	DELETE /api/memories/{id}            [auth]
//	GET    /api/users/me                 [auth]
//	PUT    /api/users/me                 [auth]
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID, RealIP, Recoverer (chi built-ins)
//  2. Logger and Metrics see the final status of every request
//  3. CORS answers preflights before anything else can reject them
//  4. Rate limit and simulated latency apply to /api only
func (s *Server) setupRoutes(rec metrics.Recorder) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(rec))
	s.router.Use(middleware.CORS(s.config.CORSAllowedOrigin))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler(s.registry))

	if local, ok := s.images.(*storage.LocalStore); ok && strings.HasPrefix(s.config.UploadBaseURL, "/") {
		prefix := strings.TrimSuffix(s.config.UploadBaseURL, "/") + "/"
		fileServer := http.StripPrefix(prefix, http.FileServer(http.Dir(local.Dir())))
		s.router.Handle(prefix+"*", noDirListing(fileServer))
	}

	authHandler := handler.NewAuthHandler(s.authService, s.github, s.logger)
	gachaHandler := handler.NewGachaHandler(s.gacha, s.logger)
	villageHandler := handler.NewVillageHandler(s.villages, s.logger)
	collectionHandler := handler.NewCollectionHandler(s.collections, s.logger)
	memoryHandler := handler.NewMemoryHandler(s.memories, s.logger)
	userHandler := handler.NewUserHandler(s.users, s.logger)

	requireAuth := auth.RequireAuth(s.tokens)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware)
		r.Use(middleware.Latency(s.config.SimulatedLatency))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authHandler.HandleSignup)
			r.Post("/login", authHandler.HandleLogin)
			if s.github != nil {
				r.Get("/github/login", authHandler.HandleGitHubLogin)
				r.Get("/github/callback", authHandler.HandleGitHubCallback)
			}
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(s.tokens))
			r.Get("/villages", villageHandler.HandleList)
			r.Get("/villages/{id}", villageHandler.HandleGet)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/gacha/status", gachaHandler.HandleStatus)
			r.Post("/gacha/draw", gachaHandler.HandleDraw)

			r.Get("/collections", collectionHandler.HandleList)
			r.Post("/collections", collectionHandler.HandleAdd)
			r.Get("/collections/stats", collectionHandler.HandleStats)
			r.Delete("/collections/{id}", collectionHandler.HandleDelete)

			r.Get("/memories", memoryHandler.HandleList)
			r.Post("/memories", memoryHandler.HandleCreate)
			r.Get("/memories/{id}", memoryHandler.HandleGet)
			r.Put("/memories/{id}", memoryHandler.HandleUpdate)
			r.Delete("/memories/{id}", memoryHandler.HandleDelete)

			r.Get("/users/me", userHandler.HandleGetMe)
			r.Put("/users/me", userHandler.HandleUpdateMe)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		response.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// noDirListing hides directory indexes: only files are served.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops background work and closes the database. Safe to call on a
// partially built server.
func (s *Server) Close() error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Stop the rate limiter and close the database (flushes WAL, releases the file lock)
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15*time.Second + s.config.SimulatedLatency,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.String("imageStore", s.config.ImageStore),
			slog.Bool("github", s.github != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
