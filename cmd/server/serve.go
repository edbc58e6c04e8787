package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/viper"

	"github.com/vicodes/process-flow-canvas-dream/internal/api"
	"github.com/vicodes/process-flow-canvas-dream/internal/auth"
	"github.com/vicodes/process-flow-canvas-dream/internal/config"
	"github.com/vicodes/process-flow-canvas-dream/internal/diagram"
	"github.com/vicodes/process-flow-canvas-dream/internal/dmn"
	"github.com/vicodes/process-flow-canvas-dream/internal/generator"
	"github.com/vicodes/process-flow-canvas-dream/internal/logging"
	"github.com/vicodes/process-flow-canvas-dream/internal/mcp"
	"github.com/vicodes/process-flow-canvas-dream/internal/observability"
	"github.com/vicodes/process-flow-canvas-dream/internal/repository"
	"github.com/vicodes/process-flow-canvas-dream/internal/services"
	"github.com/vicodes/process-flow-canvas-dream/internal/state"
	"github.com/vicodes/process-flow-canvas-dream/internal/tls"
)

const (
	reapInterval    = time.Minute
	shutdownTimeout = 30 * time.Second
)

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("configuration loading failed: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Encoding)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		"environment", cfg.Environment,
		"dev_mode_bypass", cfg.DevModeBypass,
		"issuer", cfg.Auth.Issuer,
		"client_id", cfg.Auth.ClientID,
		"swagger_client_id", cfg.Auth.SwaggerClientID,
		"backend_mock", cfg.Backend.Mock,
		"diagram_store", cfg.Diagrams.Store,
		"config_file", viper.ConfigFileUsed(),
	)
	if cfg.DevModeBypass {
		if cfg.IsDevelopment() {
			logger.Warn("Development sign-in bypass is enabled; never expose this instance publicly")
		} else {
			logger.Warn("dev_mode_bypass is ignored outside the DEV environment", "environment", cfg.Environment)
		}
	}
	if cfg.Auth.SwaggerClientID != "" && cfg.Auth.SwaggerClientID == cfg.Auth.ClientID {
		logger.Warn("Swagger client id matches the dashboard client id; PKCE sign-in from /docs fails if that client requires a secret")
	}

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing.Exporter, api.ServiceName, version, cfg.Environment, os.Stdout)
	if err != nil {
		return fmt.Errorf("tracing initialization failed: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Error("Tracing shutdown error", "error", err)
		}
	}()

	logger.Info("Starting OrchesT", "version", version)

	backend, err := newBackend(cfg, logger)
	if err != nil {
		return err
	}

	diagrams, closeStore, err := newDiagramStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	decisions, err := dmn.DefaultCatalog()
	if err != nil {
		return fmt.Errorf("failed to load DMN catalog: %w", err)
	}

	modelers := diagram.NewModelerRegistry(func() diagram.Canvas { return diagram.NewEngine() }, cfg.Modeler.IdleTTL, logger)
	go modelers.Run(ctx, reapInterval)

	authz, err := auth.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("auth initialization failed: %w", err)
	}

	srv, err := api.NewServer(api.Deps{
		Config:    cfg,
		Backend:   backend,
		Diagrams:  diagrams,
		Modelers:  modelers,
		Decisions: decisions,
		Chats:     generator.NewStore(logger),
		Sessions:  state.NewSessions(),
		Auth:      authz,
		Logger:    logger,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("failed to build API server: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))
	srv.Register(e)

	logger.Info("Dashboard and REST API handlers mounted")

	mcpServer := mcp.NewServer(backend, decisions, version, logger)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	mcpHandler := echo.WrapHandler(authz.RequireAuth(mcpHandlers))
	e.Any("/mcp", mcpHandler)
	e.Any("/mcp/*", mcpHandler)

	logger.Info("MCP protocol handlers mounted")

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if cfg.TLS.Enable {
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			return errors.New("TLS enabled but cert_file or key_file is not set")
		}
		created, err := tls.EnsureCertificate(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames)
		if err != nil {
			return fmt.Errorf("failed to prepare TLS certificate: %w", err)
		}
		if created {
			logger.Warn("Generated self-signed certificate", "cert", cfg.TLS.CertFile, "hosts", cfg.TLS.Hostnames)
		}
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", cfg.Server.Addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
			return
		}
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
		if err := server.Close(); err != nil {
			logger.Error("Server close error", "error", err)
		}
	}
	logger.Info("Server stopped gracefully")
	return nil
}

func newBackend(cfg *config.Config, logger *logging.Logger) (services.Backend, error) {
	if cfg.Backend.Mock {
		logger.Info("Using mock process backend")
		return services.NewMockBackend(time.Now())
	}
	backend, err := services.NewHTTPBackend(cfg.Backend.URL, cfg.Backend.Timeout, cfg.Backend.PageSize, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create process backend: %w", err)
	}
	logger.Info("Using process backend", "url", cfg.Backend.URL)
	return backend, nil
}

// newDiagramStore returns the configured store and a function releasing it.
func newDiagramStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (repository.DiagramStore, func(), error) {
	switch cfg.Diagrams.Store {
	case "", "memory":
		logger.Info("Saved diagrams are kept in memory")
		return repository.NewMemoryDiagramStore(), func() {}, nil
	case "postgres":
		pool, err := initDatabase(ctx, cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("database initialization failed: %w", err)
		}
		store := repository.NewPostgresDiagramStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("database migration failed: %w", err)
		}
		logger.Info("Database connected")
		return store, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown diagram store %q", cfg.Diagrams.Store)
	}
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	logger.Debug("Initializing database connection")

	poolConfig, err := pgxpool.ParseConfig(cfg.PostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				logger.Warn("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "error", v.Error)
				return nil
			}
			logger.Debug("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	})
}
