package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go-pharmacy-catalog/internal/config"
	"go-pharmacy-catalog/internal/database"
	"go-pharmacy-catalog/internal/event"
	"go-pharmacy-catalog/internal/handler"
	"go-pharmacy-catalog/internal/middleware"
	"go-pharmacy-catalog/internal/relay"
	"go-pharmacy-catalog/internal/repository"
	"go-pharmacy-catalog/internal/router"
	"go-pharmacy-catalog/internal/service"
	"go-pharmacy-catalog/internal/storage"
	"go-pharmacy-catalog/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	server       *http.Server
	background   context.CancelFunc
	cleanupFuncs []func()
}

type stores struct {
	users    service.UserStore
	products service.ProductStore
	health   handler.HealthChecker
	close    func()
}

func New(cfg *config.Config) (*App, error) {
	st, err := openStores(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	app, err := build(cfg, st)
	if err != nil {
		st.close()
		return nil, err
	}
	return app, nil
}

func openStores(ctx context.Context, cfg *config.Config) (stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		slog.Warn("using in-memory store; data is lost on restart")
		return stores{
			users:    repository.NewMemoryUserRepository(),
			products: repository.NewMemoryProductRepository(),
			close:    func() {},
		}, nil
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, database.Options{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		return stores{}, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return stores{}, fmt.Errorf("failed to ensure database schema: %w", err)
	}
	slog.Info("database ready")

	return stores{
		users:    repository.NewUserRepository(db.Pool),
		products: repository.NewProductRepository(db.Pool),
		health:   db,
		close:    db.Close,
	}, nil
}

func build(cfg *config.Config, st stores) (*App, error) {
	uploads, err := storage.New(cfg.UploadRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upload storage: %w", err)
	}

	tokenService, err := service.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	bus := event.NewBus()
	authService, err := service.NewAuthService(st.users, tokenService, service.AuthOptions{
		BcryptCost:  cfg.BcryptCost,
		SignupRoles: cfg.SignupAllowedRoles,
		EventBus:    bus,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}

	productService := service.NewProductService(st.products, bus)
	imageService := service.NewImageService(uploads, service.ImageOptions{
		AllowedTypes:  cfg.AllowedImageTypes,
		ThumbnailSize: cfg.ThumbnailSize,
	})

	backgroundCtx, cancelBackground := context.WithCancel(context.Background())
	hub := websocket.NewHub(bus)
	go hub.Run(backgroundCtx)

	if len(cfg.KafkaBrokers) > 0 {
		kafkaRelay := relay.NewKafkaRelay(cfg.KafkaBrokers, cfg.KafkaTopic, bus)
		go kafkaRelay.Run(backgroundCtx)
		slog.Info("kafka relay enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	appRouter := router.New(cfg, middleware.NewAuthMiddleware(tokenService), router.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		Product:   handler.NewProductHandler(productService, imageService, cfg.MaxUploadSize),
		Docs:      handler.NewDocsHandler(cfg.OpenAPISpec),
		Health:    handler.NewHealthHandler(st.health, cfg.StoreDriver),
		WebSocket: handler.NewWebSocketHandler(hub, cfg.CORSOrigins),
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server:       server,
		background:   cancelBackground,
		cleanupFuncs: []func(){st.close},
	}, nil
}

// Handler exposes the routed handler for in-process use.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves until SIGINT or SIGTERM, then drains in-flight requests.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		a.Close()
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)
	a.Close()
	if err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// Close stops background workers and releases the stores.
func (a *App) Close() {
	a.background()
	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}
}
