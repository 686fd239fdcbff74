package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"go-user-admin/internal/config"
	"go-user-admin/internal/database"
	"go-user-admin/internal/event"
	"go-user-admin/internal/handler"
	"go-user-admin/internal/metrics"
	"go-user-admin/internal/middleware"
	"go-user-admin/internal/repository"
	"go-user-admin/internal/router"
	"go-user-admin/internal/service"
	"go-user-admin/internal/session"
	"go-user-admin/internal/telemetry"
	"go-user-admin/internal/websocket"
)

type App struct {
	cfg          *config.Config
	server       *http.Server
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg}
	ctx := context.Background()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.addCleanup(func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	})

	m := metrics.New(cfg.MetricsEnabled)
	health := handler.NewHealthHandler()

	tokens, err := service.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	if cfg.SessionCookieMaxAge > cfg.JWTTTL {
		slog.Warn("session cookie outlives its token; expired cookies will redirect to login",
			"cookie_max_age", cfg.SessionCookieMaxAge, "token_ttl", cfg.JWTTTL)
	}

	credentials, err := repository.LoadCredentialFile(cfg.CredentialsFile)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	slog.Info("credentials loaded", "file", cfg.CredentialsFile, "count", credentials.Len())

	store, err := a.openUserStore(ctx, health)
	if err != nil {
		a.cleanup()
		return nil, err
	}
	if cfg.SeedUsers {
		seeded, err := repository.SeedUsers(ctx, store, time.Now().UTC())
		if err != nil {
			a.cleanup()
			return nil, fmt.Errorf("failed to seed users: %w", err)
		}
		if seeded > 0 {
			slog.Info("seeded user directory", "count", seeded)
		}
	}

	bus := event.NewBus()
	a.startEventForwarder(bus, m)

	hub := websocket.NewHub(bus)
	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)
	a.addCleanup(stopHub)

	userService := service.NewUserService(store, bus)
	authService := service.NewAuthService(credentials, tokens)
	authService.SetLoginRecorder(userService)

	authLimiter := a.authLimiter(health)

	pages, err := handler.NewPageHandler()
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("failed to parse page templates: %w", err)
	}

	cookie := session.CookieConfig{Secure: cfg.SecureCookies(), MaxAge: cfg.SessionCookieMaxAge}
	appRouter := router.New(cfg, router.Middlewares{
		Auth:      middleware.NewAuthMiddleware(tokens, m),
		RateLimit: middleware.NewRateLimitMiddleware(middleware.NewLocalLimiter(cfg.RateLimitRPM), authLimiter),
		Gate:      middleware.RouteGate(tokens, m),
		Metrics:   m,
		Tracer:    otel.GetTracerProvider(),
	}, router.Handlers{
		Auth:   handler.NewAuthHandler(authService, cookie, m),
		User:   handler.NewUserHandler(userService),
		Page:   pages,
		Docs:   handler.NewDocsHandler(),
		Health: health,
		Events: hub,
	})

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return a, nil
}

func (a *App) openUserStore(ctx context.Context, health *handler.HealthHandler) (service.UserStore, error) {
	if a.cfg.UserStore != config.UserStorePostgres {
		slog.Info("using in-memory user directory")
		return repository.NewMemoryUserRepository(), nil
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, a.cfg.DatabaseURL, a.cfg.DBMaxConns, a.cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.addCleanup(db.Close)

	if err := db.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}
	health.Register("database", db.Health)
	slog.Info("database ready")

	return repository.NewPostgresUserRepository(db.SQL), nil
}

func (a *App) startEventForwarder(bus *event.InMemoryBus, m *metrics.Metrics) {
	if len(a.cfg.KafkaBrokers) == 0 {
		return
	}

	forwarder := event.NewKafkaForwarder(event.NewKafkaWriter(a.cfg.KafkaBrokers, a.cfg.KafkaTopic))
	forwarder.SetMetrics(m)

	events, unsubscribe := bus.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		forwarder.Run(ctx, events)
	}()

	a.addCleanup(func() {
		unsubscribe()
		cancel()
		<-done
		if err := forwarder.Close(); err != nil {
			slog.Warn("failed to close kafka forwarder", "error", err)
		}
	})
	slog.Info("forwarding user events to kafka", "brokers", a.cfg.KafkaBrokers, "topic", a.cfg.KafkaTopic)
}

// authLimiter shares the login budget across instances through Redis when
// one is configured and keeps it per process otherwise.
func (a *App) authLimiter(health *handler.HealthHandler) middleware.Limiter {
	if a.cfg.RedisAddr == "" {
		return middleware.NewLocalLimiter(a.cfg.AuthRateLimitRPM)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	})
	a.addCleanup(func() {
		if err := client.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	})
	health.Register("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})

	slog.Info("using redis for auth rate limiting", "addr", a.cfg.RedisAddr)
	return middleware.NewRedisLimiter(client, a.cfg.AuthRateLimitRPM, "ratelimit:auth")
}

func (a *App) addCleanup(fn func()) {
	a.cleanupFuncs = append(a.cleanupFuncs, fn)
}

// cleanup releases resources in reverse order of acquisition.
func (a *App) cleanup() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
	a.cleanupFuncs = nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr, "env", a.cfg.AppEnv)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)
	a.cleanup()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}
