package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/cetzal/authcore/internal/auth"
	"github.com/cetzal/authcore/internal/config"
	"github.com/cetzal/authcore/internal/event"
	handler "github.com/cetzal/authcore/internal/handler/http"
	"github.com/cetzal/authcore/internal/repository"
	"github.com/cetzal/authcore/internal/repository/memory"
	"github.com/cetzal/authcore/internal/repository/postgres"
	redisrepo "github.com/cetzal/authcore/internal/repository/redis"
	"github.com/cetzal/authcore/internal/service"
	"github.com/cetzal/authcore/migrations"
	"github.com/cetzal/authcore/pkg/database"
	"github.com/cetzal/authcore/pkg/health"
	pkgkafka "github.com/cetzal/authcore/pkg/kafka"
	"github.com/cetzal/authcore/pkg/middleware"
	"github.com/cetzal/authcore/pkg/tracing"
)

// purgeTimeout bounds one janitor sweep; it may delete many rows.
const purgeTimeout = 30 * time.Second

// App wires together all dependencies and runs the auth service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	blacklist      repository.Blacklist
	memBlacklist   *memory.Blacklist
	janitor        *service.Janitor
	httpServer     *http.Server
	tracerShutdown func(context.Context) error

	janitorCancel context.CancelFunc
	janitorDone   sync.WaitGroup
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, tracerShutdown: tracerShutdown}

	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		_ = a.close()
		return nil, err
	}
	a.pool = pool
	database.RegisterPoolMetrics(pool, cfg.ServiceName)

	if cfg.RedisEnabled {
		client, err := database.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			_ = a.close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))
	}

	var publisher event.Publisher
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = a.producer
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	a.blacklist = a.newBlacklist()

	// Build the dependency graph.
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
	userRepo := postgres.NewUserRepository(pool)
	productRepo := postgres.NewProductRepository(pool)
	events := event.NewProducer(publisher, logger)

	authService := service.NewAuthService(userRepo, a.blacklist, tokens, events, service.AuthConfig{
		RotateRefresh: cfg.JWTRotateRefresh,
		StoreTimeout:  cfg.StoreTimeout,
	}, logger)
	userService := service.NewUserService(userRepo, logger)
	productService := service.NewProductService(productRepo, logger)
	a.janitor = service.NewJanitor(a.blacklist, cfg.BlacklistPurgeInterval, purgeTimeout, logger)

	router := handler.NewRouter(handler.RouterDeps{
		Auth:        authService,
		Users:       userService,
		Products:    productService,
		Health:      a.healthChecks(),
		CORS:        middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins},
		ServiceName: cfg.ServiceName,
		Logger:      logger,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

// Connect opens the PostgreSQL pool and applies pending migrations. The seed
// command uses it without the rest of the application.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQuery > 0 {
		database.SetSlowQueryLogging(cfg.SlowQuery, logger)
	}
	return pool, nil
}

// newBlacklist picks the revocation store. The Redis cache, when enabled,
// fronts the durable store.
func (a *App) newBlacklist() repository.Blacklist {
	var bl repository.Blacklist
	switch a.cfg.BlacklistStore {
	case config.BlacklistMemory:
		a.logger.Warn("using in-process token blacklist; revocations are lost on restart")
		a.memBlacklist = memory.NewBlacklist()
		bl = a.memBlacklist
	default:
		bl = postgres.NewBlacklistRepository(a.pool)
	}

	if a.redis != nil {
		bl = redisrepo.NewCachedBlacklist(a.redis, bl, a.logger)
	}
	return bl
}

func (a *App) healthChecks() *health.Handler {
	h := health.NewHandler()
	h.Register("postgres", func(ctx context.Context) error {
		return a.pool.Ping(ctx)
	})
	if a.redis != nil {
		h.RegisterNonCritical("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}
	if a.producer != nil {
		h.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return a.producer.Ping(ctx)
		})
	}
	return h
}

// Run starts the HTTP server and the blacklist janitor, and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	janitorCtx, janitorCancel := context.WithCancel(context.Background())
	a.janitorCancel = janitorCancel
	a.janitorDone.Add(1)
	go func() {
		defer a.janitorDone.Done()
		a.janitor.Run(janitorCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	return errors.Join(runErr, a.Shutdown())
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Blacklist janitor
// 3. Tracer (flush pending spans from drained requests)
// 4. Kafka producer, Redis, blacklist and PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.HTTPShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.janitorCancel != nil {
		a.janitorCancel()
		a.janitorDone.Wait()
	}

	errs = append(errs, a.close())

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// close releases everything NewApp may have opened. It tolerates a partially
// initialized App.
func (a *App) close() error {
	var errs []error

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.memBlacklist != nil {
		if err := a.memBlacklist.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if a.pool != nil {
		a.pool.Close()
	}

	return errors.Join(errs...)
}
