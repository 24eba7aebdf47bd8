// Package main is the entrypoint for the expensync API server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	"github.com/expensync/expensync/internal/auth"
	"github.com/expensync/expensync/internal/broadcast"
	"github.com/expensync/expensync/internal/cache"
	"github.com/expensync/expensync/internal/config"
	"github.com/expensync/expensync/internal/handler"
	"github.com/expensync/expensync/internal/metrics"
	"github.com/expensync/expensync/internal/middleware"
	"github.com/expensync/expensync/internal/notify"
	"github.com/expensync/expensync/internal/repository"
	"github.com/expensync/expensync/internal/server"
	"github.com/expensync/expensync/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := initLogger(cfg)

	// Initialize document store
	repo, err := repository.New(ctx, cfg.MongoURI, repository.Options{
		Database:     cfg.MongoDatabase,
		Transactions: cfg.MongoTransactions,
		MaxPoolSize:  cfg.MongoMaxPoolSize,
		MinPoolSize:  cfg.MongoMinPoolSize,
	})
	if err != nil {
		logger.Error("failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.MongoURI)),
			slog.String("mongo_uri", redactURL(cfg.MongoURI)),
		)
		return errors.New("database unavailable")
	}
	logger.Info("connected to database", "database", cfg.MongoDatabase, "transactions", cfg.MongoTransactions)

	if err := repo.EnsureIndexes(ctx); err != nil {
		return err
	}

	// Initialize Redis (optional)
	var cacheClient *cache.Cache
	if cfg.RedisEnabled() {
		cacheClient, err = cache.New(ctx, cfg.RedisURL, cache.Options{
			PoolSize:        cfg.RedisPoolSize,
			MinIdleConns:    cfg.RedisMinIdleConns,
			PoolTimeout:     cfg.RedisPoolTimeout,
			ConnMaxIdleTime: cfg.RedisConnMaxIdleTime,
		})
		if err != nil {
			logger.Error("failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			return errors.New("redis unavailable")
		}
		logger.Info("connected to Redis")
	} else {
		logger.Warn("REDIS_URL not set: broadcast is in-process only, identity cache and rate limiting disabled")
	}

	// Metrics
	var recorder metrics.Recorder = metrics.NewNoop()
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		prom := metrics.NewPrometheus()
		recorder = prom
		metricsHandler = prom.Handler()
	}

	// Broadcast channel
	opts := broadcast.Options{BufferSize: cfg.BroadcastBuffer, Recorder: recorder}
	if cacheClient != nil {
		opts.Adapter = broadcast.NewRedisAdapter(cacheClient.Client(), cfg.BroadcastChannel, logger)
	}
	channel := broadcast.New(logger, opts)
	if err := channel.Start(ctx); err != nil {
		return err
	}

	// Token verification
	validator, err := buildValidator(ctx, cfg)
	if err != nil {
		return err
	}

	// Initialize services
	emitter := notify.NewEmitter(repo, channel, logger, recorder)
	userService := service.NewUserService(repo, logger)
	listService := service.NewListService(repo, emitter, logger, recorder)
	expenseService := service.NewExpenseService(repo, emitter, logger, recorder)
	notificationService := service.NewNotificationService(repo)

	authCfg := middleware.AuthConfig{
		Logger:    logger,
		Validator: validator,
		Users:     userService,
	}
	rateLimitCfg := middleware.RateLimitConfig{
		Logger:              logger,
		Recorder:            recorder,
		Enabled:             cfg.RateLimitEnabled && cacheClient != nil,
		RequestsPerMinute:   cfg.RateLimitRPM,
		Burst:               cfg.RateLimitBurst,
		IPRequestsPerSecond: cfg.RateLimitIPRPS,
		IPBurst:             cfg.RateLimitIPBurst,
	}
	var healthCache handler.HealthChecker
	if cacheClient != nil {
		authCfg.Cache = cacheClient
		rateLimitCfg.Limiter = cacheClient
		healthCache = cacheClient
	}

	r := handler.NewRouter(handler.RouterConfig{
		Logger:        logger,
		Recorder:      recorder,
		Health:        handler.NewHealthHandler(repo, healthCache),
		Lists:         handler.NewListHandler(listService, logger),
		Expenses:      handler.NewExpenseHandler(expenseService, logger),
		Notifications: handler.NewNotificationHandler(notificationService, logger),
		Users:         handler.NewUserHandler(userService, logger),
		Socket:        broadcast.NewSocketHandler(channel, logger, recorder, cfg.GetCORSAllowedOrigins()),
		Metrics:       metricsHandler,
		Auth:          authCfg,
		RateLimit:     rateLimitCfg,
		CORSOrigins:   cfg.GetCORSAllowedOrigins(),
		IsDevelopment: cfg.IsDevelopment(),
		MaxBodyBytes:  cfg.MaxRequestBodySize,
	})

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// Registered first, closed last.
	srv.OnShutdown("mongo", repo.Close)
	if cacheClient != nil {
		srv.OnShutdown("redis", func(context.Context) error { return cacheClient.Close() })
	}
	srv.OnShutdown("broadcast", func(context.Context) error {
		cancel()
		return channel.Close()
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"node", channel.Node(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return srv.Run(gctx)
	})
	g.Go(func() error {
		err := channel.Listen(gctx)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, broadcast.ErrClosed) {
			logger.Error("broadcast listener stopped", "error", err)
			return err
		}
		return nil
	})

	return g.Wait()
}

// buildValidator chains every configured verification method.
func buildValidator(ctx context.Context, cfg *config.Config) (auth.TokenValidator, error) {
	var chain auth.ChainValidator

	if cfg.AuthIssuerURL != "" {
		// The deadline bounds the metadata fetch; key refreshes do not inherit it.
		discoverCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		v, err := auth.NewOIDCValidator(discoverCtx, cfg.AuthIssuerURL, cfg.AuthAudience)
		if err != nil {
			return nil, err
		}
		chain = append(chain, v)
	}
	if cfg.AuthJWKSURL != "" {
		chain = append(chain, auth.NewJWKSValidator(ctx, cfg.AuthJWKSURL, cfg.AuthIssuerURL, cfg.AuthAudience))
	}
	if cfg.AuthHS256Secret != "" {
		v, err := auth.NewHS256Validator(cfg.AuthHS256Secret, cfg.AuthAudience)
		if err != nil {
			return nil, err
		}
		chain = append(chain, v)
	}

	if len(chain) == 1 {
		return chain[0], nil
	}
	return chain, nil
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	switch cfg.LogFormat {
	case "json":
		h = slog.NewJSONHandler(os.Stdout, opts)
	case "pretty":
		h = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	default:
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
