package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/risk-api/internal/config"
	"github.com/jwalitptl/risk-api/internal/handler/admin"
	"github.com/jwalitptl/risk-api/internal/handler/health"
	"github.com/jwalitptl/risk-api/internal/handler/login"
	"github.com/jwalitptl/risk-api/internal/handler/password"
	"github.com/jwalitptl/risk-api/internal/handler/prometheus"
	"github.com/jwalitptl/risk-api/internal/middleware"
	"github.com/jwalitptl/risk-api/internal/model"
	"github.com/jwalitptl/risk-api/internal/repository"
	"github.com/jwalitptl/risk-api/internal/repository/postgres"
	"github.com/jwalitptl/risk-api/internal/router"
	"github.com/jwalitptl/risk-api/internal/service/alert"
	"github.com/jwalitptl/risk-api/internal/service/breach"
	"github.com/jwalitptl/risk-api/internal/service/guard"
	"github.com/jwalitptl/risk-api/internal/service/strength"
	"github.com/jwalitptl/risk-api/internal/worker"
	"github.com/jwalitptl/risk-api/pkg/hibp"
	"github.com/jwalitptl/risk-api/pkg/kvstore"
	"github.com/jwalitptl/risk-api/pkg/logger"
	"github.com/jwalitptl/risk-api/pkg/messaging"
	"github.com/jwalitptl/risk-api/pkg/messaging/rabbitmq"
	redisbroker "github.com/jwalitptl/risk-api/pkg/messaging/redis"
	"github.com/jwalitptl/risk-api/pkg/metrics"
)

func main() {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal().Err(err).Msg("failed to load .env")
	}

	cfg, err := config.Load(os.Getenv("RISK_CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLog := logger.NewLogger(&logger.Config{
		Level:   logger.ParseLevel(cfg.Log.Level),
		Output:  os.Stdout,
		Console: cfg.Log.Format == "console",
	})
	appLog.SetGlobal()

	if err := run(cfg, appLog); err != nil {
		appLog.Fatal(err, "server failed")
	}
	appLog.Info("server exited properly")
}

func run(cfg *config.Config, appLog *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics("risk")

	store, err := newStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()
	appLog.Info("attempt store ready", "driver", cfg.Store.Driver)

	checks := map[string]health.Check{"store": store.Ping}

	var events repository.SecurityEventRepository
	if cfg.Database.Enabled {
		db, err := postgres.NewDB(ctx, postgres.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Name:            cfg.Database.Name,
			SSLMode:         cfg.Database.SSLMode,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return err
		}
		defer db.Close()
		checks["database"] = db.PingContext

		events = postgres.NewSecurityEventRepository(postgres.NewBaseRepository(db))
		cleanup := worker.NewSecurityEventCleanupWorker(events, cfg.Database.RetentionDays, cfg.Database.CleanupInterval, appLog)
		go cleanup.Start(ctx)
	}

	broker, err := newBroker(ctx, cfg.Alert.Broker)
	if err != nil {
		return err
	}
	if broker != nil {
		defer broker.Close()
	}

	sentryEnabled, err := alert.InitSentry(cfg.Sentry.DSN, cfg.Sentry.Environment)
	if err != nil {
		return fmt.Errorf("failed to initialise sentry: %w", err)
	}
	if sentryEnabled {
		defer alert.FlushSentry()
	}

	sinks := buildSinks(cfg, appLog, broker, events, sentryEnabled)
	dispatcher := alert.NewDispatcher(alert.Config{
		QueueSize:   cfg.Alert.QueueSize,
		Workers:     cfg.Alert.Workers,
		SendTimeout: cfg.Alert.SendTimeout,
	}, appLog, m, sinks...)
	dispatcher.Start()

	client := hibp.NewClient(hibp.Config{
		BaseURL:         cfg.Breach.BaseURL,
		Timeout:         cfg.Breach.Timeout,
		UserAgent:       cfg.Breach.UserAgent,
		BreakerFailures: cfg.Breach.BreakerFailures,
		BreakerTimeout:  cfg.Breach.BreakerTimeout,
	}, nil)
	breachSvc := breach.NewService(client, store, breach.Config{CacheTTL: cfg.Breach.CacheTTL}, appLog, m)
	sessions := breach.NewSessions(breachSvc, cfg.Breach.Debounce)

	scorer := strength.NewScorer(model.DefaultPasswordPolicy(), func(level model.StrengthLevel) {
		m.StrengthEvaluations.WithLabelValues(string(level)).Inc()
	})

	guardSvc := guard.NewService(store, dispatcher, guard.Config{
		WarnThreshold:     cfg.Guard.WarnThreshold,
		EscalateThreshold: cfg.Guard.EscalateThreshold,
		CriticalThreshold: cfg.Guard.CriticalThreshold,
		Window:            cfg.Guard.Window,
		OriginTTL:         cfg.Guard.OriginTTL,
	}, appLog, m)

	var auth *middleware.AuthMiddleware
	if cfg.JWT.Secret != "" {
		auth = middleware.NewAuthMiddleware(cfg.JWT.Secret, cfg.JWT.Issuer)
	} else {
		appLog.Warn("RISK_JWT_SECRET not set, admin routes disabled")
	}

	healthHandler := health.NewHandler(checks).
		WithInfo("breach_breaker", func() interface{} { return client.State() }).
		WithInfo("breach_sessions_in_flight", func() interface{} { return sessions.Pending() })

	r, err := router.NewRouter(auth, router.Handlers{
		Health:   healthHandler,
		Password: password.NewHandler(scorer, breachSvc, sessions),
		Login:    login.NewHandler(guardSvc),
		Admin:    admin.NewHandler(guardSvc, events),
		Metrics:  prometheus.New(m),
	}, router.RouterConfig{
		Mode:             cfg.Server.Mode,
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:        cfg.RateLimit.Burst,
		RateClientTTL:    cfg.RateLimit.ClientTTL,
		CORSConfig:       middleware.DefaultCORSConfig(cfg.Server.CORSOrigins),
		Timeout:          cfg.Server.RequestTimeout,
		MaxBodyBytes:     cfg.Server.MaxBodyBytes,
		TrustedProxies:   cfg.Server.TrustedProxies,
	})
	if err != nil {
		return err
	}
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		appLog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}
	appLog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error(err, "server forced to shutdown")
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		appLog.Error(err, "alert queue not drained before shutdown")
	}
	return nil
}

func newStore(ctx context.Context, cfg config.StoreConfig) (kvstore.Store, error) {
	switch cfg.Driver {
	case kvstore.DriverRedis:
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return kvstore.NewRedisStore(dialCtx, kvstore.RedisConfig{
			URL:          cfg.Redis.URL,
			KeyPrefix:    cfg.Redis.KeyPrefix,
			MaxRetries:   cfg.Redis.MaxRetries,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
	default:
		return kvstore.NewMemoryStore(cfg.SweepInterval), nil
	}
}

func newBroker(ctx context.Context, cfg config.BrokerConfig) (messaging.Broker, error) {
	switch cfg.Driver {
	case messaging.BrokerRedis:
		dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
		return redisbroker.NewRedisBroker(dialCtx, redisbroker.Config{URL: cfg.RedisURL})
	case messaging.BrokerRabbitMQ:
		return rabbitmq.NewBroker(rabbitmq.Config{
			URL:         cfg.RabbitMQURL,
			Exchange:    cfg.Exchange,
			DialTimeout: cfg.DialTimeout,
		})
	default:
		return nil, nil
	}
}

func buildSinks(cfg *config.Config, appLog *logger.Logger, broker messaging.Broker, events repository.SecurityEventRepository, sentryEnabled bool) []alert.Sink {
	sinks := []alert.Sink{alert.NewLogSink(appLog)}

	if cfg.Alert.Email.Enabled {
		sinks = append(sinks, alert.NewEmailSink(alert.EmailConfig{
			Host:        cfg.Alert.Email.Host,
			Port:        cfg.Alert.Email.Port,
			Username:    cfg.Alert.Email.Username,
			Password:    cfg.Alert.Email.Password,
			From:        cfg.Alert.Email.From,
			To:          cfg.Alert.Email.To,
			MinSeverity: model.Severity(cfg.Alert.Email.MinSeverity),
		}))
	}
	if broker != nil {
		sinks = append(sinks, alert.NewBrokerSink(broker, cfg.Alert.Broker.Channel, model.Severity(cfg.Alert.Broker.MinSeverity)))
	}
	if sentryEnabled {
		sinks = append(sinks, alert.NewSentrySink(nil, model.Severity(cfg.Sentry.MinSeverity)))
	}
	if events != nil {
		sinks = append(sinks, alert.NewStoreSink(events))
	}
	return sinks
}
