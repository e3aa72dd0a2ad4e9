package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/hackgods/clinic-booking/internal/api"
	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/directory"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/logger"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/notification"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/internal/slot"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("config load error")
	}

	log := logger.New(cfg.Env, cfg.LogLevel)
	log.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("store", cfg.StoreBackend).
		Str("directory", cfg.DirectoryBackend).
		Str("lock", cfg.LockBackend).
		Strs("sinks", cfg.NotifySinks).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var deps []api.Dependency

	var pgPool *pgxpool.Pool
	if cfg.NeedsPostgres() {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		if err == nil {
			err = db.Migrate(pgCtx, pgPool)
		}
		cancelPg()
		if err != nil {
			log.Fatal().Err(err).Msg("postgres setup error")
		}
		defer pgPool.Close()
		deps = append(deps, api.Dependency{Name: "postgres", Check: pgPool, Critical: true})
		log.Info().Msg("connected to Postgres")
	}

	var rdb *redis.Client
	if cfg.NeedsRedis() {
		rdb, err = redisclient.NewRedisClient(rootCtx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("error closing redis")
			}
		}()
		// a lost lock backend blocks every booking, a lost pub/sub channel only drops events
		deps = append(deps, api.Dependency{
			Name:     "redis",
			Check:    redisclient.Pinger{Client: rdb},
			Critical: cfg.LockBackend == config.BackendRedis,
		})
		log.Info().Msg("connected to Redis")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("clinic", reg)

	var dir directory.Directory = directory.NewDefaultDirectory()
	if cfg.DirectoryBackend == config.BackendPostgres {
		dir = directory.NewPgDirectory(pgPool)
	}
	if cfg.DirectoryCacheTTL > 0 {
		dir = directory.NewCachedDirectory(dir, cfg.DirectoryCacheTTL)
	}

	var repo appointment.Repository = appointment.NewMemoryRepository()
	if cfg.StoreBackend == config.BackendPostgres {
		repo = appointment.NewPgRepository(pgPool)
	}

	var locker appointment.Locker = appointment.NewLocalLocker()
	if cfg.LockBackend == config.BackendRedis {
		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL, cfg.LockWait)
	}

	var inbox *notification.Inbox
	var kafkaSink *notification.KafkaSink
	var sinks []notification.Sink
	for _, name := range cfg.NotifySinks {
		switch name {
		case "log":
			sinks = append(sinks, notification.NewLogSink(log))
		case "inbox":
			inbox = notification.NewInbox()
			sinks = append(sinks, inbox)
		case "redis":
			sinks = append(sinks, notification.NewRedisSink(rdb, cfg.NotifyChannel))
		case "kafka":
			kafkaSink = notification.NewKafkaSink(notification.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
			sinks = append(sinks, kafkaSink)
		case "postgres":
			sinks = append(sinks, notification.NewPgEventSink(pgPool))
		}
	}

	dispatcher := notification.NewDispatcher(sinks, notification.DispatcherOptions{
		Buffer:  cfg.NotifyBuffer,
		Workers: cfg.NotifyWorkers,
	}, log, m)

	svc := appointment.NewService(appointment.Dependencies{
		Repo:      repo,
		Locker:    locker,
		Directory: dir,
		Slots:     slot.NewCatalog(),
		Notifier:  dispatcher,
		Logger:    log,
		Metrics:   m,
	})

	handler := api.NewRouter(api.RouterConfig{
		Service:      svc,
		Directory:    dir,
		Auth:         identity.NewJWT(cfg.JWTSecret, cfg.JWTTTL),
		Inbox:        inbox,
		Dependencies: deps,
		Gatherer:     reg,
		Logger:       log,
		RateLimit:    rate.Limit(cfg.RateLimitRPS),
		RateBurst:    cfg.RateLimitBurst,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	// drain queued notifications after the last request has finished
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("notification queue not fully drained")
	}
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			log.Error().Err(err).Msg("error closing kafka writer")
		}
	}

	log.Info().Msg("api-server stopped")
}
