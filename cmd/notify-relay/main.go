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

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/logger"
	"github.com/hackgods/clinic-booking/internal/metrics"
	"github.com/hackgods/clinic-booking/internal/notification"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
)

// notify-relay moves lifecycle events published by api-server replicas on the
// Redis channel into Kafka for downstream consumers.
func main() {
	cfg, err := config.LoadRelay()
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("config load error")
	}

	log := logger.New(cfg.Env, cfg.LogLevel).With().Str("service", "notify-relay").Logger()
	log.Info().
		Str("channel", cfg.NotifyChannel).
		Strs("kafka_brokers", cfg.KafkaBrokers).
		Str("kafka_topic", cfg.KafkaTopic).
		Msg("notify-relay starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
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
	log.Info().Msg("connected to Redis")

	sinks := []notification.Sink{notification.NewLogSink(log)}

	var kafkaSink *notification.KafkaSink
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink = notification.NewKafkaSink(notification.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		sinks = append(sinks, kafkaSink)
	} else {
		log.Warn().Msg("KAFKA_BROKERS not set, relaying to log only")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("clinic_relay", reg)

	var metricsSrv *http.Server
	if cfg.RelayMetricsPort != "" {
		r := chi.NewRouter()
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{
			Addr:              net.JoinHostPort("", cfg.RelayMetricsPort),
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info().Str("addr", metricsSrv.Addr).Msg("metrics listening")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	dispatcher := notification.NewDispatcher(sinks, notification.DispatcherOptions{
		Buffer:  cfg.NotifyBuffer,
		Workers: cfg.NotifyWorkers,
	}, log, m)

	relayed := 0
	for ev := range notification.Subscribe(rootCtx, rdb, cfg.NotifyChannel, log) {
		dispatcher.Publish(ev)
		relayed++
	}

	log.Info().Int("relayed", relayed).Msg("shutdown signal received, draining")
	drainStart := time.Now()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("relay queue not fully drained")
	}
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			log.Error().Err(err).Msg("error closing kafka writer")
		}
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("metrics server shutdown")
		}
	}

	log.Info().Dur("drain", time.Since(drainStart)).Msg("notify-relay stopped")
}
