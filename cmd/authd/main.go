// Command authd runs one instance of the authentication service. Any number
// of instances can run side by side: rate-limit windows and session state
// live in Redis, identities in Postgres, so the instances agree without
// sharing memory.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/wellmind/authkit"
	"github.com/wellmind/authkit/audit"
	"github.com/wellmind/authkit/identity/gormstore"
	"github.com/wellmind/authkit/linker"
	"github.com/wellmind/authkit/metrics"
	"github.com/wellmind/authkit/password"
	"github.com/wellmind/authkit/ratelimit"
	"github.com/wellmind/authkit/session"
	"github.com/wellmind/authkit/token"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "authd").Logger()

	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("authd exited")
	}
}

func run(log zerolog.Logger) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return err
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	db, err := gormstore.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	identities, err := gormstore.New(db)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	limiter := ratelimit.New(
		ratelimit.NewRedisCounter(redisClient, "rl"),
		ratelimit.WithPolicy(throttlePolicy(cfg)),
		ratelimit.WithFailureHook(func(key string, err error) {
			collector.RecordStoreFailure()
			log.Warn().Err(err).Str("key", key).Msg("counter store failure")
		}),
	)

	tokens, err := token.NewManager(token.Config{
		Secret: []byte(cfg.TokenSecret),
		Issuer: cfg.TokenIssuer,
		Leeway: 30 * time.Second,
	})
	if err != nil {
		return err
	}

	sink, closeSink := buildAuditSink(cfg, log)
	dispatcher := audit.NewDispatcher(audit.Config{BufferSize: 256, DropIfFull: true}, sink)
	defer func() {
		dispatcher.Close()
		closeSink()
	}()

	engineCfg := authkit.DefaultConfig()
	engineCfg.Token.Secret = []byte(cfg.TokenSecret)
	engineCfg.Token.Issuer = cfg.TokenIssuer
	engineCfg.Session.TTL = cfg.SessionTTL
	engineCfg.Throttle.LoginLimit = cfg.LoginLimit
	engineCfg.Throttle.LoginWindow = cfg.LoginWindow
	engineCfg.Throttle.PerIP = cfg.ThrottlePerIP
	engineCfg.Throttle.FailClosed = cfg.ThrottleFailClosed
	engineCfg.StoreTimeout = cfg.StoreTimeout

	engine, err := authkit.New(engineCfg, authkit.Deps{
		Identities: identities,
		Sessions:   session.NewStore(redisClient, engineCfg.Session.RedisPrefix),
		Tokens:     tokens,
		Hasher:     password.NewBcrypt(0),
		Limiter:    limiter,
		Linker:     linker.New(identities),
		Metrics:    collector,
		Audit:      dispatcher,
		Logger:     &log,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newServer(engine, registry, log).routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Msg("shut down")
	return nil
}

func throttlePolicy(cfg config) ratelimit.Policy {
	if cfg.ThrottleFailClosed {
		return ratelimit.FailClosed
	}
	return ratelimit.FailOpen
}

func buildAuditSink(cfg config, log zerolog.Logger) (audit.Sink, func()) {
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaAuditTopic)
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaAuditTopic).
			Msg("audit events to kafka")
		return kafkaSink, func() { _ = kafkaSink.Close() }
	}
	return audit.NewJSONWriterSink(os.Stdout), func() {}
}
