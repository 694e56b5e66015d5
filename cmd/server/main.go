package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	connectionhandler "carebridge/internal/connection/handler"
	connectionmetrics "carebridge/internal/connection/metrics"
	connectionservice "carebridge/internal/connection/service"
	connectionstore "carebridge/internal/connection/store"
	jwttoken "carebridge/internal/jwt_token"
	membershiphandler "carebridge/internal/membership/handler"
	membershipmetrics "carebridge/internal/membership/metrics"
	membershipservice "carebridge/internal/membership/service"
	membershipstore "carebridge/internal/membership/store"
	"carebridge/internal/membership/webhook"
	"carebridge/internal/notify"
	"carebridge/internal/platform/config"
	"carebridge/internal/platform/httpserver"
	"carebridge/internal/platform/logger"
	"carebridge/internal/platform/metrics"
	"carebridge/internal/platform/postgres"
	"carebridge/internal/platform/redis"
	profilehandler "carebridge/internal/profile/handler"
	profilestore "carebridge/internal/profile/store"
	httptransport "carebridge/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	var (
		connStore    connectionstore.Store
		memberStore  membershipservice.Store
		profileStore connectionservice.ProfileDirectory
		outboxStore  notify.Store
		connOpts     []connectionservice.Option
	)
	if cfg.Postgres.URL != "" {
		db, err := postgres.Open(cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()
		connStore = connectionstore.NewPostgresStore(db)
		memberStore = membershipstore.NewPostgresStore(db)
		profileStore = profilestore.NewPostgresStore(db)
		outboxStore = notify.NewPostgresStore(db)
		connOpts = append(connOpts, connectionservice.WithTxRunner(newOutboxPostgresTx(db)))
	} else {
		log.Warn("POSTGRES_URL not set, running on in-memory stores")
		connStore = connectionstore.NewInMemory()
		memberStore = membershipstore.NewInMemoryStore()
		profileStore = profilestore.NewInMemoryStore()
		outboxStore = notify.NewMemoryStore()
	}

	memberMetrics := membershipmetrics.New()
	memberSvc, err := membershipservice.New(memberStore,
		membershipservice.WithLogger(log),
		membershipservice.WithMetrics(memberMetrics),
	)
	if err != nil {
		return err
	}

	connOpts = append(connOpts,
		connectionservice.WithNotifier(notify.NewPublisher(outboxStore)),
		connectionservice.WithLogger(log),
		connectionservice.WithMetrics(connectionmetrics.New()),
	)
	connSvc, err := connectionservice.New(connStore, profileStore, memberSvc, connOpts...)
	if err != nil {
		return err
	}

	dedup := webhook.Dedup(webhook.NewMemoryDedup())
	rdb, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		dedup = webhook.NewRedisDedup(rdb.Client, cfg.Billing.DedupTTL)
	}

	jwtValidator := jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(
		cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience))

	verifier := webhook.NewSignatureVerifier(cfg.Billing.WebhookSecret, cfg.Billing.SignatureTolerance)

	router := httptransport.NewRouter(metrics.New(),
		connectionhandler.New(connSvc, log, jwtValidator),
		membershiphandler.New(memberSvc, profileStore, log, jwtValidator),
		profilehandler.New(profileStore, log, jwtValidator),
		webhook.New(memberSvc, dedup, log, memberMetrics, verifier),
	)
	srv := httpserver.New(cfg.Server.Addr, router)

	var worker *notify.Worker
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := notify.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.NotifyTopic)
		if err != nil {
			return err
		}
		defer sink.Close()
		worker = notify.NewWorker(outboxStore, sink, cfg.Kafka.PollInterval, log)
	} else {
		log.Warn("KAFKA_BROKERS not set, notification outbox will not drain")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting carebridge", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if worker != nil {
		g.Go(func() error {
			return worker.Run(ctx)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("carebridge stopped")
	return nil
}
