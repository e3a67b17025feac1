package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"titleledger/internal/audit"
	"titleledger/internal/audit/outbox"
	auditpg "titleledger/internal/audit/store/postgres"
	"titleledger/internal/ownership/handler"
	"titleledger/internal/ownership/service"
	"titleledger/internal/ownership/staging"
	"titleledger/internal/ownership/store/document"
	"titleledger/internal/ownership/store/ledger"
	"titleledger/internal/ownership/store/owner"
	"titleledger/internal/ownership/store/transfer"
	"titleledger/internal/ownership/store/unit"
	"titleledger/internal/ownership/verifier"
	"titleledger/internal/platform/config"
	"titleledger/internal/platform/httpserver"
	"titleledger/internal/platform/kafka"
	"titleledger/internal/platform/logger"
	"titleledger/internal/platform/postgres"
	platformredis "titleledger/internal/platform/redis"
	txcontext "titleledger/pkg/platform/tx"
)

const outboxPollInterval = 2 * time.Second

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}

	var stagingStore staging.Store
	if redisClient != nil {
		defer redisClient.Close()
		stagingStore = staging.NewRedis(redisClient.Client)
	} else {
		log.Warn("redis not configured, staging distributions held in process memory")
		stagingStore = staging.NewMemory()
	}

	auditStore := auditpg.New(db)

	var docVerifier verifier.DocumentVerifier = verifier.AcceptAll{}
	if cfg.VerifierMode == "strict" {
		docVerifier = verifier.Strict{}
	}

	svc := service.New(service.Deps{
		Tx:         txcontext.NewRunner(db),
		Units:      unit.NewPostgres(db),
		Owners:     owner.NewPostgres(db),
		Ledger:     ledger.NewPostgres(db),
		Transfers:  transfer.NewPostgres(db),
		Documents:  document.NewPostgres(db),
		Staging:    stagingStore,
		Verifier:   docVerifier,
		Auditor:    audit.NewRecorder(auditStore),
		Logger:     log,
		StagingTTL: cfg.StagingTTL,
	})

	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		log.Error("kafka connection failed", "error", err)
		os.Exit(1)
	}
	if producer != nil {
		defer producer.Close()
		topicCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := producer.EnsureTopic(topicCtx, 3, 1); err != nil {
			cancel()
			log.Error("audit topic creation failed", "error", err)
			os.Exit(1)
		}
		cancel()

		relay := outbox.NewRelay(auditStore, producer, log, outboxPollInterval)
		go func() {
			if err := relay.Run(ctx); err != nil && err != context.Canceled {
				log.Error("outbox relay stopped", "error", err)
			}
		}()
	} else {
		log.Warn("kafka brokers not configured, audit events stay queued in the outbox")
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(30 * time.Second))
	handler.New(svc, log).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	log.Info("starting titleledger", "addr", cfg.Server.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
