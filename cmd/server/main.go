// main wires storage, caching, audit plumbing, and the HTTP surface, then
// runs the server and the audit worker until interrupted. Business logic
// lives in the internal service packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"medledger/internal/batch/cache"
	batchhandler "medledger/internal/batch/handler"
	batchservice "medledger/internal/batch/service"
	batchmemory "medledger/internal/batch/store/memory"
	batchpostgres "medledger/internal/batch/store/postgres"
	"medledger/internal/jwtauth"
	mfrhandler "medledger/internal/manufacturer/handler"
	mfrservice "medledger/internal/manufacturer/service"
	mfrmemory "medledger/internal/manufacturer/store/memory"
	mfrpostgres "medledger/internal/manufacturer/store/postgres"
	"medledger/internal/platform/config"
	"medledger/internal/platform/httpserver"
	"medledger/internal/platform/logger"
	"medledger/internal/platform/metrics"
	"medledger/internal/platform/middleware"
	platformredis "medledger/internal/platform/redis"
	"medledger/pkg/platform/audit"
	kafkasink "medledger/pkg/platform/audit/sink/kafka"
	auditmemory "medledger/pkg/platform/audit/store/memory"
	auditpostgres "medledger/pkg/platform/audit/store/postgres"
	"medledger/pkg/platform/audit/worker"
	"medledger/pkg/platform/tx"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	m := metrics.New()

	// Storage: PostgreSQL when a DSN is configured, in-memory otherwise.
	var (
		batchStore batchservice.Store
		mfrStore   mfrservice.Store
		auditStore audit.Store
		transactor tx.Transactor = tx.NoopTransactor{}
		db         *sql.DB
	)
	if cfg.PostgresDSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		batchStore = batchpostgres.New(db)
		mfrStore = mfrpostgres.New(db)
		auditStore = auditpostgres.New(db)
		transactor = tx.NewSQLTransactor(db)
		log.Info("using postgres storage")
	} else {
		batchStore = batchmemory.New()
		mfrStore = mfrmemory.New()
		auditStore = auditmemory.NewInMemoryStore()
		log.Info("using in-memory storage")
	}

	// Verification cache: shared via Redis when configured.
	var verifyCache cache.Cache
	redisClient, err := platformredis.New(cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		verifyCache = cache.NewRedisCache(redisClient, config.VerifyCacheTTL, log)
		log.Info("verify cache on redis", "addr", cfg.RedisAddr)
	} else {
		verifyCache = cache.NewInMemoryCache(config.VerifyCacheTTL)
	}

	// Audit: the store append is synchronous; broker delivery drains off a
	// queue so a slow broker never holds up a request.
	var (
		publisherSinks []audit.Sink
		auditWorker    *worker.Worker
	)
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := kafkasink.Dial(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer sink.Close()
		queue := worker.NewQueue(1024, log)
		auditWorker = worker.NewWorker(queue, sink)
		publisherSinks = append(publisherSinks, queue)
		log.Info("audit events mirrored to kafka", "topic", cfg.KafkaTopic)
	}
	publisher := audit.NewPublisher(auditStore, publisherSinks...)

	// Services.
	tokens := jwtauth.NewService(cfg.JWTSigningKey, "medledger")
	mfrs := mfrservice.New(mfrStore, tokens, config.TokenTTL,
		mfrservice.WithLogger(log),
		mfrservice.WithAuditPublisher(publisher),
		mfrservice.WithMetrics(m),
	)
	batches := batchservice.New(batchStore, mfrs,
		batchservice.WithLogger(log),
		batchservice.WithAuditPublisher(publisher),
		batchservice.WithMetrics(m),
		batchservice.WithTransactor(transactor),
		batchservice.WithVerifyCache(verifyCache),
	)

	// Router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Latency(m))
	r.Use(middleware.ContentTypeJSON)
	r.Use(chimw.Timeout(30 * time.Second))

	bh := batchhandler.New(batches, log)
	mh := mfrhandler.New(mfrs, log)

	mh.Register(r)
	bh.RegisterPublic(r)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(tokens, log))
		bh.RegisterProtected(r)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", healthHandler(db, redisClient))

	srv := httpserver.New(cfg.Addr, r)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("medledger listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if auditWorker != nil {
		g.Go(func() error {
			if err := auditWorker.Run(gCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func healthHandler(db *sql.DB, redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := `{"status":"ok"}`
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				body = `{"status":"degraded","postgres":"down"}`
			}
		}
		if redisClient != nil && status == http.StatusOK {
			if err := redisClient.Health(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				body = `{"status":"degraded","redis":"down"}`
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}
