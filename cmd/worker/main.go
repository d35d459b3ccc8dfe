package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-image-orders/internal/app"
	"github.com/ariefcatur/go-image-orders/internal/config"
	"github.com/ariefcatur/go-image-orders/internal/logging"
	"github.com/ariefcatur/go-image-orders/internal/observability"
	"github.com/ariefcatur/go-image-orders/internal/orders"
	"github.com/ariefcatur/go-image-orders/internal/postgres"
	"github.com/ariefcatur/go-image-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logging.New(cfg.ServiceName+"-worker", cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	if cfg.QueueBackend == config.QueueMemory {
		log.Fatal("memory queue runs inside the api process; set QUEUE_BACKEND=kafka for a standalone worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsHandler, mp, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.WithError(err).Fatal("metrics init")
	}
	defer func() { _ = shutdownMetrics(context.Background()) }()
	m, err := observability.NewMetrics(mp)
	if err != nil {
		log.WithError(err).Fatal("metrics instruments")
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolConfig{MaxConns: int32(cfg.WorkerConcurrency) + 2})
	if err != nil {
		log.WithError(err).Fatal("db")
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	repo := &orders.Repo{DB: db}
	query := orders.NewQuery(repo, redisx.NewCache(rdb), log)
	q, closeQueue := app.NewJobQueue(cfg, log)
	defer closeQueue()
	svc := app.NewProcessor(cfg, repo, rdb, query, m, log)

	mux := chi.NewRouter()
	mux.Method(http.MethodGet, "/metrics", metricsHandler)
	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	msrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(logrus.Fields{
			"group":   cfg.KafkaGroup,
			"topic":   orders.TopicImageJobs,
			"workers": cfg.WorkerConcurrency,
		}).Info("image worker started")
		return app.StartWorker(gctx, q, svc)
	})
	g.Go(func() error {
		if err := msrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return msrv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("worker exited")
	}
	log.Info("worker stopped")
}
