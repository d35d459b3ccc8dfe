package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-image-orders/internal/app"
	"github.com/ariefcatur/go-image-orders/internal/config"
	"github.com/ariefcatur/go-image-orders/internal/httpx"
	"github.com/ariefcatur/go-image-orders/internal/ingest"
	"github.com/ariefcatur/go-image-orders/internal/logging"
	"github.com/ariefcatur/go-image-orders/internal/observability"
	"github.com/ariefcatur/go-image-orders/internal/orders"
	"github.com/ariefcatur/go-image-orders/internal/postgres"
	"github.com/ariefcatur/go-image-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.ServiceName+"-api", cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid config")
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
	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		log.WithError(err).Fatal("migrate")
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolConfig{})
	if err != nil {
		log.WithError(err).Fatal("db connect")
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Queue
	q, closeQueue := app.NewJobQueue(cfg, log)
	defer closeQueue()

	repo := &orders.Repo{DB: db}
	query := orders.NewQuery(repo, redisx.NewCache(rdb), log)

	router := httpx.NewRouter(log, metricsHandler)
	h := &httpx.SKUHandler{
		Ingest:         ingest.NewPipeline(cfg.UploadDir, m, log),
		Submit:         orders.NewSubmitter(repo, q, log),
		Query:          query,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Log:            log,
	}
	h.Register(router)
	if cfg.StorageBackend == config.StorageLocal {
		router.Handle("/objects/*", http.StripPrefix("/objects/", http.FileServer(http.Dir(cfg.LocalStorageDir))))
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	// memory queue has no separate worker process
	if cfg.QueueBackend == config.QueueMemory {
		svc := app.NewProcessor(cfg, repo, rdb, query, m, log)
		g.Go(func() error {
			log.WithField("workers", cfg.WorkerConcurrency).Info("in-process worker started")
			return app.StartWorker(gctx, q, svc)
		})
	}

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("api exited")
	}
}
