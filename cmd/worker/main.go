package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"halaqa/internal/app"
	"halaqa/internal/audit"
	"halaqa/internal/bootstrap"
	"halaqa/internal/config"
	"halaqa/internal/hadith"
	"halaqa/internal/logging"
	"halaqa/internal/metrics"
	"halaqa/internal/roster"
)

// systemActor is recorded as the performer of scheduled work.
const systemActor = "system"

// Worker persists audit entries from the job queue and runs the daily hadith
// assignment on an interval.
func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend == "memory" {
		logger.Warn("QUEUE_BACKEND=memory: audit jobs stay inside the api process, the worker only schedules hadiths")
	}

	b, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("backends init failed", zap.Error(err))
	}
	defer b.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	students := roster.NewService(b.Roster)
	facade := app.New(app.Deps{
		Roster:   students,
		Hadith:   hadith.NewScheduler(b.Hadith, students, b.Locker, b.Events, cfg.Location(), logger.Named("hadith")),
		Audit:    audit.NewRecorder(b.Queue, logger),
		AuditLog: b.Audit,
		Metrics:  m,
		Location: cfg.Location(),
		Log:      logger,
	})

	metricsSrv := &http.Server{Addr: ":" + cfg.WorkerMetricsPort, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	var wg sync.WaitGroup
	if !b.InProcessAudit {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store := audit.Counted(b.Audit, m.AuditWritten.Inc)
			if err := audit.Consume(ctx, b.Queue, store, logger.Named("audit")); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("audit consumer stopped", zap.Error(err))
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		runHadith(ctx, facade, cfg.HadithInterval, logger)
	}()

	logger.Info("worker started", zap.Duration("hadith_interval", cfg.HadithInterval))
	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	wg.Wait()
	logger.Info("worker stopped")
}

// runHadith assigns immediately and then on every tick. Repeated runs on the
// same day do nothing.
func runHadith(ctx context.Context, f *app.Facade, every time.Duration, logger *zap.Logger) {
	if every <= 0 {
		every = 15 * time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		res, err := f.AssignHadith(ctx, systemActor)
		switch {
		case err != nil && ctx.Err() == nil:
			logger.Error("hadith assignment failed", zap.Error(err))
		case err == nil && res.Assigned > 0:
			logger.Info("hadith assigned", zap.Int("hadith_id", res.HadithID), zap.Int("students", res.Assigned), zap.String("date", res.Date))
		case err == nil && res.Skipped != "":
			logger.Debug("hadith assignment skipped", zap.String("reason", res.Skipped))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
