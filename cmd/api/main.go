package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"halaqa/internal/app"
	"halaqa/internal/audit"
	"halaqa/internal/auth"
	"halaqa/internal/avatar"
	"halaqa/internal/bootstrap"
	"halaqa/internal/config"
	"halaqa/internal/hadith"
	"halaqa/internal/handler"
	"halaqa/internal/httpmiddleware"
	"halaqa/internal/logging"
	"halaqa/internal/metrics"
	"halaqa/internal/roster"
	"halaqa/internal/session"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func run(cfg config.App, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	loc := cfg.Location()
	m := metrics.New(prometheus.DefaultRegisterer)
	tokens := auth.Issuer{
		Name:       cfg.JWTIssuer,
		Key:        cfg.JWTSigningKey,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	}

	students := roster.NewService(b.Roster)
	deps := app.Deps{
		Roster:   students,
		Queue:    session.NewEngine(b.Sessions, students, b.Events, loc, logger.Named("session")),
		Hadith:   hadith.NewScheduler(b.Hadith, students, b.Locker, b.Events, loc, logger.Named("hadith")),
		Auth:     auth.NewProvider(students, cfg.OTPCode),
		Tokens:   tokens,
		Audit:    audit.NewRecorder(b.Queue, logger),
		AuditLog: b.Audit,
		Metrics:  m,
		Location: loc,
		Log:      logger,
	}
	// A nil *Cloudinary must not become a non-nil Uploader.
	if cdn := avatar.NewCloudinary(cfg.CloudinaryName, cfg.CloudinaryKey, cfg.CloudinarySec, cfg.CloudinaryDir); cdn != nil {
		deps.Avatars = cdn
		logger.Info("cloudinary configured", zap.String("cloud", cfg.CloudinaryName))
	} else {
		logger.Info("cloudinary not configured, avatar uploads disabled")
	}
	facade := app.New(deps)

	if cfg.SheikhPhone != "" {
		u, created, err := facade.EnsureSheikh(ctx, cfg.SheikhName, cfg.SheikhPhone, cfg.SheikhPassword)
		if err != nil {
			return err
		}
		if created {
			logger.Info("sheikh account created", zap.String("id", u.ID))
		}
	}

	if b.InProcessAudit {
		go func() {
			if err := audit.Consume(ctx, b.Queue, audit.Counted(b.Audit, m.AuditWritten.Inc), logger.Named("audit")); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("audit consumer stopped", zap.Error(err))
			}
		}()
	}

	var limiter httpmiddleware.Limiter = httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	if b.Redis != nil {
		limiter = httpmiddleware.NewRedisWindow(b.Redis.Client, cfg.RateLimitPerMin)
	}

	h := handler.New(facade, b.Events, b.Checks(), logger)
	r := h.Router(handler.RouterOptions{
		Tokens:       tokens,
		Metrics:      m,
		Limiter:      limiter,
		AllowOrigins: cfg.AllowOrigins,
		Log:          logger,
	})

	// WriteTimeout stays zero: the event stream holds responses open.
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")
	// Closing the bus ends the open event streams.
	_ = b.Events.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
	return nil
}
