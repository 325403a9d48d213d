package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/backup"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/config"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/handler"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/logging"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/mailer"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/router"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/seed"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/service"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/store"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "healthy-city: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	logger, sink, err := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
		GelfAddr:    cfg.GelfAddr,
	})
	if err != nil {
		return err
	}
	defer sink.Close()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	defer st.Close()
	logger.Info("store ready", zap.String("backend", cfg.Store.Backend))

	// Services
	mail := mailer.New(cfg.Mail, logger)
	entities := service.NewEntityService(st)
	funcs := service.NewFunctions(st, entities, mail, cfg.Auth.VerificationFailOpen, logger)
	authSvc := service.NewAuthService(st, funcs, service.AuthOptions{
		Secret:           cfg.JWTSecret,
		SessionTTL:       cfg.Auth.SessionTTL,
		RequireEmailCode: cfg.Auth.RequireEmailCode,
	}, logger)
	reports := service.NewReportService(st)
	reminders := service.NewReminders(st, mail, logger)
	seeder, err := seed.New(st, entities, cfg.Seed, logger)
	if err != nil {
		return err
	}
	backups := backup.NewManager(st, cfg.Backup.Dir, cfg.Backup.RetentionDays, logger)
	scheduler := backup.NewScheduler(backups, cfg.Backup, logger)

	// Handlers
	r := router.New(logger, authSvc, router.Handlers{
		Auth:      handler.NewAuthHandler(authSvc, logger),
		Entities:  handler.NewEntityHandler(entities, logger),
		Functions: handler.NewFunctionHandler(funcs, logger),
		Admin:     handler.NewAdminHandler(seeder, backups, logger),
		Dashboard: handler.NewDashboardHandler(reports, logger),
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("healthy city server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	// Seeding runs next to the listener so a slow backend does not delay startup.
	if cfg.Seed.OnStart {
		g.Go(func() error {
			if _, err := seeder.Run(gctx); err != nil && gctx.Err() == nil {
				logger.Error("startup seeding failed", zap.Error(err))
			}
			return nil
		})
	}
	g.Go(func() error { return scheduler.Run(gctx) })
	if cfg.ReminderEvery > 0 {
		g.Go(func() error { return reminders.Run(gctx, cfg.ReminderEvery) })
	}

	return g.Wait()
}
