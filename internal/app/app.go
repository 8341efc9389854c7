// Package app wires configuration, storage, services and transports into a
// running process.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bandonotifier/internal/config"
	"bandonotifier/internal/repository"
	"bandonotifier/internal/scheduler"
	"bandonotifier/internal/service"
	"bandonotifier/internal/transport/calendar"
	httpt "bandonotifier/internal/transport/http"
	"bandonotifier/internal/transport/sender"
	"bandonotifier/pkg/metric"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate"
	_ "github.com/golang-migrate/migrate/database/postgres"
	_ "github.com/golang-migrate/migrate/source/file"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const _cachePingTimeout = 3 * time.Second

func Run(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) error {
	const op = "app.Run"

	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runMigrations(&cfg.Database, log); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	db, err := repository.New(ctx, cfg.Database.DSN, cfg.Database.PoolMax)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer db.Close()

	rdb := initCache(ctx, &cfg.Cache, log)
	if rdb != nil {
		defer func() {
			if closeErr := rdb.Close(); closeErr != nil {
				log.Warnw("cache close failed", "error", closeErr)
			}
		}()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := metric.New(registry)

	sched, handler := buildPipeline(cfg, db, rdb, metrics, log)

	startupPatch, err := schedulerPatch(&cfg.Scheduler)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cfg.Scheduler.AutoStart {
		if err := sched.Start(ctx, startupPatch); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	} else if err := sched.UpdateConfig(ctx, startupPatch); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer sched.Stop()

	return serve(ctx, cfg, handler, registry, log)
}

// buildPipeline assembles repositories, services, the scheduler and the HTTP
// handler on top of the shared pool.
func buildPipeline(
	cfg *config.Config,
	db *repository.Postgres,
	rdb *redis.Client,
	metrics *metric.Metrics,
	log *zap.SugaredLogger,
) (*scheduler.Scheduler, *httpt.Handler) {
	deadlineRepo := repository.NewDeadlineRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	recipientRepo := repository.NewRecipientRepository(db)
	logRepo := repository.NewNotificationLogRepository(db)
	queueRepo := repository.NewEmailQueueRepository(db)
	refRepo := repository.NewCalendarRefRepository(db)

	smtpSender := sender.NewSMTPSender(
		cfg.SMTP.Host, cfg.SMTP.Port,
		cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Sender,
		log.With("component", "smtp"),
	)
	calClient := calendar.NewStubClient(log.With("component", "calendar"))

	emailSvc := service.NewEmailService(
		queueRepo, recipientRepo, smtpSender, db,
		log.With("component", "email"),
		service.WithEmailMetrics(metrics),
	)
	calendarSvc := service.NewCalendarService(
		refRepo, calClient,
		log.With("component", "calendar-sync"),
		metrics,
	)

	notifierOpts := []service.NotifierOption{service.WithNotifierMetrics(metrics)}
	var invalidator service.ProfileCacheInvalidator
	if rdb != nil {
		settingsCache := repository.NewSettingsCache(rdb, cfg.Cache.TTL)
		notifierOpts = append(notifierOpts, service.WithSettingsCache(settingsCache))
		invalidator = settingsCache
	}

	notifier := service.NewNotifierService(
		deadlineRepo, settingsRepo, logRepo, emailSvc, calendarSvc,
		log.With("component", "notifier"),
		notifierOpts...,
	)
	settingsSvc := service.NewSettingsService(
		settingsRepo, recipientRepo, invalidator,
		log.With("component", "settings"),
	)

	sched := scheduler.New(
		notifier, emailSvc,
		log.With("component", "scheduler"),
		scheduler.WithLease(scheduler.NewAdvisoryLockLease(db.Pool)),
	)

	handler := httpt.NewHandler(sched, notifier, settingsSvc, log.With("component", "http"))
	return sched, handler
}

func runMigrations(cfg *config.Database, log *zap.SugaredLogger) error {
	const op = "app.runMigrations"

	if cfg.MigrationsURL == "" {
		log.Infow("migrations disabled")
		return nil
	}

	m, err := migrate.New(cfg.MigrationsURL, cfg.DSN)
	if err != nil {
		return fmt.Errorf("%s: open: %w", op, err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			log.Warnw("migrate close failed", "source_error", srcErr, "db_error", dbErr)
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Infow("migrations up to date")
			return nil
		}
		return fmt.Errorf("%s: up: %w", op, err)
	}

	log.Infow("migrations applied")
	return nil
}

// initCache connects to redis. The cache is an optimization: when redis is
// unreachable the pipeline runs against postgres alone.
func initCache(ctx context.Context, cfg *config.Cache, log *zap.SugaredLogger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, _cachePingTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warnw("redis unreachable, settings cache disabled", "addr", cfg.Addr, "error", err)
		_ = rdb.Close()
		return nil
	}
	return rdb
}

func schedulerPatch(cfg *config.Scheduler) (scheduler.Patch, error) {
	const op = "app.schedulerPatch"

	day, err := parseWeekday(cfg.DigestDay)
	if err != nil {
		return scheduler.Patch{}, fmt.Errorf("%s: %w", op, err)
	}

	return scheduler.Patch{
		AlertInterval:   &cfg.AlertInterval,
		AlertTimes:      cfg.AlertTimeList(),
		AlertTolerance:  &cfg.AlertTolerance,
		DigestDay:       &day,
		DigestTime:      &cfg.DigestTime,
		DigestTolerance: &cfg.DigestTolerance,
		DrainInterval:   &cfg.DrainInterval,
		DrainBatchSize:  &cfg.DrainBatchSize,
	}, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	for day := time.Sunday; day <= time.Saturday; day++ {
		if strings.EqualFold(day.String(), strings.TrimSpace(s)) {
			return day, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// serve runs the API and metrics listeners until the context is cancelled,
// then shuts both down within the configured grace period.
func serve(
	ctx context.Context,
	cfg *config.Config,
	handler *httpt.Handler,
	registry *prometheus.Registry,
	log *zap.SugaredLogger,
) error {
	const op = "app.serve"

	apiServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           handler.Engine(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Metrics.Host, cfg.Metrics.Port),
		Handler:           metricsMux,
		ReadTimeout:       cfg.Metrics.ReadTimeout,
		WriteTimeout:      cfg.Metrics.WriteTimeout,
		ReadHeaderTimeout: cfg.Metrics.ReadHeaderTimeout,
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		log.Infow("api server listening", "addr", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: api server: %w", op, err)
		}
		return nil
	})

	eg.Go(func() error {
		log.Infow("metrics server listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: metrics server: %w", op, err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		err := errors.Join(
			apiServer.Shutdown(shutdownCtx),
			metricsServer.Shutdown(shutdownCtx),
		)
		if err != nil {
			return fmt.Errorf("%s: shutdown: %w", op, err)
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		return err
	}
	return nil
}
