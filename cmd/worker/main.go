// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carterperez-dev/taskmanager/internal/config"
	"github.com/carterperez-dev/taskmanager/internal/core"
	"github.com/carterperez-dev/taskmanager/internal/jobs"
	"github.com/carterperez-dev/taskmanager/internal/metrics"
	"github.com/carterperez-dev/taskmanager/internal/notify"
	"github.com/carterperez-dev/taskmanager/internal/queue"
	"github.com/carterperez-dev/taskmanager/internal/task"
	"github.com/carterperez-dev/taskmanager/internal/user"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	metricsAddr := flag.String("metrics-addr", ":9090", "address for the metrics listener, empty to disable")
	flag.Parse()

	if err := run(*configPath, *metricsAddr); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath, metricsAddr string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := core.NewLogger(cfg.Log, cfg.App.Environment).With("process", "worker")
	slog.SetDefault(logger)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App, "worker")
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("database close error", "error", err)
		}
	}()

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() {
		if err := redis.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}()

	sender, err := notify.NewSender(cfg.Mail, logger)
	if err != nil {
		return err
	}

	broker := queue.NewRedisBroker(redis.Client, cfg.Jobs.KeyPrefix)
	enqueuer := queue.NewClient(broker)

	userSvc := user.NewService(user.NewRepository(db.DB))
	taskSvc := task.NewService(task.NewRepository(db.DB), userSvc, nil, logger)
	dispatcher := notify.NewDispatcher(enqueuer, taskSvc, userSvc, sender, logger)
	taskSvc.SetEventSink(dispatcher)

	pool := queue.NewPool(broker, queue.PoolConfigFrom(cfg.Jobs), logger)
	pool.Register(queue.KindNotification, dispatcher)
	pool.Register(queue.KindArchivalSweep,
		jobs.NewArchivalSweep(taskSvc, cfg.Jobs.ArchiveAfter, cfg.Jobs.SweepBatchSize, logger))
	pool.Register(queue.KindReminderSweep,
		jobs.NewReminderSweep(taskSvc, dispatcher, redis, cfg.Jobs.Location(), cfg.Jobs.SweepBatchSize, logger))
	pool.Register(queue.KindDataExport, jobs.NewExportJob(taskSvc, dispatcher, logger))

	scheduler := queue.NewScheduler(enqueuer, cfg.Jobs.RunSweepsOnStart, logger,
		queue.Entry{Def: queue.ArchivalSweep, Interval: cfg.Jobs.ArchivalInterval},
		queue.Entry{Def: queue.ReminderSweep, Interval: cfg.Jobs.ReminderInterval},
	)

	logger.Info("starting worker",
		"concurrency", cfg.Jobs.Concurrency,
		"mail_driver", cfg.Mail.Driver,
		"archival_interval", cfg.Jobs.ArchivalInterval,
		"reminder_interval", cfg.Jobs.ReminderInterval,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })

	if metricsAddr != "" {
		metricsSrv := &http.Server{
			Addr:              metricsAddr,
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	logger.Info("worker stopped")

	if telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if tErr := telemetry.Shutdown(shutdownCtx); tErr != nil {
			logger.Error("telemetry shutdown error", "error", tErr)
		}
	}

	return err
}
