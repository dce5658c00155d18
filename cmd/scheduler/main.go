package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jjscheduler/sched/config"
	"github.com/jjscheduler/sched/internal/control"
	"github.com/jjscheduler/sched/internal/health"
	"github.com/jjscheduler/sched/internal/infrastructure/postgres"
	applog "github.com/jjscheduler/sched/internal/log"
	"github.com/jjscheduler/sched/internal/metrics"
	"github.com/jjscheduler/sched/internal/notify"
	"github.com/jjscheduler/sched/internal/repository"
	"github.com/jjscheduler/sched/internal/scheduler"
	"github.com/jjscheduler/sched/internal/sender"
)

func main() {
	configPath := os.Getenv("SCHEDULER_CONFIG")
	if configPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			log.Fatalf("getwd: %v", err)
		}
		configPath = filepath.Join(cwd, "config.json")
	}

	bootLogger := applog.New("local", "", 2, 5)
	cfg, err := config.Load(configPath, bootLogger)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := applog.New(cfg.Env, cfg.Scheduler.LogFile, cfg.Scheduler.RotateMaxSizeMB, cfg.Scheduler.RotateMaxBackups)
	logger.Info("config loaded", "path", configPath)
	logger.Info("session timezone", "timezone", cfg.Scheduler.SessionTimeZone)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DB.URL())
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()
	logger.Info("db connected")

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	store := repository.JobStore(postgres.NewJobStore(pool))

	httpChannel := sender.NewHTTPChannel(cfg.HTTP.UserAgent, cfg.HTTP.VerifyTLS)
	mqttChannel := sender.NewMQTTChannel(sender.MQTTConfig{
		Host:           cfg.MQTT.Host,
		Port:           cfg.MQTT.Port,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		ClientIDPrefix: cfg.MQTT.ClientIDPrefix,
		KeepaliveSec:   cfg.MQTT.KeepaliveSec,
		TLS:            cfg.MQTT.TLS,
		ConnectTimeout: 10 * time.Second,
	})
	snd := sender.New(httpChannel, mqttChannel)

	notifier := notify.New(cfg.Scheduler.NotifyOnPause && cfg.Env != "local", cfg.Notify.ResendAPIKey(), cfg.Notify.FromAddr, cfg.Notify.OpsEmail, logger)

	queue := scheduler.NewImmediateQueue(256)

	loop := scheduler.NewLoop(
		store, snd, notifier, logger, queue,
		time.Duration(cfg.Scheduler.PollIntervalSec)*time.Second,
		cfg.Scheduler.Batch,
		cfg.Scheduler.SessionTimeZone,
		cfg.Scheduler.DefaultTimezone,
	)
	go loop.Start(ctx)

	var ctrlHandler *control.Handler
	if cfg.Scheduler.ControlEnabled {
		ctrlHandler = control.NewHandler(queue, cfg.Scheduler.ControlToken)
		ctrlRouter := control.NewRouter(ctrlHandler, logger)
		ctrlSrv := &http.Server{
			Addr:    cfg.Scheduler.ControlHost + ":" + itoa(cfg.Scheduler.ControlPort),
			Handler: ctrlRouter,
		}
		go func() {
			logger.Info("control server started", "addr", ctrlSrv.Addr)
			if err := ctrlSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("control server", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = ctrlSrv.Shutdown(shutdownCtx)
		}()
	}

	watcher, err := config.NewWatcher(configPath, logger)
	if err != nil {
		logger.Warn("config watcher unavailable (ignored)", "error", err)
	} else {
		watcher.OnChange(func(reloaded *config.Config) {
			loop.SetInterval(time.Duration(reloaded.Scheduler.PollIntervalSec) * time.Second)
			loop.SetBatch(reloaded.Scheduler.Batch)
			if ctrlHandler != nil {
				ctrlHandler.SetToken(reloaded.Scheduler.ControlToken)
			}
			logger.Info("config changed; poll interval, batch, and control token applied",
				"poll_interval_sec", reloaded.Scheduler.PollIntervalSec,
				"batch", reloaded.Scheduler.Batch)
		})
		if err := watcher.Start(); err != nil {
			logger.Warn("config watcher start failed (ignored)", "error", err)
		}
		defer watcher.Stop()
	}

	metricsSrv := metrics.NewServer(":9090", checker)
	go func() {
		logger.Info("metrics server started", "addr", ":9090")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("scheduler shut down")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
