//go:build linux

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"envlogger/bus"
	"envlogger/services/api"
	"envlogger/services/board"
	"envlogger/services/clock"
	"envlogger/services/config"
	"envlogger/services/feed"
	"envlogger/services/heartbeat"
	"envlogger/services/logstore"
	"envlogger/services/power"
	"envlogger/services/retention"
	"envlogger/services/sampler"
	"envlogger/services/sensor"
	"envlogger/services/telemetry"
	"envlogger/types"
	"envlogger/x/strx"
)

func main() {
	configPath := flag.String("c", "", "Path to configuration file (environment only when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	base, err := config.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer base.Sync()

	bootID := uuid.NewString()
	logger := base.With(zap.String("boot_id", bootID))
	wake := strx.Coalesce(os.Getenv(board.WakeCauseEnv), "cold")
	logger.Info("booting", zap.String("wake_cause", wake))
	cfg.PrintConfig(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	b := bus.NewBus(16)

	// Retention memory.
	var retained retention.Store
	db, err := retention.OpenSQLite(cfg.Retention.Path)
	if err != nil {
		logger.Error("retention memory unavailable, sequence restarts this boot", zap.Error(err))
		retained = &retention.Memory{}
	} else {
		retained = db
	}
	counter, err := retention.NewCounter(retained)
	if err != nil {
		logger.Error("failed to load sequence id", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("sequence id restored", zap.Uint32("sequence_id", counter.Current()), zap.Uint32("next_id", counter.Next()))

	// Log Store; degraded mode when it cannot be initialized.
	store := logstore.New(logstore.Config{
		Dir:          cfg.Store.Dir,
		File:         cfg.Store.File,
		ReseedHeader: cfg.Store.ReseedHeader,
	}, logger.Named("logstore"))
	var (
		sampleStore sampler.Store
		queryStore  api.LogStore
	)
	if err := store.EnsureInitialized(); err != nil {
		logger.Error("log store unavailable, readings will not be persisted", zap.Error(err))
	} else {
		sampleStore, queryStore = store, store
	}

	// Hardware.
	var (
		probe  sensor.Probe
		button power.Button
	)
	switch cfg.Hardware.Mode {
	case config.ModeSim:
		probe = sensor.NewSim(cfg.Hardware.SimTemperature)
		button = board.FileButton{Path: cfg.Hardware.SimButtonFile}
	default:
		w1, err := sensor.NewW1Probe(cfg.Hardware.W1Root, cfg.Hardware.W1Device)
		if err != nil {
			logger.Error("temperature probe unavailable", zap.Error(err))
			probe = sensor.Unavailable{Err: err}
		} else {
			logger.Info("temperature probe bound", zap.String("id", w1.ID()))
			probe = w1
		}
		gb, err := board.NewGPIOButton(cfg.Hardware.GPIORoot, cfg.Power.ButtonPin)
		if err != nil {
			logger.Error("wake button unavailable, timer wake only", zap.Error(err))
		} else {
			button = gb
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	smp := sampler.New(sampler.Options{
		Interval: cfg.SampleInterval(),
		Sensor:   sensor.NewReader(probe, logger.Named("sensor")),
		Clock: clock.New(clock.Config{
			Server:   cfg.Clock.Server,
			Offset:   time.Duration(cfg.Clock.OffsetSeconds) * time.Second,
			Attempts: cfg.Clock.Attempts,
			Backoff:  time.Duration(cfg.Clock.BackoffMillis) * time.Millisecond,
			Timeout:  time.Duration(cfg.Clock.TimeoutMillis) * time.Millisecond,
		}, nil, logger.Named("clock")),
		Store:    sampleStore,
		Counter:  counter,
		Conn:     b.NewConnection("sampler"),
		Recorder: metrics,
		Logger:   logger.Named("sampler"),
	})

	// Live feed.
	hub := feed.NewHub(logger.Named("feed"))
	hub.Start(ctx, b.NewConnection("feed"))
	var mqttDisconnect func()
	if cfg.MQTT.Broker != "" {
		client, err := feed.DialMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientID)
		if err != nil {
			logger.Warn("mqtt broker unreachable, mqtt feed disabled", zap.Error(err))
		} else {
			feed.NewMQTTSink(client, cfg.MQTT.Topic, logger.Named("mqtt")).Start(ctx, b.NewConnection("mqtt"))
			mqttDisconnect = func() { client.Disconnect(250) }
		}
	}

	// Query surface.
	srv := api.New(api.Options{
		Store:     queryStore,
		Feed:      hub,
		Metrics:   metrics,
		StaticDir: cfg.HTTP.StaticDir,
		BootID:    bootID,
		Logger:    logger.Named("http"),
	})
	srv.Start(ctx, b.NewConnection("api"))
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
		}
	}()

	heartbeat.PublishInterval(b.NewConnection("config"), cfg.HeartbeatInterval())
	hb := &heartbeat.Service{Log: logger.Named("heartbeat")}
	if err := hb.Start(ctx, b.NewConnection("heartbeat")); err != nil {
		logger.Error("heartbeat failed to start", zap.Error(err))
	}

	// Everything the real device loses when it powers down.
	var off sync.Once
	shutdown := func() {
		off.Do(func() {
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			if err := httpServer.Shutdown(sctx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
			if mqttDisconnect != nil {
				mqttDisconnect()
			}
			if db != nil {
				_ = db.Close()
			}
		})
	}

	sleeper := &offSleeper{
		off:  shutdown,
		next: &board.ProcessSleeper{Button: button, Log: logger.Named("sleep")},
	}
	ctl := power.New(power.Options{
		ActiveFor: cfg.ActiveFor(),
		SleepFor:  cfg.SleepFor(),
		ButtonPin: cfg.Power.ButtonPin,
		Tick:      cfg.Tick(),
		Sampler:   smp,
		Button:    button,
		Sleeper:   sleeper,
		Counter:   counter,
		Conn:      b.NewConnection("power"),
		Observer:  metrics,
		Logger:    logger.Named("power"),
	})
	if err := ctl.Boot(time.Now()); err != nil {
		logger.Error("failed to arm wake sources", zap.Error(err))
		os.Exit(1)
	}

	err = ctl.Run(ctx)
	switch classify(ctx.Err(), ctl.State(), err) {
	case wakeFailed:
		logger.Error("device did not wake cleanly", zap.Error(err))
		os.Exit(1)
	case stopped:
		logger.Error("controller stopped", zap.Error(err))
	}
	logger.Info("shutting down", zap.String("state", string(ctl.State())))
	if ctl.State() == types.PowerActive {
		// Sleep entry already flushed otherwise.
		if err := counter.Flush(); err != nil {
			logger.Warn("retention flush failed", zap.Error(err))
		}
	}
	shutdown()
}

type outcome int

const (
	cleanExit  outcome = iota
	wakeFailed         // Sleep returned without a signal: the re-exec failed.
	stopped
)

// classify decides how the process ends once the power loop returns. A
// signal always wins, including one delivered while sleeping.
func classify(ctxErr error, state types.PowerState, runErr error) outcome {
	switch {
	case ctxErr != nil:
		return cleanExit
	case state == types.PowerSleeping:
		return wakeFailed
	case runErr != nil && !errors.Is(runErr, context.Canceled):
		return stopped
	}
	return cleanExit
}

// offSleeper powers the network side down before handing over to the
// platform sleeper.
type offSleeper struct {
	off  func()
	next power.Sleeper
}

func (s *offSleeper) Arm(w types.WakeSources) error { return s.next.Arm(w) }

func (s *offSleeper) Sleep(ctx context.Context) error {
	s.off()
	return s.next.Sleep(ctx)
}
