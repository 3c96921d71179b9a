package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glizzus/livesfx/internal/app"
	"github.com/glizzus/livesfx/internal/config"
	"github.com/glizzus/livesfx/internal/event"
	"github.com/glizzus/livesfx/internal/library"
	"github.com/glizzus/livesfx/internal/live"
	"github.com/glizzus/livesfx/internal/metrics"
	"github.com/glizzus/livesfx/internal/mixer"
	"github.com/glizzus/livesfx/internal/schedule"
	"github.com/glizzus/livesfx/internal/settings"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// reloader rebuilds the catalog and the dispatch policy from the store.
type reloader struct {
	store      settings.Store
	loader     *library.Loader
	engine     *mixer.Engine
	dispatcher *event.Dispatcher
	metrics    *metrics.Metrics
}

func (r *reloader) reload(ctx context.Context) {
	policy, err := r.store.Load(ctx)
	r.metrics.Reloaded(err)
	if err != nil {
		slog.Error("Failed to reload settings", "error", err)
		return
	}
	r.engine.SetCatalog(r.loader.Load(ctx, policy))
	r.dispatcher.SetPolicy(policy)
	slog.Info("Reloaded settings and sounds")
}

func run() error {
	if err := config.LoadEnv(); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("No .env file found, continuing without it")
		} else {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	metricsConfig, err := config.NewMetricsConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load metrics config: %w", err)
	}
	level, _ := metricsConfig.Level()
	slog.SetLogLoggerLevel(level)

	liveConfig, err := config.NewLiveConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load live config: %w", err)
	}
	audioConfig, err := config.NewAudioConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load audio config: %w", err)
	}
	settingsConfig, err := config.NewSettingsConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load settings config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := app.OpenSettingsStore(ctx, settingsConfig)
	if err != nil {
		return fmt.Errorf("failed to open settings store: %w", err)
	}
	defer closeStore()

	policy, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	idCode := liveConfig.IDCode
	if idCode == "" {
		idCode = policy.IDCode
	}
	if idCode == "" {
		return errors.New("no id code configured, set LIVE_ID_CODE or idCode in the settings")
	}

	source, err := app.OpenSoundSource(ctx, audioConfig)
	if err != nil {
		return fmt.Errorf("failed to open sound source: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(registry)

	engine := mixer.NewEngine(audioConfig.MaxVoices, mixer.WithRecorder(recorder))
	loader := library.NewLoader(source, audioConfig.SampleRate)
	engine.SetCatalog(loader.Load(ctx, policy))

	if audioConfig.Disabled {
		slog.Info("Audio output disabled")
	} else if err := mixer.StartSpeaker(engine, audioConfig.SampleRate); err != nil {
		slog.Error("Audio output unavailable, continuing without sound", "error", err)
	} else {
		defer mixer.StopSpeaker()
	}

	dispatcher := event.NewDispatcher(engine, policy, event.WithRecorder(recorder))
	r := &reloader{
		store:      store,
		loader:     loader,
		engine:     engine,
		dispatcher: dispatcher,
		metrics:    recorder,
	}

	client := live.NewClient(
		liveConfig.Host,
		liveConfig.AppID,
		live.NewSigner(liveConfig.AccessKey, liveConfig.AccessSecret),
		&http.Client{Timeout: 30 * time.Second},
	)
	session := live.NewSession(client, &live.WebsocketDialer{}, dispatcher, live.SessionConfig{
		IDCode:            idCode,
		HeartbeatInterval: liveConfig.HeartbeatInterval,
		RetryPause:        liveConfig.RetryPause,
		Reconnect: live.ReconnectPolicy{
			MaxAttempts: liveConfig.ReconnectMaxAttempts,
			Backoff:     liveConfig.ReconnectBackoff,
			MaxBackoff:  liveConfig.ReconnectMaxBackoff,
		},
	}, recorder)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return session.Run(gctx)
	})

	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				slog.Info("Received SIGHUP, reloading")
				r.reload(gctx)
			}
		}
	})

	if audioConfig.ReloadCron != "" {
		reloads, err := schedule.ParseCron(audioConfig.ReloadCron)
		if err != nil {
			return err
		}
		if next, err := reloads.Upcoming(time.Now(), 1); err == nil {
			slog.Info("Scheduled catalog reloads", "cron", reloads, "next", next[0])
		}
		g.Go(func() error {
			err := reloads.Run(gctx, r.reload)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if metricsConfig.Addr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, metricsConfig.Addr, registry)
		})
	}

	return g.Wait()
}

func main() {
	if err := run(); err != nil {
		slog.Error("livesfx stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
