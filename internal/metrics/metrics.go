// Package metrics exposes Prometheus counters for the session and the mixer.
//
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "livesfx"

type Metrics struct {
	frames            *prometheus.CounterVec
	decodeFailures    prometheus.Counter
	events            *prometheus.CounterVec
	triggers          *prometheus.CounterVec
	reconnects        prometheus.Counter
	heartbeatFailures *prometheus.CounterVec
	reloads           *prometheus.CounterVec
}

// New registers the counters with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Frames received from the live connection, by operation.",
		}, []string{"operation"}),

		decodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_decode_failures_total",
			Help:      "Inbound messages that could not be decoded as frames.",
		}),

		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Viewer events dispatched, by kind.",
		}, []string{"kind"}),

		triggers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sound_triggers_total",
			Help:      "Sound triggers, by event and whether a voice was started.",
		}, []string{"event", "result"}),

		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Times the live session was bootstrapped again after losing its connection.",
		}),

		heartbeatFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeat_failures_total",
			Help:      "Failed heartbeats, by kind (connection or service).",
		}, []string{"kind"}),

		reloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_reloads_total",
			Help:      "Sound catalog reloads, by outcome.",
		}, []string{"result"}),
	}
}

func (m *Metrics) FrameReceived(operation string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(operation).Inc()
}

func (m *Metrics) DecodeFailed() {
	if m == nil {
		return
	}
	m.decodeFailures.Inc()
}

func (m *Metrics) EventDispatched(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

func (m *Metrics) Triggered(event string) {
	if m == nil {
		return
	}
	m.triggers.WithLabelValues(event, "played").Inc()
}

func (m *Metrics) Dropped(event string) {
	if m == nil {
		return
	}
	m.triggers.WithLabelValues(event, "dropped").Inc()
}

func (m *Metrics) Reconnected() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) HeartbeatFailed(kind string) {
	if m == nil {
		return
	}
	m.heartbeatFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) Reloaded(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reloads.WithLabelValues(result).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Serving metrics", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server stopped: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to shut down metrics server: %w", err)
		}
		return nil
	}
}
