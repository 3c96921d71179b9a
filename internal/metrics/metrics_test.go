package metrics_test

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glizzus/livesfx/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if matchLabels(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(m *dto.Metric, labels map[string]string) bool {
	if len(m.GetLabel()) != len(labels) {
		return false
	}
	for _, pair := range m.GetLabel() {
		if labels[pair.GetName()] != pair.GetValue() {
			return false
		}
	}
	return true
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.FrameReceived("message")
	m.FrameReceived("message")
	m.DecodeFailed()
	m.EventDispatched("like")
	m.Triggered("like")
	m.Dropped("like")
	m.Dropped("like")
	m.Reconnected()
	m.HeartbeatFailed("service")
	m.Reloaded(nil)
	m.Reloaded(errors.New("boom"))

	tests := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"livesfx_frames_received_total", map[string]string{"operation": "message"}, 2},
		{"livesfx_frame_decode_failures_total", nil, 1},
		{"livesfx_events_total", map[string]string{"kind": "like"}, 1},
		{"livesfx_sound_triggers_total", map[string]string{"event": "like", "result": "played"}, 1},
		{"livesfx_sound_triggers_total", map[string]string{"event": "like", "result": "dropped"}, 2},
		{"livesfx_reconnects_total", nil, 1},
		{"livesfx_heartbeat_failures_total", map[string]string{"kind": "service"}, 1},
		{"livesfx_catalog_reloads_total", map[string]string{"result": "ok"}, 1},
		{"livesfx_catalog_reloads_total", map[string]string{"result": "error"}, 1},
	}

	for _, tc := range tests {
		if got := counterValue(t, reg, tc.name, tc.labels); got != tc.want {
			t.Errorf("%s%v = %v, want %v", tc.name, tc.labels, got, tc.want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	m.FrameReceived("auth")
	m.DecodeFailed()
	m.EventDispatched("gift")
	m.Triggered("gift1")
	m.Dropped("gift1")
	m.Reconnected()
	m.HeartbeatFailed("connection")
	m.Reloaded(nil)
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg).Reconnected()

	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "livesfx_reconnects_total 1") {
		t.Errorf("expected reconnect counter in output, got:\n%s", body)
	}
}
