package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/AaronLay10/DiagramEngine/internal/events"
	"github.com/AaronLay10/DiagramEngine/internal/version"
)

// runMetrics counts runs served over HTTP.
type runMetrics struct {
	mu        sync.Mutex
	succeeded uint64
	failed    uint64
	seconds   float64
}

func (m *runMetrics) observe(err error, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.failed++
	} else {
		m.succeeded++
	}
	m.seconds += d.Seconds()
}

func (m *runMetrics) snapshot() (succeeded, failed uint64, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.succeeded, m.failed, m.seconds
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}

// handleMetrics returns Prometheus-compatible metrics in text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	succeeded, failed, seconds := s.metrics.snapshot()

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	storageUp := s.store.Ping(ctx) == nil
	cancel()
	_, mqttConnected := s.mqtt()

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	labels := fmt.Sprintf(`service="%s",instance="%s",version="%s"`, s.service, hostname, version.Version)

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	writeHeader := func(name, mtype, help string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
	}
	writeMetric := func(name, mtype, help string, value interface{}) {
		writeHeader(name, mtype, help)
		fmt.Fprintf(w, "%s{%s} %v\n", name, labels, value)
	}

	writeMetric("diagram_uptime_seconds", "gauge",
		"Number of seconds since the service started", time.Since(s.started).Seconds())
	writeMetric("diagram_events_total", "counter",
		"Total number of events emitted since startup", events.TotalCount())

	writeHeader("diagram_runs_total", "counter", "Pipeline runs requested over HTTP by outcome")
	fmt.Fprintf(w, "diagram_runs_total{%s,status=\"success\"} %d\n", labels, succeeded)
	fmt.Fprintf(w, "diagram_runs_total{%s,status=\"failed\"} %d\n", labels, failed)

	writeMetric("diagram_run_duration_seconds_sum", "counter",
		"Total wall time spent in pipeline runs", seconds)
	writeMetric("diagram_storage_up", "gauge",
		"Whether the store answers pings (1) or not (0)", boolGauge(storageUp))
	writeMetric("diagram_mqtt_connected", "gauge",
		"Whether the MQTT broker is connected (1) or not (0)", boolGauge(mqttConnected))
	writeMetric("diagram_events_dropped_total", "counter",
		"Events skipped because a live subscriber was full", events.DroppedCount())
	writeMetric("diagram_ws_clients", "gauge",
		"Number of active WebSocket client connections", events.SubscriberCount())
}
