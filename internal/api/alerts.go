package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AaronLay10/DiagramEngine/internal/events"
)

// Alert severity levels
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Alert event types
const (
	AlertRunFailed          = "run_failed"
	AlertMQTTDisconnected   = "mqtt_disconnected"
	AlertStorageUnavailable = "storage_unavailable"
)

// AlertPayload is the JSON structure sent to the webhook.
type AlertPayload struct {
	Service   string                 `json:"service"`
	Event     string                 `json:"event"`
	Timestamp string                 `json:"timestamp"`
	Severity  string                 `json:"severity"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Default delays before a lost connection is alerted.
const (
	DefaultMQTTAlertDelay    = 30 * time.Second
	DefaultStorageAlertDelay = 5 * time.Second
)

// Alerter posts alerts to a webhook. Without a webhook URL alerts are
// only logged.
type Alerter struct {
	webhookURL string
	service    string
	client     *http.Client
	logger     *zap.Logger
	now        func() time.Time

	mqtt    *connWatch
	storage *connWatch

	wg sync.WaitGroup
}

func NewAlerter(webhookURL, service string, logger *zap.Logger) *Alerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Alerter{
		webhookURL: webhookURL,
		service:    service,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		now:        time.Now,
		mqtt:       &connWatch{delay: DefaultMQTTAlertDelay, up: true},
		storage:    &connWatch{delay: DefaultStorageAlertDelay, up: true},
	}
}

// Send posts an alert asynchronously (best-effort).
func (a *Alerter) Send(event, severity, message string, details map[string]interface{}) {
	if a.webhookURL == "" {
		a.logger.Warn("alert", zap.String("event", event), zap.String("severity", severity),
			zap.String("message", message), zap.Any("details", details))
		return
	}
	payload := AlertPayload{
		Service:   a.service,
		Event:     event,
		Timestamp: a.now().UTC().Format(time.RFC3339),
		Severity:  severity,
		Message:   message,
		Details:   details,
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.post(payload)
	}()
}

// Wait blocks until pending webhook posts finish.
func (a *Alerter) Wait() { a.wg.Wait() }

func (a *Alerter) post(payload AlertPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		a.logger.Error("alert: marshal payload", zap.Error(err))
		return
	}
	resp, err := a.client.Post(a.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		a.logger.Warn("alert: webhook POST failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		a.logger.Warn("alert: webhook rejected", zap.Int("status", resp.StatusCode))
	}
}

// Watch alerts on every failed run until ctx is done.
func (a *Alerter) Watch(ctx context.Context) {
	sub := events.Subscribe()
	go func() {
		defer events.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-sub:
				if !ok {
					return
				}
				if e.Name == "run.failed" {
					a.Send(AlertRunFailed, SeverityWarning, "pipeline run failed", map[string]interface{}{
						"run_id": e.RunID(),
					})
				}
			}
		}
	}()
}

// CheckMQTT records the broker state and alerts once it has been down for
// longer than the delay, and again when it recovers.
func (a *Alerter) CheckMQTT(connected bool) {
	a.check(a.mqtt, connected, AlertMQTTDisconnected, SeverityWarning, "MQTT broker disconnected", "MQTT connection restored")
}

// CheckStorage is CheckMQTT for the store.
func (a *Alerter) CheckStorage(up bool) {
	a.check(a.storage, up, AlertStorageUnavailable, SeverityCritical, "storage unavailable", "storage connection restored")
}

func (a *Alerter) check(w *connWatch, up bool, event, severity, downMsg, upMsg string) {
	now := a.now()
	switch w.observe(up, now) {
	case transitionDown:
		a.Send(event, severity, downMsg, map[string]interface{}{
			"disconnected_since":   w.downSince().UTC().Format(time.RFC3339),
			"disconnected_seconds": int(now.Sub(w.downSince()).Seconds()),
		})
	case transitionRecovered:
		a.Send(event, SeverityInfo, upMsg, map[string]interface{}{
			"recovered_at": now.UTC().Format(time.RFC3339),
		})
	}
}

type transition int

const (
	transitionNone transition = iota
	transitionDown
	transitionRecovered
)

// connWatch tracks one connection for delayed down alerts.
type connWatch struct {
	mu    sync.Mutex
	delay time.Duration
	up    bool
	since time.Time
	sent  bool
}

func (w *connWatch) downSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.since
}

func (w *connWatch) observe(up bool, now time.Time) transition {
	w.mu.Lock()
	defer w.mu.Unlock()

	if up {
		recovered := !w.up && w.sent
		w.up, w.since, w.sent = true, time.Time{}, false
		if recovered {
			return transitionRecovered
		}
		return transitionNone
	}

	if w.up {
		w.since = now
	}
	w.up = false
	if !w.sent && now.Sub(w.since) >= w.delay {
		w.sent = true
		return transitionDown
	}
	return transitionNone
}
