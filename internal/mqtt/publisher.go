package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AaronLay10/DiagramEngine/internal/events"
)

// DefaultTopicPrefix roots every topic used by the engine.
const DefaultTopicPrefix = "diagram"

// Topics builds topic names under a prefix.
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	p := strings.Trim(t.Prefix, "/")
	if p == "" {
		return DefaultTopicPrefix
	}
	return p
}

// RunEvents is where the events of one run are published.
func (t Topics) RunEvents(runID string) string {
	return fmt.Sprintf("%s/runs/%s/events", t.prefix(), runID)
}

// RunResult is where the outcome of a requested run is published.
func (t Topics) RunResult(runID string) string {
	return fmt.Sprintf("%s/runs/%s/result", t.prefix(), runID)
}

// SystemEvents receives events that belong to no run.
func (t Topics) SystemEvents() string { return t.prefix() + "/system/events" }

// Requests is subscribed for incoming run requests.
func (t Topics) Requests() string { return t.prefix() + "/requests" }

// Rejected receives replies to requests that never produced a run.
func (t Topics) Rejected() string { return t.prefix() + "/requests/rejected" }

// EventPublisher forwards emitted events to the broker. It implements
// events.Sink.
type EventPublisher struct {
	conn   Conn
	topics Topics
}

var _ events.Sink = (*EventPublisher)(nil)

func NewEventPublisher(conn Conn, topics Topics) *EventPublisher {
	return &EventPublisher{conn: conn, topics: topics}
}

// Publish sends e as JSON to its run topic, or to the system topic when
// the event carries no run_id.
func (p *EventPublisher) Publish(e events.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", e.Name, err)
	}
	topic := p.topics.SystemEvents()
	if id := e.RunID(); id != "" {
		topic = p.topics.RunEvents(id)
	}
	return p.conn.Publish(topic, b)
}
