// Package events is the process-wide event stream. Every emitted event is
// kept in a ring buffer, fanned out to live subscribers and forwarded to
// an optional Sink such as the MQTT publisher.
package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

var buffer = NewRingBuffer(256)

// Sink receives every emitted event after it is buffered.
type Sink interface {
	Publish(e Event) error
}

var (
	sink            Sink
	sinkMu          sync.RWMutex
	sinkErrorLogged bool
)

// SetSink installs the event sink. Pass nil to remove it.
func SetSink(s Sink) {
	sinkMu.Lock()
	sink = s
	sinkErrorLogged = false
	sinkMu.Unlock()
}

type Event struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Name      string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// RunID returns the run_id field, if any.
func (e Event) RunID() string {
	id, _ := e.Fields["run_id"].(string)
	return id
}

func Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}

	e := Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		Fields:    fields,
	}

	buffer.Add(e)
	broadcast(e)

	sinkMu.RLock()
	s := sink
	errorLogged := sinkErrorLogged
	sinkMu.RUnlock()

	if s != nil {
		if err := s.Publish(e); err != nil && !errorLogged {
			sinkMu.Lock()
			if !sinkErrorLogged {
				sinkErrorLogged = true
				sinkMu.Unlock()
				// Goes straight to the buffer; a failing sink must not recurse.
				errEvent := Event{
					Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
					Level:     "error",
					Name:      "system.error",
					Message:   "event sink publish failed",
					Fields: map[string]interface{}{
						"error": err.Error(),
					},
				}
				buffer.Add(errEvent)
				broadcast(errEvent)
			} else {
				sinkMu.Unlock()
			}
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return b, nil
}

func Snapshot() []Event {
	return buffer.Snapshot()
}

// TotalCount is the number of events emitted since start (or the last Clear).
func TotalCount() uint64 {
	return buffer.Total()
}

// ForRun returns the buffered events carrying the given run_id.
func ForRun(runID string) []Event {
	return buffer.Filter(func(e Event) bool { return e.RunID() == runID })
}

// Clear resets the event buffer. Used for testing.
func Clear() {
	buffer.Clear()
}
