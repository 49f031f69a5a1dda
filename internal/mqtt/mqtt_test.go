package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/DiagramEngine/internal/events"
	"github.com/AaronLay10/DiagramEngine/internal/ledger"
	"github.com/AaronLay10/DiagramEngine/internal/model"
	"github.com/AaronLay10/DiagramEngine/internal/orchestrator"
	"github.com/AaronLay10/DiagramEngine/internal/storage/memory"
)

// mockConn records publishes and lets tests deliver messages to
// subscribed handlers.
type mockConn struct {
	mu            sync.Mutex
	published     map[string][][]byte
	subscriptions map[string]paho.MessageHandler
	publishErr    error
}

func (m *mockConn) Unsubscribe(topics ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, topic := range topics {
		delete(m.subscriptions, topic)
	}
	return nil
}

func newMockConn() *mockConn {
	return &mockConn{
		published:     make(map[string][][]byte),
		subscriptions: make(map[string]paho.MessageHandler),
	}
}

func (m *mockConn) Publish(topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published[topic] = append(m.published[topic], payload)
	return nil
}

func (m *mockConn) Subscribe(topic string, handler paho.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[topic] = handler
	return nil
}

func (m *mockConn) simulateMessage(topic string, payload []byte) bool {
	m.mu.Lock()
	handler, ok := m.subscriptions[topic]
	m.mu.Unlock()
	if ok {
		handler(nil, &mockMessage{topic: topic, payload: payload})
	}
	return ok
}

func (m *mockConn) messages(topic string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published[topic]
}

type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 1 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}

func newOrchestrator(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	store := memory.New()
	o, err := orchestrator.New(orchestrator.Deps{Ledger: ledger.New(store, nil), Drafts: store})
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}
	return o
}

func TestTopics(t *testing.T) {
	tp := Topics{Prefix: "/lab/"}
	if got := tp.RunEvents("r1"); got != "lab/runs/r1/events" {
		t.Errorf("RunEvents: got %s", got)
	}
	if got := tp.RunResult("r1"); got != "lab/runs/r1/result" {
		t.Errorf("RunResult: got %s", got)
	}
	if got := (Topics{}).Requests(); got != "diagram/requests" {
		t.Errorf("default prefix: got %s", got)
	}
}

func TestEventPublisher_RoutesByRunID(t *testing.T) {
	conn := newMockConn()
	pub := NewEventPublisher(conn, Topics{})

	if err := pub.Publish(events.Event{Name: "run.created", Fields: map[string]interface{}{"run_id": "abc"}}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := pub.Publish(events.Event{Name: "system.startup"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	runMsgs := conn.messages("diagram/runs/abc/events")
	if len(runMsgs) != 1 {
		t.Fatalf("expected 1 run event, got %d", len(runMsgs))
	}
	var e events.Event
	if err := json.Unmarshal(runMsgs[0], &e); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if e.Name != "run.created" {
		t.Errorf("unexpected event %s", e.Name)
	}
	if len(conn.messages("diagram/system/events")) != 1 {
		t.Error("expected event without run_id on the system topic")
	}
}

func TestEventPublisher_AsSink(t *testing.T) {
	events.Clear()
	conn := newMockConn()
	events.SetSink(NewEventPublisher(conn, Topics{Prefix: "t"}))
	defer events.SetSink(nil)

	ctx := context.Background()
	store := memory.New()
	l := ledger.New(store, nil)
	run, err := l.CreateRun(ctx)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if len(conn.messages("t/runs/"+run.ID+"/events")) != 1 {
		t.Error("expected run.created to reach the broker")
	}
}

func TestEventPublisher_ErrorIsReturned(t *testing.T) {
	conn := newMockConn()
	conn.publishErr = ErrNotConnected
	pub := NewEventPublisher(conn, Topics{})
	if err := pub.Publish(events.Event{Name: "run.created"}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestRunRequestSubscriber_RunsAndReplies(t *testing.T) {
	conn := newMockConn()
	sub := NewRunRequestSubscriber(conn, Topics{}, newOrchestrator(t), nil)
	if err := sub.Subscribe(); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	msg := []byte(`{"request_id":"req-1","text":"draw a network topology","params":{"output_mode":"auto"}}`)
	if !conn.simulateMessage("diagram/requests", msg) {
		t.Fatal("request topic not subscribed")
	}
	sub.Close()

	var reply RunReply
	var found bool
	conn.mu.Lock()
	for topic, msgs := range conn.published {
		if strings.HasPrefix(topic, "diagram/runs/") && strings.HasSuffix(topic, "/result") {
			if err := json.Unmarshal(msgs[0], &reply); err != nil {
				t.Fatalf("reply is not JSON: %v", err)
			}
			found = true
		}
	}
	conn.mu.Unlock()

	if !found {
		t.Fatal("expected a reply on a run result topic")
	}
	if !reply.OK || reply.RequestID != "req-1" {
		t.Errorf("unexpected reply: %+v", reply)
	}
	if reply.Data == nil || reply.Data.Draft.DslType != model.DslGraphviz {
		t.Errorf("expected graphviz draft, got %+v", reply.Data)
	}
}

func TestRunRequestSubscriber_RejectsInvalidRequests(t *testing.T) {
	tests := map[string]string{
		"malformed JSON": `{"text":`,
		"bad mode":       `{"request_id":"r2","text":"x","params":{"output_mode":"plantuml"}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			conn := newMockConn()
			sub := NewRunRequestSubscriber(conn, Topics{}, newOrchestrator(t), nil)
			sub.handle([]byte(body))

			msgs := conn.messages("diagram/requests/rejected")
			if len(msgs) != 1 {
				t.Fatalf("expected 1 rejection, got %d", len(msgs))
			}
			var reply RunReply
			_ = json.Unmarshal(msgs[0], &reply)
			if reply.OK || reply.Error == nil || reply.Error.RunID != "" {
				t.Errorf("unexpected rejection: %+v", reply)
			}
		})
	}
}

type failingRunner struct{}

func (failingRunner) Run(ctx context.Context, p model.InputPayload) (*orchestrator.Result, error) {
	return nil, &orchestrator.RunError{RunID: "run-9", Err: errors.New("LLM credentials missing")}
}

func TestRunRequestSubscriber_FailedRunRepliesOnRunTopic(t *testing.T) {
	conn := newMockConn()
	sub := NewRunRequestSubscriber(conn, Topics{}, failingRunner{}, nil)
	sub.handle([]byte(`{"text":"x"}`))

	msgs := conn.messages("diagram/runs/run-9/result")
	if len(msgs) != 1 {
		t.Fatalf("expected reply on run topic, got %d", len(msgs))
	}
	var reply RunReply
	_ = json.Unmarshal(msgs[0], &reply)
	if reply.OK || reply.Error.RunID != "run-9" || reply.Error.Message != "LLM credentials missing" {
		t.Errorf("unexpected reply: %+v", reply)
	}
}

func TestRunRequestSubscriber_CloseStopsIntake(t *testing.T) {
	conn := newMockConn()
	sub := NewRunRequestSubscriber(conn, Topics{}, newOrchestrator(t), nil)
	if err := sub.Subscribe(); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	conn.mu.Lock()
	handler := conn.subscriptions["diagram/requests"]
	conn.mu.Unlock()

	sub.Close()
	if conn.simulateMessage("diagram/requests", []byte(`{"text":"network"}`)) {
		t.Error("request topic still subscribed after Close")
	}

	// A message already queued by the client before the unsubscribe landed.
	handler(nil, &mockMessage{topic: "diagram/requests", payload: []byte(`{"text":"network"}`)})
	sub.Close()

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.published) != 0 {
		t.Errorf("expected no replies after Close, got %v", conn.published)
	}
}
