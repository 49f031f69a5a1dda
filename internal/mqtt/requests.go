package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/AaronLay10/DiagramEngine/internal/events"
	"github.com/AaronLay10/DiagramEngine/internal/model"
	"github.com/AaronLay10/DiagramEngine/internal/orchestrator"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, payload model.InputPayload) (*orchestrator.Result, error)
}

// RunRequest is the message accepted on the request topic.
type RunRequest struct {
	RequestID string `json:"request_id,omitempty"`
	model.InputPayload
}

// RunReply is published once a request has been handled.
type RunReply struct {
	RequestID string               `json:"request_id,omitempty"`
	OK        bool                 `json:"ok"`
	Data      *orchestrator.Result `json:"data,omitempty"`
	Error     *ReplyError          `json:"error,omitempty"`
}

type ReplyError struct {
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
}

// RunRequestSubscriber runs the pipeline for every message on the request
// topic. Replies go to the run's result topic, or to the rejected topic
// when no run was created.
type RunRequestSubscriber struct {
	conn   Conn
	topics Topics
	runner Runner
	logger *zap.Logger

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

func NewRunRequestSubscriber(conn Conn, topics Topics, runner Runner, logger *zap.Logger) *RunRequestSubscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunRequestSubscriber{conn: conn, topics: topics, runner: runner, logger: logger}
}

// Topic returns the subscribed request topic.
func (s *RunRequestSubscriber) Topic() string { return s.topics.Requests() }

// Subscribe registers the request handler on the connection.
func (s *RunRequestSubscriber) Subscribe() error {
	return s.conn.Subscribe(s.topics.Requests(), s.handler)
}

// Close stops accepting requests and waits until every accepted request
// has been replied to. Messages delivered after Close are dropped.
func (s *RunRequestSubscriber) Close() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	if err := s.conn.Unsubscribe(s.topics.Requests()); err != nil {
		s.logger.Debug("unsubscribe request topic", zap.Error(err))
	}
	s.wg.Wait()
}

// handler must not block the client's message router, so runs are
// executed on their own goroutine.
func (s *RunRequestSubscriber) handler(_ paho.Client, msg paho.Message) {
	payload := append([]byte(nil), msg.Payload()...)

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		s.logger.Warn("run request dropped during shutdown", zap.String("topic", msg.Topic()))
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.handle(payload)
	}()
}

func (s *RunRequestSubscriber) handle(raw []byte) {
	var req RunRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.reply(s.topics.Rejected(), RunReply{Error: &ReplyError{Message: "invalid request: " + err.Error()}})
		return
	}
	payload, err := model.NewInputPayload(req.Text, req.Images, req.Options)
	if err != nil {
		s.reply(s.topics.Rejected(), RunReply{RequestID: req.RequestID, Error: &ReplyError{Message: err.Error()}})
		return
	}

	_, _ = events.Emit("info", "run.request", "", map[string]interface{}{
		"request_id": req.RequestID,
		"source":     "mqtt",
	})

	res, err := s.runner.Run(context.Background(), payload)
	if err != nil {
		var runErr *orchestrator.RunError
		if errors.As(err, &runErr) {
			s.reply(s.topics.RunResult(runErr.RunID), RunReply{
				RequestID: req.RequestID,
				Error:     &ReplyError{Message: err.Error(), RunID: runErr.RunID},
			})
			return
		}
		s.reply(s.topics.Rejected(), RunReply{RequestID: req.RequestID, Error: &ReplyError{Message: err.Error()}})
		return
	}
	s.reply(s.topics.RunResult(res.RunID), RunReply{RequestID: req.RequestID, OK: true, Data: res})
}

func (s *RunRequestSubscriber) reply(topic string, r RunReply) {
	b, err := json.Marshal(r)
	if err != nil {
		s.logger.Error("marshal run reply", zap.Error(err))
		return
	}
	if err := s.conn.Publish(topic, b); err != nil {
		s.logger.Warn("publish run reply failed", zap.String("topic", topic), zap.Error(err))
	}
}
