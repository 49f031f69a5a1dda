package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/AaronLay10/DiagramEngine/internal/events"
)

const (
	// backlogSize is how many buffered events a new unfiltered client gets.
	backlogSize = 50

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The console is served from the same process; other origins are allowed
	// for local tooling.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// eventStream is one WebSocket client following the event stream.
type eventStream struct {
	conn   *websocket.Conn
	sub    events.Subscriber
	logger *zap.Logger
}

func (st *eventStream) write(kind int, data []byte) error {
	st.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return st.conn.WriteMessage(kind, data)
}

func (st *eventStream) send(e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		// Unencodable fields are skipped, not fatal to the stream.
		st.logger.Debug("ws encode event", zap.String("event", e.Name), zap.Error(err))
		return nil
	}
	return st.write(websocket.TextMessage, data)
}

// readLoop consumes client frames so pongs and close frames are
// processed. The returned channel closes when the client goes away.
func (st *eventStream) readLoop() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		st.conn.SetReadDeadline(time.Now().Add(pongWait))
		st.conn.SetPongHandler(func(string) error {
			return st.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := st.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return done
}

// run replays backlog and then forwards live events until the client
// leaves or the subscription is closed on shutdown.
func (st *eventStream) run(backlog []events.Event) {
	defer st.conn.Close()
	defer events.Unsubscribe(st.sub)

	for _, e := range backlog {
		if err := st.send(e); err != nil {
			return
		}
	}

	done := st.readLoop()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case e, ok := <-st.sub:
			if !ok {
				return
			}
			if err := st.send(e); err != nil {
				st.logger.Debug("ws write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := st.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleWSEvents streams events to a WebSocket client. With ?run_id= the
// client gets that run's buffered events and then only its live ones.
func (s *Server) handleWSEvents(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	st := &eventStream{conn: conn, sub: events.SubscribeRun(runID), logger: s.logger}
	backlog := events.RecentEvents(backlogSize)
	if runID != "" {
		backlog = events.ForRun(runID)
	}
	st.run(backlog)
}
