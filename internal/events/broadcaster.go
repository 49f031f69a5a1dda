package events

import (
	"sync"
	"sync/atomic"
)

// Subscriber receives emitted events. Its buffer absorbs bursts; a full
// buffer drops events for that subscriber only.
type Subscriber chan Event

const subscriberBuffer = 64

// hub fans events out to live subscribers. A subscriber registered with a
// run id only receives that run's events.
type hub struct {
	mu      sync.RWMutex
	subs    map[Subscriber]string
	dropped atomic.Uint64
}

var subscribers = &hub{subs: make(map[Subscriber]string)}

// Subscribe returns a channel receiving every event.
func Subscribe() Subscriber {
	return SubscribeRun("")
}

// SubscribeRun returns a channel receiving only events whose run_id is
// runID. An empty runID receives everything.
func SubscribeRun(runID string) Subscriber {
	ch := make(Subscriber, subscriberBuffer)
	subscribers.mu.Lock()
	subscribers.subs[ch] = runID
	subscribers.mu.Unlock()
	return ch
}

// Unsubscribe removes sub and closes it. Unsubscribing twice is a no-op.
func Unsubscribe(sub Subscriber) {
	subscribers.mu.Lock()
	defer subscribers.mu.Unlock()
	if _, ok := subscribers.subs[sub]; !ok {
		return
	}
	delete(subscribers.subs, sub)
	close(sub)
}

func broadcast(e Event) {
	runID := e.RunID()
	subscribers.mu.RLock()
	defer subscribers.mu.RUnlock()

	for sub, filter := range subscribers.subs {
		if filter != "" && filter != runID {
			continue
		}
		select {
		case sub <- e:
		default:
			subscribers.dropped.Add(1)
		}
	}
}

// CloseAllSubscribers closes and removes every subscriber. Called on shutdown.
func CloseAllSubscribers() {
	subscribers.mu.Lock()
	defer subscribers.mu.Unlock()
	for sub := range subscribers.subs {
		delete(subscribers.subs, sub)
		close(sub)
	}
}

// SubscriberCount returns the number of live subscribers.
func SubscriberCount() int {
	subscribers.mu.RLock()
	defer subscribers.mu.RUnlock()
	return len(subscribers.subs)
}

// DroppedCount is the number of deliveries skipped because a subscriber
// was full.
func DroppedCount() uint64 {
	return subscribers.dropped.Load()
}

// RecentEvents returns the last n buffered events, oldest first. n <= 0
// returns everything buffered.
func RecentEvents(n int) []Event {
	return buffer.Last(n)
}
