// Package realtime fans committed change events out to open client
// streams. Delivery is best-effort: at-least-once while a stream is
// live, nothing after it closes. Clients reconcile on reconnect.
package realtime

import (
	"encoding/json"
	"sync"
	"time"
)

// Event is the payload pushed to subscribers. VisibleTo carries the
// user ids allowed to see it (creator plus assignees); it is used for
// filtering and never serialized.
type Event struct {
	ID        string          `json:"id"`
	TaskID    int64           `json:"task_id"`
	ActorID   int64           `json:"actor_id"`
	Action    string          `json:"action"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`

	VisibleTo []int64 `json:"-"`
}

// Subscription is one client's live stream. Close is safe to call any
// number of times from any goroutine; cleanup runs at most once.
type Subscription struct {
	hub    *Hub
	userID int64
	admin  bool
	taskID int64 // 0 = every task visible to the user

	mu     sync.Mutex
	closed bool
	ch     chan Event
	once   sync.Once
}

// Events is the stream of matching events. It is closed when the
// subscription ends, whichever side ends it.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}

// send delivers without blocking the publisher. A subscriber that
// cannot keep up gets disconnected instead of delaying everyone else;
// its client reconnects and re-fetches.
func (s *Subscription) send(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}

func (s *Subscription) wants(ev Event) bool {
	if s.taskID != 0 && s.taskID != ev.TaskID {
		return false
	}
	if s.admin {
		return true
	}
	for _, id := range ev.VisibleTo {
		if id == s.userID {
			return true
		}
	}
	return false
}

// Hub tracks open subscriptions and broadcasts published events to the
// ones whose scope and visibility match.
type Hub struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe opens a stream for one user. taskID 0 subscribes to every
// task the user can see.
func (h *Hub) Subscribe(userID int64, admin bool, taskID int64) *Subscription {
	s := &Subscription{
		hub:    h,
		userID: userID,
		admin:  admin,
		taskID: taskID,
		ch:     make(chan Event, 64),
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) unsubscribe(s *Subscription) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}

// Publish fans the event out to every matching live subscription.
// Fire-and-forget: it never blocks and never fails the caller.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	var slow []*Subscription
	for s := range h.subs {
		if !s.wants(ev) {
			continue
		}
		if !s.send(ev) {
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		s.Close()
	}
}

// Subscribers reports how many streams are open.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
