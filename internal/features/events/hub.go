// Package events fans case changes out to websocket subscribers.
package events

import (
	"sync"
	"time"

	"go-workflow/internal/metrics"

	"go.uber.org/zap"
)

type EventType string

const (
	EventCreated      EventType = "case.created"
	EventApproved     EventType = "case.approved"
	EventTransitioned EventType = "case.transitioned"
	EventAction       EventType = "case.action"
	EventDataUpdated  EventType = "case.data_updated"
)

type CaseEvent struct {
	Type      EventType `json:"type"`
	CaseID    string    `json:"case_id"`
	State     string    `json:"state,omitempty"`
	Step      *int      `json:"step,omitempty"`
	FromState string    `json:"from_state,omitempty"`
	ToState   string    `json:"to_state,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	At        time.Time `json:"at"`
}

type subscriber struct {
	ch     chan CaseEvent
	caseID string
}

// Hub delivers events to subscribers without blocking publishers. A
// subscriber that falls behind loses events.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	bufferSize  int
	log         *zap.Logger
	metrics     *metrics.Recorder
}

func NewHub(log *zap.Logger, recorder *metrics.Recorder) *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]struct{}),
		bufferSize:  32,
		log:         log,
		metrics:     recorder,
	}
}

// Subscribe registers a listener. An empty caseID receives every case.
// The returned func unsubscribes and closes the channel.
func (h *Hub) Subscribe(caseID string) (<-chan CaseEvent, func()) {
	sub := &subscriber{ch: make(chan CaseEvent, h.bufferSize), caseID: caseID}

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()
	h.metrics.SubscriberDelta(1)

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, sub)
			h.mu.Unlock()
			close(sub.ch)
			h.metrics.SubscriberDelta(-1)
		})
	}
}

func (h *Hub) Publish(e CaseEvent) {
	if h == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers {
		if sub.caseID != "" && sub.caseID != e.CaseID {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			h.log.Debug("dropping event for slow subscriber", zap.String("case_id", e.CaseID), zap.String("type", string(e.Type)))
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
