package services

import (
	"sync"
	"time"
)

// Event types
const (
	EventAnalysisStarted   = "analysis_started"
	EventAnalysisCompleted = "analysis_completed"
	EventAnalysisFailed    = "analysis_failed"
	EventConflictDetected  = "conflict_detected"
	EventSurveySubmitted   = "survey_submitted"
	EventCheckInSubmitted  = "checkin_submitted"
	EventMemberJoined      = "member_joined"
	EventSignedIn          = "signed_in"
	EventSignedOut         = "signed_out"
)

// Event is a real-time notification. Team events carry TeamID, session
// events carry UserID.
type Event struct {
	Type   string      `json:"type"`
	TeamID string      `json:"team_id,omitempty"`
	UserID string      `json:"user_id,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	At     time.Time   `json:"at"`
}

// Subscription selects the events a client receives: its own session events
// and events of the listed teams.
type Subscription struct {
	UserID  string
	TeamIDs []string
}

func (s Subscription) matches(e Event) bool {
	if e.UserID != "" && e.UserID == s.UserID {
		return true
	}
	if e.TeamID == "" {
		return false
	}
	for _, id := range s.TeamIDs {
		if id == e.TeamID {
			return true
		}
	}
	return false
}

type subscriber struct {
	sub Subscription
	ch  chan Event
}

// EventHub fans events out to subscribed clients.
type EventHub struct {
	clients map[string]*subscriber
	mu      sync.RWMutex
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients: make(map[string]*subscriber),
	}
}

// Subscribe registers a client and returns its event channel.
func (h *EventHub) Subscribe(clientID string, sub Subscription) <-chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.clients[clientID]; ok {
		close(old.ch)
	}
	ch := make(chan Event, 100)
	h.clients[clientID] = &subscriber{sub: sub, ch: ch}
	return ch
}

func (h *EventHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.clients[clientID]; ok {
		close(s.ch)
		delete(h.clients, clientID)
	}
}

// Publish delivers event to every matching client. Slow clients miss events
// instead of blocking the publisher.
func (h *EventHub) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.clients {
		if !s.sub.matches(event) {
			continue
		}
		select {
		case s.ch <- event:
		default:
		}
	}
}

func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var (
	globalEventHub *EventHub
	eventHubOnce   sync.Once
)

// GetEventHub returns the process-wide hub.
func GetEventHub() *EventHub {
	eventHubOnce.Do(func() {
		globalEventHub = NewEventHub()
	})
	return globalEventHub
}
