package services

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan Event) (Event, bool) {
	t.Helper()
	select {
	case e, ok := <-ch:
		return e, ok
	case <-time.After(100 * time.Millisecond):
		return Event{}, false
	}
}

func TestEventHub_SubscribeUnsubscribe(t *testing.T) {
	hub := NewEventHub()

	hub.Subscribe("c1", Subscription{UserID: "u1"})
	hub.Subscribe("c2", Subscription{UserID: "u2"})
	if hub.ClientCount() != 2 {
		t.Fatalf("expected 2 clients, got %d", hub.ClientCount())
	}

	hub.Unsubscribe("c1")
	hub.Unsubscribe("missing")
	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client, got %d", hub.ClientCount())
	}
}

func TestEventHub_ResubscribeClosesOldChannel(t *testing.T) {
	hub := NewEventHub()

	old := hub.Subscribe("c1", Subscription{UserID: "u1"})
	hub.Subscribe("c1", Subscription{UserID: "u1"})

	if _, ok := <-old; ok {
		t.Error("previous channel should be closed")
	}
	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client, got %d", hub.ClientCount())
	}
}

func TestEventHub_PublishRouting(t *testing.T) {
	tests := []struct {
		name    string
		sub     Subscription
		event   Event
		deliver bool
	}{
		{"team member gets team event", Subscription{UserID: "u1", TeamIDs: []string{"t1"}}, Event{Type: EventAnalysisCompleted, TeamID: "t1"}, true},
		{"other team is filtered", Subscription{UserID: "u1", TeamIDs: []string{"t2"}}, Event{Type: EventAnalysisCompleted, TeamID: "t1"}, false},
		{"own session event", Subscription{UserID: "u1"}, Event{Type: EventSignedIn, UserID: "u1"}, true},
		{"other user's session event", Subscription{UserID: "u2"}, Event{Type: EventSignedOut, UserID: "u1"}, false},
		{"untargeted event is dropped", Subscription{UserID: "u1", TeamIDs: []string{"t1"}}, Event{Type: "noop"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewEventHub()
			ch := hub.Subscribe("c", tt.sub)
			hub.Publish(tt.event)

			got, ok := receive(t, ch)
			if ok != tt.deliver {
				t.Fatalf("delivered = %v, expected %v", ok, tt.deliver)
			}
			if ok {
				if got.Type != tt.event.Type {
					t.Errorf("Type = %q, expected %q", got.Type, tt.event.Type)
				}
				if got.At.IsZero() {
					t.Error("At should be stamped on publish")
				}
			}
		})
	}
}

func TestEventHub_SlowClientDoesNotBlock(t *testing.T) {
	hub := NewEventHub()
	hub.Subscribe("slow", Subscription{TeamIDs: []string{"t1"}})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 250; i++ {
			hub.Publish(Event{Type: EventCheckInSubmitted, TeamID: "t1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full client buffer")
	}
}

func TestEventHub_ConcurrentAccess(t *testing.T) {
	hub := NewEventHub()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			hub.Subscribe(id, Subscription{TeamIDs: []string{"t1"}})
			hub.Publish(Event{Type: EventMemberJoined, TeamID: "t1"})
			hub.Unsubscribe(id)
		}(i)
	}
	wg.Wait()

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestGetEventHub_Singleton(t *testing.T) {
	if GetEventHub() != GetEventHub() {
		t.Error("GetEventHub should return the same instance")
	}
}
