package events

import (
	"sync"
	"testing"
	"time"
)

func TestPublishRoutesToTypedSubscribers(t *testing.T) {
	bus := NewEventBus()

	var mu sync.Mutex
	var got []EventType
	done := make(chan struct{}, 2)

	bus.Subscribe(EventBoardCycled, func(e Event) {
		mu.Lock()
		got = append(got, e.Type)
		mu.Unlock()
		done <- struct{}{}
	})
	bus.SubscribeAll(func(e Event) {
		mu.Lock()
		got = append(got, e.Type)
		mu.Unlock()
		done <- struct{}{}
	})

	bus.PublishBoardCycled(7, 1, 2)

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for subscribers")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("deliveries = %d, want 2", len(got))
	}
	for _, typ := range got {
		if typ != EventBoardCycled {
			t.Errorf("delivered type = %s, want %s", typ, EventBoardCycled)
		}
	}
}

func TestPublishSetsTimestamp(t *testing.T) {
	bus := NewEventBus()
	done := make(chan Event, 1)

	bus.SubscribeAll(func(e Event) {
		done <- e
	})
	bus.Publish(Event{Type: EventMemberPlaced})

	select {
	case e := <-done:
		if e.Timestamp.IsZero() {
			t.Error("timestamp not set on publish")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestTypedSubscriberIgnoresOtherTypes(t *testing.T) {
	bus := NewEventBus()
	delivered := make(chan struct{}, 1)

	bus.Subscribe(EventWithdrawalSettled, func(e Event) {
		delivered <- struct{}{}
	})
	bus.PublishMemberPlaced(1, 2, 1, "left")

	select {
	case <-delivered:
		t.Fatal("subscriber received an event of a different type")
	case <-time.After(100 * time.Millisecond):
	}
}
