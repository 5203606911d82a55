package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventMemberRegistered    EventType = "MEMBER_REGISTERED"
	EventMemberActivated     EventType = "MEMBER_ACTIVATED"
	EventMemberPlaced        EventType = "MEMBER_PLACED"
	EventPaylineBonus        EventType = "PAYLINE_BONUS"
	EventBoardCycled         EventType = "BOARD_CYCLED"
	EventBoardUpgraded       EventType = "BOARD_UPGRADED"
	EventWithdrawalRequested EventType = "WITHDRAWAL_REQUESTED"
	EventWithdrawalSettled   EventType = "WITHDRAWAL_SETTLED"
	EventRevenueUpdated      EventType = "REVENUE_UPDATED"
	EventError               EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	// Set timestamp if not provided
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify specific subscribers
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishMemberPlaced publishes a placement event
func (eb *EventBus) PublishMemberPlaced(memberID, parentID int64, board int, position string) {
	eb.Publish(Event{
		Type: EventMemberPlaced,
		Data: map[string]interface{}{
			"member_id": memberID,
			"parent_id": parentID,
			"board":     board,
			"position":  position,
		},
	})
}

// PublishPaylineBonus publishes a payline bonus payout event
func (eb *EventBus) PublishPaylineBonus(memberID int64, board int, amount string) {
	eb.Publish(Event{
		Type: EventPaylineBonus,
		Data: map[string]interface{}{
			"member_id": memberID,
			"board":     board,
			"amount":    amount,
		},
	})
}

// PublishBoardCycled publishes a board completion event
func (eb *EventBus) PublishBoardCycled(memberID int64, board, nextBoard int) {
	eb.Publish(Event{
		Type: EventBoardCycled,
		Data: map[string]interface{}{
			"member_id":  memberID,
			"board":      board,
			"next_board": nextBoard,
		},
	})
}

// PublishWithdrawalSettled publishes a withdrawal settlement event
func (eb *EventBus) PublishWithdrawalSettled(requestID, memberID int64, status string) {
	eb.Publish(Event{
		Type: EventWithdrawalSettled,
		Data: map[string]interface{}{
			"request_id": requestID,
			"member_id":  memberID,
			"status":     status,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
