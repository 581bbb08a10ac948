package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventAlertCreated    EventType = "ALERT_CREATED"
	EventAlertRemoved    EventType = "ALERT_REMOVED"
	EventAlertTriggered  EventType = "ALERT_TRIGGERED"
	EventAlertExpired    EventType = "ALERT_EXPIRED"
	EventCycleCompleted  EventType = "CYCLE_COMPLETED"
	EventDataUnavailable EventType = "DATA_UNAVAILABLE"
	EventEngineStarted   EventType = "ENGINE_STARTED"
	EventEngineStopped   EventType = "ENGINE_STOPPED"
	EventError           EventType = "ERROR"
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

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishAlertTriggered publishes an alert trigger event
func (eb *EventBus) PublishAlertTriggered(alertID, symbol, message string, price float64) {
	eb.Publish(Event{
		Type: EventAlertTriggered,
		Data: map[string]interface{}{
			"alert_id": alertID,
			"symbol":   symbol,
			"message":  message,
			"price":    price,
		},
	})
}

// PublishDataUnavailable publishes a market-data outage event for a symbol
func (eb *EventBus) PublishDataUnavailable(symbol, reason string) {
	eb.Publish(Event{
		Type: EventDataUnavailable,
		Data: map[string]interface{}{
			"symbol": symbol,
			"reason": reason,
		},
	})
}

// PublishCycleCompleted publishes evaluation cycle statistics
func (eb *EventBus) PublishCycleCompleted(symbols, evaluated, triggered int, duration time.Duration) {
	eb.Publish(Event{
		Type: EventCycleCompleted,
		Data: map[string]interface{}{
			"symbols":   symbols,
			"evaluated": evaluated,
			"triggered": triggered,
			"duration":  duration.String(),
		},
	})
}
