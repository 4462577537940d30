package runtime

import (
	"sync"
	"time"
)

// EventType names a class of engine event.
type EventType string

const (
	EventCycleStart    EventType = "cycle_start"
	EventStageChange   EventType = "stage_change"
	EventSegment       EventType = "segment"
	EventDeltaApplied  EventType = "delta_applied"
	EventPruned        EventType = "pruned"
	EventSearchStart   EventType = "search_start"
	EventSearchDone    EventType = "search_done"
	EventResearchStage EventType = "research_stage"
	EventEngineError   EventType = "engine_error"
)

// Event is one engine notification with associated data.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Query     string
	Data      map[string]interface{}
}

// EventHandler is a function that handles events.
type EventHandler func(Event)

// EventBus fans engine events out to subscribers. Handlers run
// synchronously on the publishing goroutine, so UI layers should hand off
// to their own loop rather than block here.
type EventBus struct {
	mu          sync.RWMutex
	handlers    map[EventType][]EventHandler
	allHandlers []EventHandler
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type.
func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
}

// SubscribeAll registers a handler for all event types.
func (eb *EventBus) SubscribeAll(handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.allHandlers = append(eb.allHandlers, handler)
}

// Publish sends an event to all registered handlers.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if handlers, ok := eb.handlers[event.Type]; ok {
		for _, handler := range handlers {
			handler(event)
		}
	}
	for _, handler := range eb.allHandlers {
		handler(event)
	}
}

// PublishSimple publishes an event carrying only the query context.
func (eb *EventBus) PublishSimple(eventType EventType, query string) {
	eb.Publish(Event{
		Type:  eventType,
		Query: query,
	})
}

// PublishWithData publishes an event with associated data.
func (eb *EventBus) PublishWithData(eventType EventType, query string, data map[string]interface{}) {
	eb.Publish(Event{
		Type:  eventType,
		Query: query,
		Data:  data,
	})
}
