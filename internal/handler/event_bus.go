// internal/handler/event_bus.go
package handler

import (
	"sync"

	"go.uber.org/zap"

	"adcp-service/internal/model"
)

// AllEvents subscribes to every event type
const AllEvents model.EventType = "*"

// EventBus manages event distribution
type EventBus struct {
	subscribers map[model.EventType][]chan model.ProjectorEvent
	events      chan model.ProjectorEvent
	mutex       sync.RWMutex
	logger      *zap.Logger
	stopOnce    sync.Once
	done        chan struct{}
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[model.EventType][]chan model.ProjectorEvent),
		events:      make(chan model.ProjectorEvent, 1000),
		logger:      logger.With(zap.String("component", "event_bus")),
		done:        make(chan struct{}),
	}
}

// Start distributes events until Stop is called
func (eb *EventBus) Start() {
	for {
		select {
		case event := <-eb.events:
			eb.distributeEvent(event)
		case <-eb.done:
			eb.closeSubscribers()
			return
		}
	}
}

// Stop ends distribution and closes every subscriber channel
func (eb *EventBus) Stop() {
	eb.stopOnce.Do(func() { close(eb.done) })
}

// Publish publishes an event without blocking. It is safe to call from a
// connection state listener.
func (eb *EventBus) Publish(event model.ProjectorEvent) {
	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", string(event.EventType)),
		)
	}
}

// Subscribe subscribes to events of a specific type, or AllEvents. The
// returned function cancels the subscription and closes the channel.
func (eb *EventBus) Subscribe(eventType model.EventType) (<-chan model.ProjectorEvent, func()) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	subscriber := make(chan model.ProjectorEvent, 100)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)

	return subscriber, func() { eb.unsubscribe(eventType, subscriber) }
}

func (eb *EventBus) unsubscribe(eventType model.EventType, subscriber chan model.ProjectorEvent) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	subscribers := eb.subscribers[eventType]
	for i, s := range subscribers {
		if s == subscriber {
			eb.subscribers[eventType] = append(subscribers[:i:i], subscribers[i+1:]...)
			close(subscriber)
			return
		}
	}
}

// distributeEvent distributes an event to subscribers. Sends happen under the
// read lock so a concurrent unsubscribe cannot close a channel mid-send.
func (eb *EventBus) distributeEvent(event model.ProjectorEvent) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for _, eventType := range []model.EventType{event.EventType, AllEvents} {
		for _, subscriber := range eb.subscribers[eventType] {
			select {
			case subscriber <- event:
			default:
				// Subscriber is slow, skip
			}
		}
	}
}

func (eb *EventBus) closeSubscribers() {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	for eventType, subscribers := range eb.subscribers {
		for _, subscriber := range subscribers {
			close(subscriber)
		}
		delete(eb.subscribers, eventType)
	}
}
