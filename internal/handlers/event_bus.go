package handlers

import (
	"sync"
)

// Topics published on the bus. Payload types are noted per topic.
const (
	EventSessionChanged   = "session.changed"   // player.Snapshot
	EventSessionProgress  = "session.progress"  // player.Progress
	EventLibraryChanged   = "library.changed"   // library.Snapshot
	EventSearchCompleted  = "search.completed"  // *types.SearchResultSet
	EventPlaybackError    = "playback.error"    // error
	EventLibraryError     = "library.error"     // error
)

type EventHandler func(data interface{})

// Subscription identifies a single handler registration so it can be removed
// without tearing down every other subscriber on the topic.
type Subscription struct {
	topic string
	id    int
}

type EventBus struct {
	mutex       sync.RWMutex
	nextID      int
	subscribers map[string]map[int]EventHandler
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string]map[int]EventHandler),
	}
}

func (bus *EventBus) Subscribe(topic string, handler EventHandler) Subscription {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	bus.nextID++
	if bus.subscribers[topic] == nil {
		bus.subscribers[topic] = make(map[int]EventHandler)
	}
	bus.subscribers[topic][bus.nextID] = handler

	return Subscription{topic: topic, id: bus.nextID}
}

func (bus *EventBus) Unsubscribe(sub Subscription) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	if handlers, ok := bus.subscribers[sub.topic]; ok {
		delete(handlers, sub.id)
		if len(handlers) == 0 {
			delete(bus.subscribers, sub.topic)
		}
	}
}

// Publish dispatches to each handler on its own goroutine so a slow consumer
// never blocks the publisher.
func (bus *EventBus) Publish(topic string, data interface{}) {
	bus.mutex.RLock()
	handlers := make([]EventHandler, 0, len(bus.subscribers[topic]))
	for _, handler := range bus.subscribers[topic] {
		handlers = append(handlers, handler)
	}
	bus.mutex.RUnlock()

	for _, handler := range handlers {
		go handler(data)
	}
}
