// Package bus is the in-process dispatch bus between the router and UI subscribers.
package bus

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrUnknownEvent indicates a publish outside the documented event set.
var ErrUnknownEvent = errors.New("unknown dispatch event")

// Listener receives published events synchronously.
type Listener func(Event)

type subscription struct {
	id       uint64
	listener Listener
}

// Bus fans events out to listeners registered per name.
type Bus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	nextID uint64
	byName map[Name][]subscription
	all    []subscription
}

// New constructs an empty bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		logger: logger,
		byName: make(map[Name][]subscription),
	}
}

// Subscribe registers listener for one event name and returns its unsubscribe func.
func (b *Bus) Subscribe(name Name, listener Listener) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.byName[name] = append(b.byName[name], subscription{id: id, listener: listener})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.byName[name] = removeSubscription(b.byName[name], id)
			if len(b.byName[name]) == 0 {
				delete(b.byName, name)
			}
		})
	}
}

// SubscribeAll registers listener for every event name.
func (b *Bus) SubscribeAll(listener Listener) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, listener: listener})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.all = removeSubscription(b.all, id)
		})
	}
}

// Publish notifies every listener registered at call time, in registration order.
func (b *Bus) Publish(name Name, detail any) error {
	if !Known(name) {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}

	b.mu.RLock()
	targets := mergeSubscriptions(b.byName[name], b.all)
	b.mu.RUnlock()

	event := Event{Name: name, Detail: detail}
	for _, sub := range targets {
		b.deliver(sub, event)
	}
	return nil
}

// ListenerCount reports how many listeners would receive name.
func (b *Bus) ListenerCount(name Name) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byName[name]) + len(b.all)
}

// deliver isolates listener panics from the remaining listeners.
func (b *Bus) deliver(sub subscription, event Event) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Error("dispatch listener panicked", "event", string(event.Name), "panic", fmt.Sprint(r))
		}
	}()
	sub.listener(event)
}

// mergeSubscriptions copies both lists ordered by registration id.
func mergeSubscriptions(named []subscription, all []subscription) []subscription {
	out := make([]subscription, 0, len(named)+len(all))
	i, j := 0, 0
	for i < len(named) && j < len(all) {
		if named[i].id < all[j].id {
			out = append(out, named[i])
			i++
			continue
		}
		out = append(out, all[j])
		j++
	}
	out = append(out, named[i:]...)
	return append(out, all[j:]...)
}

func removeSubscription(subs []subscription, id uint64) []subscription {
	out := make([]subscription, 0, len(subs))
	for _, sub := range subs {
		if sub.id != id {
			out = append(out, sub)
		}
	}
	return out
}
