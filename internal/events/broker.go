package events

import (
	"sync"

	"ssotoken/internal/api"
	"ssotoken/pkg/logging"
)

// DefaultBufferSize is the channel capacity of each subscriber.
const DefaultBufferSize = 100

// Publisher is implemented by anything that accepts lifecycle events.
type Publisher interface {
	Publish(event api.SsoTokenChangedParams)
}

// Broker delivers published events to every current subscriber.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int]chan api.SsoTokenChangedParams
	nextID      int
	closed      bool
	bufferSize  int
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[int]chan api.SsoTokenChangedParams),
		bufferSize:  DefaultBufferSize,
	}
}

// Subscribe returns a channel of events and a function that ends the
// subscription and closes the channel.
func (b *Broker) Subscribe() (<-chan api.SsoTokenChangedParams, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan api.SsoTokenChangedParams, b.bufferSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subscribers[id]; ok {
				delete(b.subscribers, id)
				close(sub)
			}
		})
	}
}

// Publish implements Publisher.
func (b *Broker) Publish(event api.SsoTokenChangedParams) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	logging.Debug("Events", "Token %s changed: %s", event.SsoTokenID, event.Kind)

	for _, sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			logging.Warn("Events", "Subscriber blocked, dropping %s event for %s", event.Kind, event.SsoTokenID)
		}
	}
}

// Close ends all subscriptions.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subscribers {
		delete(b.subscribers, id)
		close(sub)
	}
}
