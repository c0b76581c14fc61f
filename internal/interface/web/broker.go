package webservice

import (
	"sync"

	"github.com/rafflenet/raffled/internal/core/domain"
)

type listener struct {
	id   string
	ch   chan domain.RoundEvent
	done chan struct{}
}

// broker is a simple utility struct to manage stream subscriptions.
// it is thread safe and fans every round event out to all listeners.
type broker struct {
	lock      *sync.Mutex
	listeners []*listener
}

func newBroker() *broker {
	return &broker{
		lock:      &sync.Mutex{},
		listeners: make([]*listener, 0),
	}
}

func (b *broker) pushListener(l *listener) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.listeners = append(b.listeners, l)
}

func (b *broker) removeListener(id string) {
	b.lock.Lock()
	defer b.lock.Unlock()

	for i, listener := range b.listeners {
		if listener.id == id {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}

func (b *broker) broadcast(event domain.RoundEvent) {
	b.lock.Lock()
	defer b.lock.Unlock()

	for _, l := range b.listeners {
		go func(l *listener) {
			// the done channel unblocks the send when the subscriber
			// goes away before reading the event
			select {
			case l.ch <- event:
			case <-l.done:
			}
		}(l)
	}
}
