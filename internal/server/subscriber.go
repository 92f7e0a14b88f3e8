package server

import (
	"slices"
	"sync"
)

const listenerBuffer = 256

// Subscriber is the per-address event emitter. Updates routed by the bridge
// are emitted on named channels; each open subscription listens on one
// channel. Events emitted while a listener is not being drained buffer in
// arrival order and are dropped once the buffer fills.
type Subscriber struct {
	address   string
	mu        sync.Mutex
	listeners map[string][]chan any
}

func newSubscriber(address string) *Subscriber {
	return &Subscriber{
		address:   address,
		listeners: make(map[string][]chan any),
	}
}

func (s *Subscriber) Address() string {
	return s.address
}

// Listen registers a listener on the named channel. The returned cancel
// deregisters the listener and closes its channel; it is safe to call more
// than once.
func (s *Subscriber) Listen(channel string) (<-chan any, func()) {
	ch := make(chan any, listenerBuffer)

	s.mu.Lock()
	s.listeners[channel] = append(s.listeners[channel], ch)
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			lst := s.listeners[channel]
			for i, c := range lst {
				if c == ch {
					s.listeners[channel] = slices.Delete(lst, i, i+1)
					close(ch)
					break
				}
			}
		})
	}

	return ch, cancel
}

// Emit delivers payload to every listener on the named channel, in listener
// registration order, and returns the number of deliveries. A listener whose
// buffer is full misses the event; presence data is self-healing so a missed
// event is recovered on the next change.
func (s *Subscriber) Emit(channel string, payload any) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var delivered int
	for _, ch := range s.listeners[channel] {
		select {
		case ch <- payload:
			delivered++
		default:
		}
	}

	return delivered
}

// ListenerCount reports the number of listeners on the named channel.
func (s *Subscriber) ListenerCount(channel string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.listeners[channel])
}

// Clear closes and removes every listener. Called on detach.
func (s *Subscriber) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for channel, lst := range s.listeners {
		for _, ch := range lst {
			close(ch)
		}
		delete(s.listeners, channel)
	}
}
