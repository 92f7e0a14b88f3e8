package server

import (
	"log"
	"sync"
)

// Registry tracks one Subscriber per locally attached user address. It is
// the single source of truth for "who is connected to this instance", which
// is what bounds the bridge's fan-out queries.
type Registry struct {
	log         *log.Logger
	mu          sync.Mutex
	subscribers map[string]*Subscriber
}

func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{
		log:         logger,
		subscribers: make(map[string]*Subscriber),
	}
}

// Attach returns the subscriber for address, creating it on first attach. A
// second connection for the same address shares the existing subscriber, so
// both receive identical events.
func (r *Registry) Attach(address string) *Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub, ok := r.subscribers[address]; ok {
		return sub
	}

	r.log.Printf("attaching %q", address)
	sub := newSubscriber(address)
	r.subscribers[address] = sub

	return sub
}

// Detach clears all listeners for address and removes its subscriber.
// Detaching an unknown address, or detaching twice, is a no-op.
func (r *Registry) Detach(address string) {
	r.mu.Lock()
	sub, ok := r.subscribers[address]
	if ok {
		delete(r.subscribers, address)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	r.log.Printf("detaching %q", address)
	sub.Clear()
}

func (r *Registry) Get(address string) (*Subscriber, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subscribers[address]
	return sub, ok
}

// Addresses returns the currently attached addresses.
func (r *Registry) Addresses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	addresses := make([]string, 0, len(r.subscribers))
	for address := range r.subscribers {
		addresses = append(addresses, address)
	}

	return addresses
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.subscribers)
}
