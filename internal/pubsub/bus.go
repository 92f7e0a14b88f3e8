package pubsub

import (
	"context"
)

// Message is one raw event received from the bus.
type Message struct {
	Channel string
	Payload []byte
}

// Publisher is the write half of the bus. Payloads are JSON-encoded before
// publishing.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// Bus is a channel-addressed publish/subscribe transport between backend
// instances. Delivery is at-most-once and best-effort.
type Bus interface {
	Publisher
	Subscribe(ctx context.Context, channels ...string) (<-chan Message, error)
	Close() error
}
