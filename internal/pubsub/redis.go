package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

const subscriberBuffer = 256

// RedisBus moves JSON-encoded updates through redis pub/sub. It holds one
// client for publishing and a separate one whose connection is dedicated to
// the subscription.
type RedisBus struct {
	log *log.Logger
	pub *redis.Client
	sub *redis.Client
}

func NewRedisBus(logger *log.Logger, addr string) *RedisBus {
	return &RedisBus{
		log: logger,
		pub: redis.NewClient(&redis.Options{Addr: addr}),
		sub: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (b *RedisBus) Publish(ctx context.Context, channel string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}

	if err := b.pub.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %q: %w", channel, err)
	}

	return nil
}

// Subscribe starts listening on the given channels and returns a stream of
// raw messages. The stream closes when ctx is cancelled or the underlying
// subscription is lost.
func (b *RedisBus) Subscribe(ctx context.Context, channels ...string) (<-chan Message, error) {
	ps := b.sub.Subscribe(ctx, channels...)

	// wait for the subscription to be confirmed before handing out the stream
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan Message, subscriberBuffer)
	go func() {
		defer close(out)
		defer ps.Close()

		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					b.log.Println("pubsub subscription closed")
					return
				}

				select {
				case out <- Message{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
				default:
					b.log.Printf("dropping message on %q, subscriber buffer full", msg.Channel)
				}
			}
		}
	}()

	return out, nil
}

func (b *RedisBus) Close() error {
	if err := b.sub.Close(); err != nil {
		b.pub.Close()
		return err
	}

	return b.pub.Close()
}
