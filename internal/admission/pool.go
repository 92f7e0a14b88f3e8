// Package admission bounds the number of concurrently open logical
// connections, in a single-process and a cluster-wide (redis-backed) form.
package admission

import (
	"context"
	"errors"
)

var (
	// ErrAlreadyAcquired means a slot for this connection id already
	// exists.
	ErrAlreadyAcquired = errors.New("connection already acquired")
)

// Pool admits, tracks and evicts logical connections. Acquire blocks until a
// slot under the configured maximum frees up or ctx is done. Sweep evicts
// connections idle past the timeout; it runs on a timer and must stay
// correct when interleaved with concurrent acquires and releases.
type Pool interface {
	Acquire(ctx context.Context, id string) error
	Release(id string) error
	UpdateActivity(id string) error
	IsAvailable(id string) (bool, error)
	ActiveConnections() ([]string, error)
	Sweep() error
}
