package admission

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gosocial/realtime/internal/stats"
)

type connRecord struct {
	startTime    time.Time
	lastActivity time.Time
}

// LocalPool is the in-process variant: a counting semaphore bounds
// admissions and a map tracks per-connection activity.
type LocalPool struct {
	log         *log.Logger
	stats       stats.StatsProvider
	idleTimeout time.Duration
	sem         chan struct{}

	mu    sync.Mutex
	conns map[string]*connRecord
}

func NewLocalPool(logger *log.Logger, st stats.StatsProvider, maxConnections int, idleTimeout time.Duration) *LocalPool {
	return &LocalPool{
		log:         logger,
		stats:       st,
		idleTimeout: idleTimeout,
		sem:         make(chan struct{}, maxConnections),
		conns:       make(map[string]*connRecord),
	}
}

func (p *LocalPool) Acquire(ctx context.Context, id string) error {
	p.mu.Lock()
	_, exists := p.conns[id]
	p.mu.Unlock()
	if exists {
		return ErrAlreadyAcquired
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.mu.Lock()
	if _, exists := p.conns[id]; exists {
		p.mu.Unlock()
		<-p.sem
		return ErrAlreadyAcquired
	}

	now := time.Now()
	p.conns[id] = &connRecord{startTime: now, lastActivity: now}
	active := len(p.conns)
	p.mu.Unlock()

	p.stats.Set(stats.ActiveConnections, float64(active))

	return nil
}

func (p *LocalPool) Release(id string) error {
	p.mu.Lock()
	rec, ok := p.conns[id]
	if ok {
		delete(p.conns, id)
	}
	active := len(p.conns)
	p.mu.Unlock()

	if !ok {
		return nil
	}

	<-p.sem
	p.stats.Observe(stats.ConnectionDuration, time.Since(rec.startTime).Seconds())
	p.stats.Set(stats.ActiveConnections, float64(active))

	return nil
}

func (p *LocalPool) UpdateActivity(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if rec, ok := p.conns[id]; ok {
		rec.lastActivity = time.Now()
	}

	return nil
}

func (p *LocalPool) IsAvailable(id string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.conns[id]
	return ok, nil
}

func (p *LocalPool) ActiveConnections() ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, len(p.conns))
	for id := range p.conns {
		ids = append(ids, id)
	}

	return ids, nil
}

// Sweep evicts connections whose last activity exceeds the idle timeout.
func (p *LocalPool) Sweep() error {
	cutoff := time.Now().Add(-p.idleTimeout)

	p.mu.Lock()
	var stale []string
	durations := make(map[string]time.Duration)
	for id, rec := range p.conns {
		if rec.lastActivity.Before(cutoff) {
			stale = append(stale, id)
			durations[id] = time.Since(rec.startTime)
		}
	}
	for _, id := range stale {
		delete(p.conns, id)
	}
	active := len(p.conns)
	p.mu.Unlock()

	for _, id := range stale {
		<-p.sem
		p.log.Printf("evicting idle connection %q", id)
		p.stats.Incr(stats.IdleTimeouts)
		p.stats.Observe(stats.ConnectionDuration, durations[id].Seconds())
	}

	if len(stale) > 0 {
		p.stats.Set(stats.ActiveConnections, float64(active))
	}

	return nil
}
