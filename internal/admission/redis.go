package admission

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gosocial/realtime/internal/stats"
)

const (
	connKeyPrefix = "realtime:conn:"
	connSetKey    = "realtime:connections"

	acquirePollInterval = 100 * time.Millisecond
	redisOpTimeout      = 5 * time.Second
)

type redisConnRecord struct {
	StartTime    int64 `json:"start_time"`
	LastActivity int64 `json:"last_activity"`
}

// RedisPool is the cluster-wide variant: per-connection keys hold activity
// records and one shared set tracks membership, so every instance sees the
// same admission state.
type RedisPool struct {
	log            *log.Logger
	stats          stats.StatsProvider
	client         *redis.Client
	maxConnections int
	idleTimeout    time.Duration
}

func NewRedisPool(logger *log.Logger, st stats.StatsProvider, client *redis.Client, maxConnections int, idleTimeout time.Duration) *RedisPool {
	return &RedisPool{
		log:            logger,
		stats:          st,
		client:         client,
		maxConnections: maxConnections,
		idleTimeout:    idleTimeout,
	}
}

// Acquire polls until a slot frees up, then atomically creates the per-id
// key and adds the id to the membership set. If the key already existed the
// membership addition is rolled back and the acquire fails.
func (p *RedisPool) Acquire(ctx context.Context, id string) error {
	for {
		count, err := p.client.SCard(ctx, connSetKey).Result()
		if err != nil {
			return fmt.Errorf("count connections: %w", err)
		}

		if int(count) < p.maxConnections {
			ok, err := p.tryAcquire(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				return ErrAlreadyAcquired
			}

			p.refreshGauge(ctx)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(acquirePollInterval):
		}
	}
}

func (p *RedisPool) tryAcquire(ctx context.Context, id string) (bool, error) {
	now := time.Now().UnixMilli()
	data, err := json.Marshal(redisConnRecord{StartTime: now, LastActivity: now})
	if err != nil {
		return false, fmt.Errorf("marshal connection record: %w", err)
	}

	pipe := p.client.TxPipeline()
	setNX := pipe.SetNX(ctx, connKeyPrefix+id, data, 0)
	pipe.SAdd(ctx, connSetKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("acquire connection %q: %w", id, err)
	}

	if !setNX.Val() {
		// the key existed, so the SAdd re-added an id we don't own: roll
		// it back before failing
		if err := p.client.SRem(ctx, connSetKey, id).Err(); err != nil {
			p.log.Printf("rollback membership for %q: %v", id, err)
		}
		return false, nil
	}

	return true, nil
}

func (p *RedisPool) Release(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	data, err := p.client.Get(ctx, connKeyPrefix+id).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get connection %q: %w", id, err)
	}

	pipe := p.client.TxPipeline()
	pipe.Del(ctx, connKeyPrefix+id)
	pipe.SRem(ctx, connSetKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("release connection %q: %w", id, err)
	}

	var rec redisConnRecord
	if err := json.Unmarshal([]byte(data), &rec); err == nil {
		duration := time.Since(time.UnixMilli(rec.StartTime))
		p.stats.Observe(stats.ConnectionDuration, duration.Seconds())
	}

	p.refreshGauge(ctx)

	return nil
}

func (p *RedisPool) UpdateActivity(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	data, err := p.client.Get(ctx, connKeyPrefix+id).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get connection %q: %w", id, err)
	}

	var rec redisConnRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return fmt.Errorf("unmarshal connection record %q: %w", id, err)
	}

	rec.LastActivity = time.Now().UnixMilli()
	updated, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal connection record: %w", err)
	}

	if err := p.client.Set(ctx, connKeyPrefix+id, updated, 0).Err(); err != nil {
		return fmt.Errorf("update activity for %q: %w", id, err)
	}

	return nil
}

func (p *RedisPool) IsAvailable(id string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	n, err := p.client.Exists(ctx, connKeyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("check connection %q: %w", id, err)
	}

	return n > 0, nil
}

func (p *RedisPool) ActiveConnections() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	ids, err := p.client.SMembers(ctx, connSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}

	return ids, nil
}

// Sweep scans every per-connection key and evicts those whose last activity
// exceeds the idle timeout.
func (p *RedisPool) Sweep() error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	cutoff := time.Now().Add(-p.idleTimeout).UnixMilli()
	var evicted int

	iter := p.client.Scan(ctx, 0, connKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		data, err := p.client.Get(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return fmt.Errorf("get %q: %w", key, err)
		}

		var rec redisConnRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			p.log.Printf("malformed connection record at %q: %v", key, err)
			continue
		}

		if rec.LastActivity >= cutoff {
			continue
		}

		id := strings.TrimPrefix(key, connKeyPrefix)
		pipe := p.client.TxPipeline()
		pipe.Del(ctx, key)
		pipe.SRem(ctx, connSetKey, id)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("evict %q: %w", id, err)
		}

		p.log.Printf("evicting idle connection %q", id)
		p.stats.Incr(stats.IdleTimeouts)
		p.stats.Observe(stats.ConnectionDuration, time.Since(time.UnixMilli(rec.StartTime)).Seconds())
		evicted++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan connections: %w", err)
	}

	if evicted > 0 {
		p.refreshGauge(ctx)
	}

	return nil
}

// refreshGauge recomputes the active-connection gauge from the membership
// set after every state change.
func (p *RedisPool) refreshGauge(ctx context.Context) {
	count, err := p.client.SCard(ctx, connSetKey).Result()
	if err != nil {
		p.log.Printf("refresh connection gauge: %v", err)
		return
	}

	p.stats.Set(stats.ActiveConnections, float64(count))
}
