package calls

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gosocial/realtime/internal/comms"
	"github.com/gosocial/realtime/internal/pubsub"
	"github.com/gosocial/realtime/internal/types"
)

const communityEntryTTL = 24 * time.Hour

type communityCallEntry struct {
	createdAt   time.Time
	lastChecked time.Time
}

// CommunityVoiceMonitor caches which communities have an active call so
// active-to-inactive transitions can be detected without polling every
// community on every tick. The signaling service remains the source of
// truth; the cache only tells the monitor where to look.
type CommunityVoiceMonitor struct {
	log   *log.Logger
	comms comms.Client
	bus   pubsub.Publisher

	mu      sync.Mutex
	entries map[string]*communityCallEntry
}

func NewCommunityVoiceMonitor(logger *log.Logger, commsClient comms.Client, bus pubsub.Publisher) *CommunityVoiceMonitor {
	return &CommunityVoiceMonitor{
		log:     logger,
		comms:   commsClient,
		bus:     bus,
		entries: make(map[string]*communityCallEntry),
	}
}

// MarkActive records that a community call was confirmed active, refreshing
// the entry if one exists.
func (m *CommunityVoiceMonitor) MarkActive(communityId string) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[communityId]; ok {
		entry.lastChecked = now
		return
	}

	m.entries[communityId] = &communityCallEntry{createdAt: now, lastChecked: now}
}

// MarkInactive drops the cache entry for a community.
func (m *CommunityVoiceMonitor) MarkInactive(communityId string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, communityId)
}

// ActiveCommunities returns the community ids currently cached as active.
func (m *CommunityVoiceMonitor) ActiveCommunities() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}

	return ids
}

// CheckTransitions re-checks every cached community against the signaling
// service. A call confirmed inactive publishes an ended event; an entry
// older than the TTL is dropped without one. A check failure keeps the
// entry for the next tick.
func (m *CommunityVoiceMonitor) CheckTransitions(ctx context.Context) {
	now := time.Now()

	for _, communityId := range m.ActiveCommunities() {
		m.mu.Lock()
		entry, ok := m.entries[communityId]
		if !ok {
			m.mu.Unlock()
			continue
		}
		expired := now.Sub(entry.createdAt) > communityEntryTTL
		if expired {
			delete(m.entries, communityId)
		}
		m.mu.Unlock()

		if expired {
			m.log.Printf("community call cache entry for %q expired", communityId)
			continue
		}

		active, err := m.comms.IsCommunityCallActive(ctx, communityId)
		if err != nil {
			m.log.Printf("check community call %q: %v", communityId, err)
			continue
		}

		if active {
			m.mu.Lock()
			if entry, ok := m.entries[communityId]; ok {
				entry.lastChecked = now
			}
			m.mu.Unlock()
			continue
		}

		m.MarkInactive(communityId)
		update := types.CommunityVoiceChatUpdate{
			CommunityId: communityId,
			Status:      types.CallEnded,
			Timestamp:   now.UTC().UnixMilli(),
		}
		if err := m.bus.Publish(ctx, pubsub.CommunityVoiceChatUpdatesChannel, update); err != nil {
			m.log.Printf("publish community call ended for %q: %v", communityId, err)
		}
	}
}
