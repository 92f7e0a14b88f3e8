package calls

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/gosocial/realtime/internal/comms"
	"github.com/gosocial/realtime/internal/pubsub"
	"github.com/gosocial/realtime/internal/testutil"
	"github.com/gosocial/realtime/internal/types"
)

func newTestMonitor(t *testing.T) (*CommunityVoiceMonitor, *comms.MockClient, *pubsub.MockPublisher) {
	t.Helper()

	commsClient := &comms.MockClient{}
	bus := &pubsub.MockPublisher{}
	return NewCommunityVoiceMonitor(testutil.TestLogger(t), commsClient, bus), commsClient, bus
}

func TestCommunityVoiceMonitor_MarkActiveMarkInactive(t *testing.T) {
	monitor, _, _ := newTestMonitor(t)

	monitor.MarkActive("community-1")
	monitor.MarkActive("community-2")
	monitor.MarkActive("community-1") // refresh, not duplicate
	assert.ElementsMatch(t, []string{"community-1", "community-2"}, monitor.ActiveCommunities())

	monitor.MarkInactive("community-1")
	assert.Equal(t, []string{"community-2"}, monitor.ActiveCommunities())

	monitor.MarkInactive("unknown")
	assert.Equal(t, []string{"community-2"}, monitor.ActiveCommunities())
}

func TestCommunityVoiceMonitor_CheckTransitions(t *testing.T) {
	t.Run("active call keeps its entry", func(t *testing.T) {
		monitor, commsClient, bus := newTestMonitor(t)

		monitor.MarkActive("community-1")
		commsClient.On("IsCommunityCallActive", mock.Anything, "community-1").Return(true, nil)

		monitor.CheckTransitions(context.Background())

		assert.Equal(t, []string{"community-1"}, monitor.ActiveCommunities())
		bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("inactive call publishes ended and drops the entry", func(t *testing.T) {
		monitor, commsClient, bus := newTestMonitor(t)

		monitor.MarkActive("community-1")
		commsClient.On("IsCommunityCallActive", mock.Anything, "community-1").Return(false, nil)
		bus.On("Publish", mock.Anything, pubsub.CommunityVoiceChatUpdatesChannel,
			mock.MatchedBy(func(u types.CommunityVoiceChatUpdate) bool {
				return u.CommunityId == "community-1" && u.Status == types.CallEnded && u.Timestamp > 0
			})).Return(nil)

		monitor.CheckTransitions(context.Background())

		assert.Empty(t, monitor.ActiveCommunities())
		bus.AssertExpectations(t)
	})

	t.Run("check failure keeps the entry for the next tick", func(t *testing.T) {
		monitor, commsClient, bus := newTestMonitor(t)

		monitor.MarkActive("community-1")
		commsClient.On("IsCommunityCallActive", mock.Anything, "community-1").Return(false, errors.New("signaling down"))

		monitor.CheckTransitions(context.Background())

		assert.Equal(t, []string{"community-1"}, monitor.ActiveCommunities())
		bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("stale entry is dropped without an event", func(t *testing.T) {
		monitor, commsClient, bus := newTestMonitor(t)

		monitor.mu.Lock()
		monitor.entries["community-1"] = &communityCallEntry{
			createdAt:   time.Now().Add(-communityEntryTTL - time.Minute),
			lastChecked: time.Now(),
		}
		monitor.mu.Unlock()

		monitor.CheckTransitions(context.Background())

		assert.Empty(t, monitor.ActiveCommunities())
		commsClient.AssertNotCalled(t, "IsCommunityCallActive", mock.Anything, mock.Anything)
		bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})
}
