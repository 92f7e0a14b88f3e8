package server

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gosocial/realtime/internal/database"
	"github.com/gosocial/realtime/internal/pubsub"
	"github.com/gosocial/realtime/internal/stats"
	"github.com/gosocial/realtime/internal/types"
)

// CommunityCallTracker is notified when community voice chat lifecycle
// events flow through the bridge, so the voice monitor can keep its cache of
// active community calls current without polling.
type CommunityCallTracker interface {
	MarkActive(communityId string)
	MarkInactive(communityId string)
}

// UpdateBridge decodes bus messages and routes them into the local
// registry. Targeted updates go to a single address; presence-style updates
// fan out via a query restricted to the currently attached addresses.
type UpdateBridge struct {
	log          *log.Logger
	registry     *Registry
	db           database.Repository
	bus          pubsub.Bus
	stats        stats.StatsProvider
	voiceTracker CommunityCallTracker
}

func NewUpdateBridge(logger *log.Logger, registry *Registry, db database.Repository, bus pubsub.Bus, st stats.StatsProvider, tracker CommunityCallTracker) *UpdateBridge {
	return &UpdateBridge{
		log:          logger,
		registry:     registry,
		db:           db,
		bus:          bus,
		stats:        st,
		voiceTracker: tracker,
	}
}

// Run subscribes to every update channel and processes messages until ctx is
// cancelled. One malformed or panicking message never stops the loop.
func (b *UpdateBridge) Run(ctx context.Context) error {
	msgs, err := b.bus.Subscribe(ctx, pubsub.AllChannels()...)
	if err != nil {
		return err
	}

	b.log.Println("update bridge running")
	for msg := range msgs {
		b.handleMessage(msg)
	}

	return nil
}

func (b *UpdateBridge) handleMessage(msg pubsub.Message) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Printf("panic handling message on %q: %v", msg.Channel, r)
		}
	}()

	switch msg.Channel {
	case pubsub.FriendshipUpdatesChannel:
		var u types.FriendshipUpdate
		if !b.decode(msg, &u) {
			return
		}
		b.emitTo(msg.Channel, u.To, u)
	case pubsub.BlockUpdatesChannel:
		var u types.BlockUpdate
		if !b.decode(msg, &u) {
			return
		}
		b.emitTo(msg.Channel, u.BlockedAddress, u)
	case pubsub.FriendStatusUpdatesChannel:
		var u types.FriendStatusUpdate
		if !b.decode(msg, &u) {
			return
		}
		b.fanOutToFriends(msg.Channel, u)
	case pubsub.CommunityMemberConnectivityUpdatesChannel:
		var u types.CommunityMemberConnectivityUpdate
		if !b.decode(msg, &u) {
			return
		}
		b.fanOutToCommunity(msg.Channel, u.CommunityId, u)
	case pubsub.PrivateVoiceChatUpdatesChannel:
		var u types.PrivateVoiceChatUpdate
		if !b.decode(msg, &u) {
			return
		}
		for _, address := range privateCallRecipients(u) {
			b.emitTo(msg.Channel, address, u)
		}
	case pubsub.CommunityVoiceChatUpdatesChannel:
		var u types.CommunityVoiceChatUpdate
		if !b.decode(msg, &u) {
			return
		}
		b.trackCommunityCall(u)
		b.fanOutToCommunity(msg.Channel, u.CommunityId, u)
	default:
		b.log.Printf("message on unknown channel %q", msg.Channel)
	}
}

func (b *UpdateBridge) decode(msg pubsub.Message, out any) bool {
	if err := json.Unmarshal(msg.Payload, out); err != nil {
		b.log.Printf("malformed message on %q: %v", msg.Channel, err)
		return false
	}

	return true
}

// emitTo delivers an update to a single address. An absent address means the
// recipient is not connected to this instance, which is harmless: a
// reconnect or REST poll re-syncs their state.
func (b *UpdateBridge) emitTo(channel, address string, payload any) {
	sub, ok := b.registry.Get(address)
	if !ok {
		b.stats.Incr(stats.DroppedUpdates)
		return
	}

	if sub.Emit(channel, payload) > 0 {
		b.stats.Incr(stats.PublishedUpdates)
	}
}

// fanOutToFriends notifies the attached friends of the update's actor. The
// friend query is restricted to locally attached addresses, so its cost is
// bounded by live connections rather than friend-graph size.
func (b *UpdateBridge) fanOutToFriends(channel string, u types.FriendStatusUpdate) {
	connected := b.registry.Addresses()
	if len(connected) == 0 {
		return
	}

	friends, err := b.db.FilterFriendsOf(u.Address, connected)
	if err != nil {
		b.log.Printf("filter friends of %q: %v", u.Address, err)
		return
	}

	for _, friend := range friends {
		b.emitTo(channel, friend, u)
	}
}

func (b *UpdateBridge) fanOutToCommunity(channel, communityId string, payload any) {
	connected := b.registry.Addresses()
	if len(connected) == 0 {
		return
	}

	members, err := b.db.FilterMembersOfCommunity(communityId, connected)
	if err != nil {
		b.log.Printf("filter members of community %q: %v", communityId, err)
		return
	}

	for _, member := range members {
		b.emitTo(channel, member, payload)
	}
}

func (b *UpdateBridge) trackCommunityCall(u types.CommunityVoiceChatUpdate) {
	if b.voiceTracker == nil {
		return
	}

	switch u.Status {
	case types.CallStarted:
		b.voiceTracker.MarkActive(u.CommunityId)
	case types.CallEnded:
		b.voiceTracker.MarkInactive(u.CommunityId)
	}
}

// privateCallRecipients derives the recipients of a private voice chat
// update from its status and the address fields present. For "ended" the
// ending party's field is omitted by the publisher, so only the remaining
// party is addressed.
func privateCallRecipients(u types.PrivateVoiceChatUpdate) []string {
	switch u.Status {
	case types.CallRequested:
		if u.CalleeAddress != "" {
			return []string{u.CalleeAddress}
		}
		return nil
	case types.CallRejected:
		if u.CallerAddress != "" {
			return []string{u.CallerAddress}
		}
		return nil
	default:
		var recipients []string
		if u.CallerAddress != "" {
			recipients = append(recipients, u.CallerAddress)
		}
		if u.CalleeAddress != "" {
			recipients = append(recipients, u.CalleeAddress)
		}
		return recipients
	}
}
