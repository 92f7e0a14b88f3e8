package server

import (
	"context"

	"github.com/gosocial/realtime/internal/pubsub"
	"github.com/gosocial/realtime/internal/types"
)

// subscription describes one "subscribe to X" stream: the bridge-side
// channel to listen on, an optional filter, an optional profile-enrichment
// address, and the parser producing the wire notification. A nil parse
// result drops the update without yielding.
type subscription[U any] struct {
	channel        string
	shouldHandle   func(self string, update U) bool
	profileAddress func(update U) string
	parse          func(update U, profile *types.Profile) *UpdateNotification
}

// runSubscription pumps events from the client's subscriber into its send
// queue until ctx is cancelled or the listener channel closes. Listener
// deregistration is guaranteed on every exit path. The only suspension point
// is waiting for the next event; ordering is FIFO per (subscriber, channel).
func runSubscription[U any](ctx context.Context, c *Client, spec subscription[U]) {
	events, cancel := c.subscriber.Listen(spec.channel)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}

			update, ok := ev.(U)
			if !ok {
				c.log.Printf("unexpected payload type on %q: %T", spec.channel, ev)
				continue
			}

			if spec.shouldHandle != nil && !spec.shouldHandle(c.address, update) {
				continue
			}

			var profile *types.Profile
			if spec.profileAddress != nil {
				address := spec.profileAddress(update)
				if address != "" {
					p, err := c.resolver.Resolve(ctx, address)
					if err != nil {
						// a failed lookup only ever costs this one update
						c.log.Printf("resolve profile %q: %v", address, err)
						continue
					}
					profile = &p
				}
			}

			notification := spec.parse(update, profile)
			if notification == nil {
				continue
			}

			c.queueMessage(&ServerMessage{
				BaseMessage: BaseMessage{Timestamp: Now()},
				Update:      notification,
			})
		}
	}
}

func friendshipSubscription() subscription[types.FriendshipUpdate] {
	return subscription[types.FriendshipUpdate]{
		channel: pubsub.FriendshipUpdatesChannel,
		shouldHandle: func(self string, u types.FriendshipUpdate) bool {
			return u.From != self
		},
		profileAddress: func(u types.FriendshipUpdate) string {
			return u.From
		},
		parse: func(u types.FriendshipUpdate, profile *types.Profile) *UpdateNotification {
			if profile == nil {
				return nil
			}
			return &UpdateNotification{
				Friendship: &FriendshipNotification{
					Id:      u.Id,
					Friend:  *profile,
					Action:  u.Action,
					Message: u.Message,
				},
			}
		},
	}
}

func friendStatusSubscription() subscription[types.FriendStatusUpdate] {
	return subscription[types.FriendStatusUpdate]{
		channel: pubsub.FriendStatusUpdatesChannel,
		shouldHandle: func(self string, u types.FriendStatusUpdate) bool {
			return u.Address != self
		},
		profileAddress: func(u types.FriendStatusUpdate) string {
			return u.Address
		},
		parse: func(u types.FriendStatusUpdate, profile *types.Profile) *UpdateNotification {
			if profile == nil {
				return nil
			}
			return &UpdateNotification{
				FriendStatus: &FriendStatusNotification{
					Friend: *profile,
					Status: u.Status,
				},
			}
		},
	}
}

func blockSubscription() subscription[types.BlockUpdate] {
	return subscription[types.BlockUpdate]{
		channel: pubsub.BlockUpdatesChannel,
		shouldHandle: func(self string, u types.BlockUpdate) bool {
			return u.BlockerAddress != self
		},
		parse: func(u types.BlockUpdate, _ *types.Profile) *UpdateNotification {
			return &UpdateNotification{Block: &u}
		},
	}
}

func communityMemberConnectivitySubscription() subscription[types.CommunityMemberConnectivityUpdate] {
	return subscription[types.CommunityMemberConnectivityUpdate]{
		channel: pubsub.CommunityMemberConnectivityUpdatesChannel,
		shouldHandle: func(self string, u types.CommunityMemberConnectivityUpdate) bool {
			return u.MemberAddress != self
		},
		parse: func(u types.CommunityMemberConnectivityUpdate, _ *types.Profile) *UpdateNotification {
			return &UpdateNotification{CommunityMemberConnectivity: &u}
		},
	}
}

func privateVoiceChatSubscription() subscription[types.PrivateVoiceChatUpdate] {
	return subscription[types.PrivateVoiceChatUpdate]{
		channel: pubsub.PrivateVoiceChatUpdatesChannel,
		parse: func(u types.PrivateVoiceChatUpdate, _ *types.Profile) *UpdateNotification {
			return &UpdateNotification{PrivateVoiceChat: &u}
		},
	}
}

func communityVoiceChatSubscription() subscription[types.CommunityVoiceChatUpdate] {
	return subscription[types.CommunityVoiceChatUpdate]{
		channel: pubsub.CommunityVoiceChatUpdatesChannel,
		parse: func(u types.CommunityVoiceChatUpdate, _ *types.Profile) *UpdateNotification {
			return &UpdateNotification{CommunityVoiceChat: &u}
		},
	}
}
