package server

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/gosocial/realtime/internal/database"
	"github.com/gosocial/realtime/internal/pubsub"
	"github.com/gosocial/realtime/internal/stats"
	"github.com/gosocial/realtime/internal/testutil"
	"github.com/gosocial/realtime/internal/types"
)

type fakeTracker struct {
	active   []string
	inactive []string
}

func (f *fakeTracker) MarkActive(communityId string)   { f.active = append(f.active, communityId) }
func (f *fakeTracker) MarkInactive(communityId string) { f.inactive = append(f.inactive, communityId) }

func newTestBridge(t *testing.T, db database.Repository, tracker CommunityCallTracker) (*UpdateBridge, *Registry) {
	t.Helper()

	registry := NewRegistry(testutil.TestLogger(t))
	bridge := NewUpdateBridge(testutil.TestLogger(t), registry, db, nil, stats.NoopStats{}, tracker)
	return bridge, registry
}

func encode(t *testing.T, channel string, payload any) pubsub.Message {
	t.Helper()

	data, err := json.Marshal(payload)
	assert.NoError(t, err)
	return pubsub.Message{Channel: channel, Payload: data}
}

func Test_handleMessage_friendshipTargetsRecipient(t *testing.T) {
	bridge, registry := newTestBridge(t, &database.MockRepository{}, nil)

	recipient := registry.Attach("0xto")
	ch, cancel := recipient.Listen(pubsub.FriendshipUpdatesChannel)
	defer cancel()

	other := registry.Attach("0xother")
	otherCh, otherCancel := other.Listen(pubsub.FriendshipUpdatesChannel)
	defer otherCancel()

	update := types.FriendshipUpdate{Id: "fr-1", From: "0xfrom", To: "0xto", Action: types.FriendshipAccept}
	bridge.handleMessage(encode(t, pubsub.FriendshipUpdatesChannel, update))

	select {
	case ev := <-ch:
		assert.Equal(t, update, ev.(types.FriendshipUpdate), "expected update delivered to recipient")
	default:
		t.Error("expected update for recipient")
	}

	select {
	case <-otherCh:
		t.Error("expected no delivery to uninvolved address")
	default:
	}
}

func Test_handleMessage_blockTargetsBlockedUser(t *testing.T) {
	bridge, registry := newTestBridge(t, &database.MockRepository{}, nil)

	blocked := registry.Attach("0xblocked")
	ch, cancel := blocked.Listen(pubsub.BlockUpdatesChannel)
	defer cancel()

	update := types.BlockUpdate{BlockerAddress: "0xblocker", BlockedAddress: "0xblocked", IsBlocked: true}
	bridge.handleMessage(encode(t, pubsub.BlockUpdatesChannel, update))

	select {
	case ev := <-ch:
		assert.Equal(t, update, ev.(types.BlockUpdate))
	default:
		t.Error("expected update for blocked user")
	}
}

func Test_handleMessage_friendStatusFansOutToAttachedFriends(t *testing.T) {
	db := &database.MockRepository{}
	bridge, registry := newTestBridge(t, db, nil)

	friend := registry.Attach("0xfriend")
	friendCh, cancelFriend := friend.Listen(pubsub.FriendStatusUpdatesChannel)
	defer cancelFriend()

	stranger := registry.Attach("0xstranger")
	strangerCh, cancelStranger := stranger.Listen(pubsub.FriendStatusUpdatesChannel)
	defer cancelStranger()

	// the friend query is restricted to the attached addresses
	db.On("FilterFriendsOf", "0xactor", mock.MatchedBy(func(candidates []string) bool {
		return len(candidates) == 2
	})).Return([]string{"0xfriend"}, nil)

	update := types.FriendStatusUpdate{Address: "0xactor", Status: types.StatusOnline}
	bridge.handleMessage(encode(t, pubsub.FriendStatusUpdatesChannel, update))

	select {
	case ev := <-friendCh:
		assert.Equal(t, update, ev.(types.FriendStatusUpdate))
	default:
		t.Error("expected update for attached friend")
	}

	select {
	case <-strangerCh:
		t.Error("expected no delivery to non-friend")
	default:
	}

	db.AssertExpectations(t)
}

func Test_handleMessage_friendStatusQueryFailureDropsUpdate(t *testing.T) {
	db := &database.MockRepository{}
	bridge, registry := newTestBridge(t, db, nil)

	friend := registry.Attach("0xfriend")
	ch, cancel := friend.Listen(pubsub.FriendStatusUpdatesChannel)
	defer cancel()

	db.On("FilterFriendsOf", "0xactor", []string{"0xfriend"}).Return(nil, errors.New("db down"))

	bridge.handleMessage(encode(t, pubsub.FriendStatusUpdatesChannel, types.FriendStatusUpdate{Address: "0xactor", Status: types.StatusOffline}))

	select {
	case <-ch:
		t.Error("expected no delivery when the friend query fails")
	default:
	}
}

func Test_handleMessage_communityMemberConnectivityFansOut(t *testing.T) {
	db := &database.MockRepository{}
	bridge, registry := newTestBridge(t, db, nil)

	member := registry.Attach("0xmember")
	ch, cancel := member.Listen(pubsub.CommunityMemberConnectivityUpdatesChannel)
	defer cancel()

	db.On("FilterMembersOfCommunity", "community-1", []string{"0xmember"}).Return([]string{"0xmember"}, nil)

	update := types.CommunityMemberConnectivityUpdate{
		CommunityId:   "community-1",
		MemberAddress: "0xactor",
		Status:        types.StatusOnline,
	}
	bridge.handleMessage(encode(t, pubsub.CommunityMemberConnectivityUpdatesChannel, update))

	select {
	case ev := <-ch:
		assert.Equal(t, update, ev.(types.CommunityMemberConnectivityUpdate))
	default:
		t.Error("expected update for community member")
	}

	db.AssertExpectations(t)
}

func Test_handleMessage_communityVoiceChatTracksLifecycle(t *testing.T) {
	db := &database.MockRepository{}
	tracker := &fakeTracker{}
	bridge, registry := newTestBridge(t, db, tracker)

	member := registry.Attach("0xmember")
	ch, cancel := member.Listen(pubsub.CommunityVoiceChatUpdatesChannel)
	defer cancel()

	db.On("FilterMembersOfCommunity", "community-1", []string{"0xmember"}).Return([]string{"0xmember"}, nil).Twice()

	bridge.handleMessage(encode(t, pubsub.CommunityVoiceChatUpdatesChannel, types.CommunityVoiceChatUpdate{
		CommunityId: "community-1",
		Status:      types.CallStarted,
	}))
	bridge.handleMessage(encode(t, pubsub.CommunityVoiceChatUpdatesChannel, types.CommunityVoiceChatUpdate{
		CommunityId: "community-1",
		Status:      types.CallEnded,
	}))

	assert.Equal(t, []string{"community-1"}, tracker.active, "expected started call marked active")
	assert.Equal(t, []string{"community-1"}, tracker.inactive, "expected ended call marked inactive")
	assert.Len(t, ch, 2, "expected both lifecycle updates delivered")
}

func Test_handleMessage_malformedPayload(t *testing.T) {
	bridge, registry := newTestBridge(t, &database.MockRepository{}, nil)

	sub := registry.Attach("0xto")
	ch, cancel := sub.Listen(pubsub.FriendshipUpdatesChannel)
	defer cancel()

	bridge.handleMessage(pubsub.Message{Channel: pubsub.FriendshipUpdatesChannel, Payload: []byte("{not json")})

	select {
	case <-ch:
		t.Error("expected malformed payload to be dropped")
	default:
	}
}

func Test_privateCallRecipients(t *testing.T) {
	tcases := []struct {
		name     string
		update   types.PrivateVoiceChatUpdate
		expected []string
	}{
		{
			name:     "requested goes to the callee only",
			update:   types.PrivateVoiceChatUpdate{Status: types.CallRequested, CallerAddress: "0xcaller", CalleeAddress: "0xcallee"},
			expected: []string{"0xcallee"},
		},
		{
			name:     "rejected goes to the caller only",
			update:   types.PrivateVoiceChatUpdate{Status: types.CallRejected, CallerAddress: "0xcaller", CalleeAddress: "0xcallee"},
			expected: []string{"0xcaller"},
		},
		{
			name:     "accepted goes to whichever party is named",
			update:   types.PrivateVoiceChatUpdate{Status: types.CallAccepted, CalleeAddress: "0xcallee"},
			expected: []string{"0xcallee"},
		},
		{
			name:     "ended goes to the remaining party",
			update:   types.PrivateVoiceChatUpdate{Status: types.CallEnded, CallerAddress: "0xcaller"},
			expected: []string{"0xcaller"},
		},
		{
			name:     "expired goes to both parties",
			update:   types.PrivateVoiceChatUpdate{Status: types.CallExpired, CallerAddress: "0xcaller", CalleeAddress: "0xcallee"},
			expected: []string{"0xcaller", "0xcallee"},
		},
		{
			name:     "no recipients when fields are absent",
			update:   types.PrivateVoiceChatUpdate{Status: types.CallRequested},
			expected: nil,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, privateCallRecipients(tc.update))
		})
	}
}

func Test_handleMessage_privateVoiceChatRouting(t *testing.T) {
	bridge, registry := newTestBridge(t, &database.MockRepository{}, nil)

	caller := registry.Attach("0xcaller")
	callerCh, cancelCaller := caller.Listen(pubsub.PrivateVoiceChatUpdatesChannel)
	defer cancelCaller()

	callee := registry.Attach("0xcallee")
	calleeCh, cancelCallee := callee.Listen(pubsub.PrivateVoiceChatUpdatesChannel)
	defer cancelCallee()

	bridge.handleMessage(encode(t, pubsub.PrivateVoiceChatUpdatesChannel, types.PrivateVoiceChatUpdate{
		CallId:        "call-1",
		Status:        types.CallRequested,
		CallerAddress: "0xcaller",
		CalleeAddress: "0xcallee",
	}))

	assert.Len(t, calleeCh, 1, "expected request delivered to the callee")
	assert.Len(t, callerCh, 0, "expected caller not notified of its own request")
}
