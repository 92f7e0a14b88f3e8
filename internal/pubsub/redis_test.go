package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"

	"github.com/gosocial/realtime/internal/testutil"
	"github.com/gosocial/realtime/internal/types"
)

func newTestBus(t *testing.T) *RedisBus {
	t.Helper()

	mr := miniredis.RunT(t)
	bus := NewRedisBus(testutil.TestLogger(t), mr.Addr())
	t.Cleanup(func() { bus.Close() })

	return bus
}

func TestRedisBus_PublishSubscribe(t *testing.T) {
	bus := newTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.Subscribe(ctx, FriendshipUpdatesChannel, PrivateVoiceChatUpdatesChannel)
	assert.NoError(t, err)

	update := types.FriendshipUpdate{
		Id:     "fr-1",
		From:   "0xfrom",
		To:     "0xto",
		Action: types.FriendshipRequest,
	}
	assert.NoError(t, bus.Publish(ctx, FriendshipUpdatesChannel, update))

	select {
	case msg := <-msgs:
		assert.Equal(t, FriendshipUpdatesChannel, msg.Channel)

		var decoded types.FriendshipUpdate
		assert.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		assert.Equal(t, update, decoded)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for published message")
	}
}

func TestRedisBus_SubscribeOnlyReceivesItsChannels(t *testing.T) {
	bus := newTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.Subscribe(ctx, BlockUpdatesChannel)
	assert.NoError(t, err)

	assert.NoError(t, bus.Publish(ctx, FriendStatusUpdatesChannel, types.FriendStatusUpdate{Address: "0xa", Status: types.StatusOnline}))
	assert.NoError(t, bus.Publish(ctx, BlockUpdatesChannel, types.BlockUpdate{BlockerAddress: "0xa", BlockedAddress: "0xb", IsBlocked: true}))

	select {
	case msg := <-msgs:
		assert.Equal(t, BlockUpdatesChannel, msg.Channel, "expected only the subscribed channel")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for published message")
	}
}

func TestRedisBus_SubscribeClosesOnCancel(t *testing.T) {
	bus := newTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())

	msgs, err := bus.Subscribe(ctx, FriendshipUpdatesChannel)
	assert.NoError(t, err)

	cancel()

	select {
	case _, ok := <-msgs:
		assert.False(t, ok, "expected stream closed after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for stream to close")
	}
}
