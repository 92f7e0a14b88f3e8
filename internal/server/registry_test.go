package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gosocial/realtime/internal/testutil"
)

func TestRegistry_AttachSharesSubscriber(t *testing.T) {
	reg := NewRegistry(testutil.TestLogger(t))

	first := reg.Attach("0xabc")
	second := reg.Attach("0xabc")

	assert.Same(t, first, second, "expected both attaches to share one subscriber")
	assert.Equal(t, 1, reg.Len(), "expected one registered address")

	// both connections listen through the same subscriber, so one emit
	// reaches both
	ch1, cancel1 := first.Listen("friend.status.updates")
	ch2, cancel2 := second.Listen("friend.status.updates")
	defer cancel1()
	defer cancel2()

	assert.Equal(t, 2, first.Emit("friend.status.updates", "ev"))
	assert.Equal(t, "ev", <-ch1)
	assert.Equal(t, "ev", <-ch2)
}

func TestRegistry_Detach(t *testing.T) {
	reg := NewRegistry(testutil.TestLogger(t))

	sub := reg.Attach("0xabc")
	ch, cancel := sub.Listen("block.updates")
	defer cancel()

	reg.Detach("0xabc")

	_, ok := reg.Get("0xabc")
	assert.False(t, ok, "expected subscriber removed")
	assert.Equal(t, 0, reg.Len())

	_, open := <-ch
	assert.False(t, open, "expected listener channel closed on detach")

	// detaching again, or detaching an unknown address, is a no-op
	reg.Detach("0xabc")
	reg.Detach("0xdef")
}

func TestRegistry_Addresses(t *testing.T) {
	reg := NewRegistry(testutil.TestLogger(t))

	assert.Empty(t, reg.Addresses())

	reg.Attach("0xabc")
	reg.Attach("0xdef")

	assert.ElementsMatch(t, []string{"0xabc", "0xdef"}, reg.Addresses())
}
