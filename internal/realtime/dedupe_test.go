package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type steppingClock struct {
	now time.Time
}

func (c *steppingClock) Now() time.Time { return c.now }

func (c *steppingClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func TestDedupeWindowDropsRepeatsInsideWindow(t *testing.T) {
	t.Parallel()

	clock := &steppingClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	window := newDedupeWindow(3*time.Second, clock.Now)

	assert.False(t, window.Seen("alice::hi"))
	clock.advance(time.Second)
	assert.True(t, window.Seen("alice::hi"))
	assert.False(t, window.Seen("bob::hi"))
}

func TestDedupeWindowDuplicateDoesNotExtendExpiry(t *testing.T) {
	t.Parallel()

	clock := &steppingClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	window := newDedupeWindow(3*time.Second, clock.Now)

	assert.False(t, window.Seen("alice::hi"))
	clock.advance(2 * time.Second)
	assert.True(t, window.Seen("alice::hi"))
	clock.advance(1500 * time.Millisecond)
	assert.False(t, window.Seen("alice::hi"))
}

func TestDedupeWindowEvictsExpiredEntries(t *testing.T) {
	t.Parallel()

	clock := &steppingClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	window := newDedupeWindow(time.Second, clock.Now)

	for _, key := range []string{"a::1", "b::2", "c::3"} {
		window.Seen(key)
	}
	assert.Equal(t, 3, window.Len())

	clock.advance(2 * time.Second)
	window.Seen("d::4")
	assert.Equal(t, 1, window.Len())

	window.Reset()
	assert.Zero(t, window.Len())
}
