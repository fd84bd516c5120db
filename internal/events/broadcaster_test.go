package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBroadcasterPublishesInSubscriptionOrder(t *testing.T) {
	b := NewBroadcaster[string]()
	var got []string

	b.Subscribe(func(v string) { got = append(got, "first:"+v) })
	b.Subscribe(func(v string) { got = append(got, "second:"+v) })
	b.Publish("hello")

	assert.Equal(t, []string{"first:hello", "second:hello"}, got)
}

func TestSubscriptionUnsubscribeIsIdempotent(t *testing.T) {
	b := NewBroadcaster[int]()
	calls := 0

	sub := b.Subscribe(func(int) { calls++ })
	other := b.Subscribe(func(int) {})
	sub.Unsubscribe()
	sub.Unsubscribe()
	b.Publish(1)

	assert.Zero(t, calls)
	assert.Equal(t, 1, b.Len())
	other.Unsubscribe()
	assert.Zero(t, b.Len())
}

func TestSubscribeNilHandlerReturnsNoop(t *testing.T) {
	b := NewBroadcaster[int]()

	sub := b.Subscribe(nil)
	sub.Unsubscribe()

	assert.Zero(t, b.Len())
}

func TestClearDropsHandlers(t *testing.T) {
	b := NewBroadcaster[int]()
	sub := b.Subscribe(func(int) { t.Fatal("handler should be cleared") })

	b.Clear()
	b.Publish(1)
	sub.Unsubscribe()

	assert.Zero(t, b.Len())
}

func TestGroupUnsubscribesAll(t *testing.T) {
	b := NewBroadcaster[int]()
	var g Group
	g.Add(b.Subscribe(func(int) {}))
	g.Add(b.Subscribe(func(int) {}))
	assert.Equal(t, 2, g.Len())

	g.Unsubscribe()

	assert.Zero(t, b.Len())
	assert.Zero(t, g.Len())
}
