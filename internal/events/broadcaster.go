// Package events provides in-process fan-out with disposable subscriptions.
package events

import (
	"sort"
	"sync"
)

// Subscription is returned by Subscribe; Unsubscribe may be called any number of times.
type Subscription interface {
	Unsubscribe()
}

type Broadcaster[T any] struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[uint64]func(T)
}

func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{handlers: make(map[uint64]func(T))}
}

func (b *Broadcaster[T]) Subscribe(handler func(T)) Subscription {
	if handler == nil {
		return noopSubscription{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[id] = handler

	return &subscription{remove: func() { b.remove(id) }}
}

// Publish calls every handler in subscription order. Handlers run on the
// caller's goroutine and must not block for long.
func (b *Broadcaster[T]) Publish(value T) {
	for _, handler := range b.snapshot() {
		handler(value)
	}
}

func (b *Broadcaster[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

// Clear drops every handler; outstanding handles become no-ops.
func (b *Broadcaster[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[uint64]func(T))
}

func (b *Broadcaster[T]) snapshot() []func(T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]uint64, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	handlers := make([]func(T), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.handlers[id])
	}
	return handlers
}

func (b *Broadcaster[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, id)
}

type subscription struct {
	once   sync.Once
	remove func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.remove)
}

type noopSubscription struct{}

func (noopSubscription) Unsubscribe() {}

// Group disposes several subscriptions together.
type Group struct {
	mu   sync.Mutex
	subs []Subscription
}

func (g *Group) Add(sub Subscription) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subs = append(g.subs, sub)
}

func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}

func (g *Group) Unsubscribe() {
	g.mu.Lock()
	subs := g.subs
	g.subs = nil
	g.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}
