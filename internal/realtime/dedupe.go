package realtime

import (
	"sync"
	"time"
)

type dedupeEntry struct {
	key     string
	expires time.Time
}

// dedupeWindow remembers keys for a fixed trailing window. Expired entries
// are evicted lazily from the head of a FIFO queue; there are no timers.
type dedupeWindow struct {
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	expires map[string]time.Time
	queue   []dedupeEntry
}

func newDedupeWindow(window time.Duration, now func() time.Time) *dedupeWindow {
	return &dedupeWindow{
		window:  window,
		now:     now,
		expires: make(map[string]time.Time),
	}
}

// Seen records key and reports whether it was already recorded inside the
// window. A duplicate does not extend the original expiry.
func (d *dedupeWindow) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.evict(now)

	if expires, ok := d.expires[key]; ok && now.Before(expires) {
		return true
	}

	expires := now.Add(d.window)
	d.expires[key] = expires
	d.queue = append(d.queue, dedupeEntry{key: key, expires: expires})
	return false
}

func (d *dedupeWindow) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.expires)
}

func (d *dedupeWindow) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.expires = make(map[string]time.Time)
	d.queue = nil
}

func (d *dedupeWindow) evict(now time.Time) {
	i := 0
	for ; i < len(d.queue); i++ {
		entry := d.queue[i]
		if now.Before(entry.expires) {
			break
		}
		if current, ok := d.expires[entry.key]; ok && !current.After(entry.expires) {
			delete(d.expires, entry.key)
		}
	}
	if i == 0 {
		return
	}
	clear(d.queue[:i])
	d.queue = d.queue[i:]
}
