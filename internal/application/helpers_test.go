package application

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bnema/dnd-campaign-cli/internal/adapters/storage/sqlite"
	"github.com/bnema/dnd-campaign-cli/internal/domain"
	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

var testNow = time.Date(2026, 10, 2, 20, 0, 0, 0, time.UTC)

func openOutbox(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "dnd.db"), sqlite.WithClock(fixedClock{now: testNow}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type staticConnectivity bool

func (s staticConnectivity) Online(context.Context) bool {
	return bool(s)
}

// memoryOutbox accepts any action type, which the SQLite store refuses.
type memoryOutbox struct {
	mu      sync.Mutex
	nextID  int64
	actions map[int64]domain.PendingAction
}

func newMemoryOutbox() *memoryOutbox {
	return &memoryOutbox{actions: map[int64]domain.PendingAction{}}
}

func (m *memoryOutbox) Enqueue(_ context.Context, kind domain.ActionType, data json.RawMessage, files []domain.FileAttachment) (domain.PendingAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	action := domain.PendingAction{ID: m.nextID, Type: kind, Data: data, Files: files, EnqueuedAt: testNow}
	m.actions[action.ID] = action
	return action, nil
}

func (m *memoryOutbox) ListPending(context.Context) ([]domain.PendingAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	actions := make([]domain.PendingAction, 0, len(m.actions))
	for _, action := range m.actions {
		actions = append(actions, action)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i].ID < actions[j].ID })
	return actions, nil
}

func (m *memoryOutbox) Remove(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.actions, id)
	return nil
}

func (m *memoryOutbox) RecordFailure(_ context.Context, id int64, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	action, ok := m.actions[id]
	if !ok {
		return nil
	}
	action.Attempts++
	action.LastError = cause.Error()
	m.actions[id] = action
	return nil
}
