package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bnema/dnd-campaign-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedPinger struct {
	mu      sync.Mutex
	results []error
}

func (p *scriptedPinger) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.results) == 0 {
		return nil
	}
	result := p.results[0]
	p.results = p.results[1:]
	return result
}

var errUnreachable = fmt.Errorf("dial tcp: %w", domain.ErrBackendUnreachable)

func drainSignals(ch <-chan struct{}) int {
	count := 0
	for {
		select {
		case <-ch:
			count++
		default:
			return count
		}
	}
}

func TestConnectivityMonitorIsOptimisticBeforeFirstProbe(t *testing.T) {
	monitor := NewConnectivityMonitor(&scriptedPinger{}, time.Second, nil)
	assert.True(t, monitor.Online(context.Background()))
	assert.Zero(t, drainSignals(monitor.Restored()))
}

func TestConnectivityMonitorSignalsOnlineAtStartAndOnRecovery(t *testing.T) {
	pinger := &scriptedPinger{results: []error{nil, nil, errUnreachable, errUnreachable, nil}}
	monitor := NewConnectivityMonitor(pinger, time.Second, nil)
	ctx := context.Background()

	assert.True(t, monitor.Probe(ctx))
	assert.Equal(t, 1, drainSignals(monitor.Restored()))

	assert.True(t, monitor.Probe(ctx))
	assert.Zero(t, drainSignals(monitor.Restored()))

	assert.False(t, monitor.Probe(ctx))
	assert.False(t, monitor.Online(ctx))
	assert.False(t, monitor.Probe(ctx))
	assert.Zero(t, drainSignals(monitor.Restored()))

	assert.True(t, monitor.Probe(ctx))
	assert.True(t, monitor.Online(ctx))
	assert.Equal(t, 1, drainSignals(monitor.Restored()))
}

func TestConnectivityMonitorCoalescesUnconsumedSignals(t *testing.T) {
	pinger := &scriptedPinger{results: []error{nil, errUnreachable, nil}}
	monitor := NewConnectivityMonitor(pinger, time.Second, nil)

	monitor.Probe(context.Background())
	monitor.Probe(context.Background())
	monitor.Probe(context.Background())

	assert.Equal(t, 1, drainSignals(monitor.Restored()))
}

func TestConnectivityMonitorIgnoresCanceledProbe(t *testing.T) {
	pinger := &scriptedPinger{results: []error{errUnreachable, context.Canceled}}
	monitor := NewConnectivityMonitor(pinger, time.Second, nil)
	monitor.Probe(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, monitor.Probe(ctx))
	assert.Zero(t, drainSignals(monitor.Restored()))
}

func TestConnectivityMonitorRunProbesUntilCanceled(t *testing.T) {
	pinger := &scriptedPinger{results: []error{errUnreachable, nil}}
	monitor := NewConnectivityMonitor(pinger, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- monitor.Run(ctx) }()

	select {
	case <-monitor.Restored():
	case <-time.After(2 * time.Second):
		t.Fatal("expected a restored signal")
	}

	cancel()
	err := <-done
	require.True(t, errors.Is(err, context.Canceled))
}
