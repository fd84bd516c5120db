package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bnema/dnd-campaign-cli/internal/logging"
	"github.com/bnema/dnd-campaign-cli/internal/ports"
)

const defaultProbeInterval = 10 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectivityMonitor tracks whether the backend answers and signals every
// transition back to online. Before the first probe it assumes online.
type ConnectivityMonitor struct {
	pinger   Pinger
	interval time.Duration
	logger   *slog.Logger
	restored chan struct{}

	mu     sync.RWMutex
	online bool
	probed bool
}

var _ ports.ConnectivityChecker = (*ConnectivityMonitor)(nil)

func NewConnectivityMonitor(pinger Pinger, interval time.Duration, logger *slog.Logger) *ConnectivityMonitor {
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &ConnectivityMonitor{
		pinger:   pinger,
		interval: interval,
		logger:   logger,
		restored: make(chan struct{}, 1),
		online:   true,
	}
}

func (m *ConnectivityMonitor) Online(context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Restored delivers one signal per offline to online transition. Signals
// coalesce while the receiver is busy.
func (m *ConnectivityMonitor) Restored() <-chan struct{} {
	return m.restored
}

func (m *ConnectivityMonitor) Probe(ctx context.Context) bool {
	err := m.pinger.Ping(ctx)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) && ctx.Err() != nil {
		return m.Online(ctx)
	}
	online := err == nil

	m.mu.Lock()
	wasOnline, probed := m.online, m.probed
	m.online, m.probed = online, true
	m.mu.Unlock()

	switch {
	case online && (!probed || !wasOnline):
		if probed {
			m.logger.Info("backend reachable again")
		}
		m.signal()
	case !online && wasOnline:
		m.logger.Info("backend unreachable", "error", err)
	}

	return online
}

func (m *ConnectivityMonitor) Run(ctx context.Context) error {
	m.Probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

func (m *ConnectivityMonitor) signal() {
	select {
	case m.restored <- struct{}{}:
	default:
	}
}
