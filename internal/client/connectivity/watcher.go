// Package connectivity tracks whether the remote store is reachable and
// notifies on transitions. The sync engine hangs its drain trigger off the
// offline→online edge.
package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gymdesk/gymsync/internal/logging"
)

// Pinger probes the remote store. The remote.Store implementation satisfies
// this.
type Pinger interface {
	Ping(ctx context.Context) error
}

const probeTimeout = 3 * time.Second

// Watcher periodically probes the remote store and keeps an online/offline
// snapshot. Callbacks registered with OnOnline run on every offline→online
// transition, including the first successful probe.
type Watcher struct {
	pinger   Pinger
	interval time.Duration
	logger   logging.Logger

	online atomic.Bool

	mu       sync.Mutex
	onOnline []func()
}

func NewWatcher(p Pinger, interval time.Duration, logger logging.Logger) *Watcher {
	return &Watcher{
		pinger:   p,
		interval: interval,
		logger:   logger.With("module", "connectivity"),
	}
}

// Online reports the last observed connectivity state.
func (w *Watcher) Online() bool {
	return w.online.Load()
}

// OnOnline registers a callback for offline→online transitions.
func (w *Watcher) OnOnline(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onOnline = append(w.onOnline, fn)
}

// Run probes immediately, then on every tick, until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	w.probe(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	err := w.pinger.Ping(probeCtx)
	cancel()

	w.setOnline(ctx, err == nil)
}

func (w *Watcher) setOnline(ctx context.Context, online bool) {
	was := w.online.Swap(online)
	if was == online {
		return
	}

	if online {
		w.logger.Info(ctx, "remote store reachable, switching to online mode")
		w.mu.Lock()
		callbacks := make([]func(), len(w.onOnline))
		copy(callbacks, w.onOnline)
		w.mu.Unlock()
		for _, fn := range callbacks {
			fn()
		}
	} else {
		w.logger.Warn(ctx, "remote store unreachable, switching to offline mode")
	}
}
