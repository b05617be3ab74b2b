package connectivity

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymdesk/gymsync/internal/logging"
)

type fakePinger struct {
	fail atomic.Bool
}

func (f *fakePinger) Ping(ctx context.Context) error {
	if f.fail.Load() {
		return errors.New("unreachable")
	}
	return nil
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func TestWatcher_TransitionsFireOnOnlineCallbacks(t *testing.T) {
	p := &fakePinger{}
	p.fail.Store(true)
	w := NewWatcher(p, 10*time.Millisecond, testLogger())

	var fired atomic.Int32
	w.OnOnline(func() { fired.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// starts offline
	require.Eventually(t, func() bool { return !w.Online() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())

	// comes online once
	p.fail.Store(false)
	require.Eventually(t, func() bool { return w.Online() }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)

	// staying online does not re-fire
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())

	// drop and recover fires again
	p.fail.Store(true)
	require.Eventually(t, func() bool { return !w.Online() }, time.Second, 5*time.Millisecond)
	p.fail.Store(false)
	require.Eventually(t, func() bool { return fired.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestWatcher_FirstProbeRunsImmediately(t *testing.T) {
	p := &fakePinger{}
	w := NewWatcher(p, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.Eventually(t, func() bool { return w.Online() }, time.Second, 5*time.Millisecond)
}
