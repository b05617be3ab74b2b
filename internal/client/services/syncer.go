// Package services orchestrates the sync core: the subscriber façade every
// surface mutates through, and the engine that drains the pending-change
// queue into the remote store.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/gymdesk/gymsync/internal/client/client"
	"github.com/gymdesk/gymsync/internal/client/events"
	"github.com/gymdesk/gymsync/internal/client/models"
	"github.com/gymdesk/gymsync/internal/client/repositories/subscribers"
	"github.com/gymdesk/gymsync/internal/common"
	"github.com/gymdesk/gymsync/internal/dbx"
	"github.com/gymdesk/gymsync/internal/logging"
	"github.com/gymdesk/gymsync/internal/remote"
)

// Syncer pushes queued local mutations to the remote store and pulls fresh
// snapshots back into the local cache. At most one drain runs at a time;
// concurrent triggers (online transition, cron tick, manual sync) collapse
// into the one already running.
type Syncer struct {
	repos   *client.Repositories
	store   remote.Store
	ownerID string
	bus     *events.Bus
	clock   Clock
	logger  logging.Logger

	// draining is the authoritative single-drain guard. The persisted
	// syncing flag in metadata mirrors it for UI badges only.
	draining atomic.Bool
}

func NewSyncer(repos *client.Repositories, store remote.Store, ownerID string, bus *events.Bus, clock Clock, logger logging.Logger) *Syncer {
	if clock == nil {
		clock = SystemClock
	}
	return &Syncer{
		repos:   repos,
		store:   store,
		ownerID: ownerID,
		bus:     bus,
		clock:   clock,
		logger:  logger.With("module", "syncer"),
	}
}

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Applied int
	Failed  int
	Dead    int
}

// Drain replays live pending changes against the remote store in timestamp
// order. Each confirmed change is removed immediately, so a crash mid-drain
// loses no progress and re-applies at most the change in flight. A failing
// change is kept for the next drain (transient) or parked as dead
// (permanent); in both cases the drain moves on to the rest of the queue.
//
// Returns common.ErrSyncInProgress when another drain is already running.
func (s *Syncer) Drain(ctx context.Context) (DrainResult, error) {
	var res DrainResult

	if !s.draining.CompareAndSwap(false, true) {
		return res, common.ErrSyncInProgress
	}
	defer s.draining.Store(false)

	if err := s.repos.Metadata.SetSyncing(ctx, true); err != nil {
		return res, err
	}
	s.bus.Publish(events.TopicSync)
	defer func() {
		if err := s.repos.Metadata.SetSyncing(ctx, false); err != nil {
			s.logger.Error(ctx, "failed to clear syncing flag", "error", err)
		}
		s.bus.Publish(events.TopicSync)
	}()

	changes, err := s.repos.Pending.List(ctx)
	if err != nil {
		return res, err
	}
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].Timestamp.Before(changes[j].Timestamp)
	})

	for i := range changes {
		c := &changes[i]
		if err := s.apply(ctx, c); err != nil {
			if permanent(err) {
				s.logger.Error(ctx, "change failed permanently, parking as dead",
					"change_id", c.ID, "op", c.Op, "subscriber_id", c.SubscriberID, "error", err)
				if merr := s.repos.Pending.MarkDead(ctx, c.ID); merr != nil {
					return res, merr
				}
				res.Dead++
				continue
			}
			s.logger.Warn(ctx, "change failed, will retry on next drain",
				"change_id", c.ID, "op", c.Op, "attempts", c.Attempts+1, "error", err)
			if berr := s.repos.Pending.BumpAttempts(ctx, c.ID); berr != nil {
				return res, berr
			}
			res.Failed++
			continue
		}
		if err := s.repos.Pending.Remove(ctx, c.ID); err != nil {
			return res, err
		}
		res.Applied++
	}

	s.bus.Publish(events.TopicPending)

	if res.Failed == 0 {
		if err := s.repos.Metadata.SetLastSyncAt(ctx, s.clock.Now()); err != nil {
			return res, err
		}
	}

	s.logger.Info(ctx, "drain finished",
		"applied", res.Applied, "failed", res.Failed, "dead", res.Dead)
	return res, nil
}

func (s *Syncer) apply(ctx context.Context, c *models.PendingChange) error {
	switch c.Op {
	case models.OpUpsert:
		return s.store.Upsert(ctx, s.ownerID, c.Payload)
	case models.OpUpdate:
		return s.store.Update(ctx, c.SubscriberID, c.Patch)
	case models.OpDelete:
		return s.store.Delete(ctx, c.SubscriberID)
	default:
		// only possible when the queue was written by a newer version
		return fmt.Errorf("%w: change op %q", common.ErrUnknownField, c.Op)
	}
}

// permanent reports whether replaying the change can never succeed. Besides
// the remote store's own classification this covers malformed queue entries
// (unknown ops, patches with unknown keys), which fail identically forever.
func permanent(err error) bool {
	return remote.Permanent(err) ||
		errors.Is(err, common.ErrUnknownField) ||
		errors.Is(err, common.ErrValidation)
}

// Refresh replaces the local subscriber cache with the current remote
// snapshot. The swap runs in one transaction so readers never observe a
// half-empty cache.
//
// Refresh must not run over an undrained queue: queued offline mutations are
// not yet reflected remotely and would be invisible in the fresh snapshot
// until the next drain. Sync enforces that ordering.
func (s *Syncer) Refresh(ctx context.Context) error {
	subs, err := s.store.SelectAll(ctx, s.ownerID)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.repos.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return subscribers.NewSQLiteRepository(tx).ReplaceAll(ctx, subs)
	})
	if err != nil {
		return err
	}

	s.bus.Publish(events.TopicSubscribers)
	s.logger.Info(ctx, "local cache refreshed", "subscribers", len(subs))
	return nil
}

// Sync runs a full cycle: drain the queue, then pull the remote snapshot
// into the cache. The snapshot is skipped while changes remain queued, so
// unconfirmed local edits are never shadowed by stale remote rows.
func (s *Syncer) Sync(ctx context.Context) (DrainResult, error) {
	res, err := s.Drain(ctx)
	if err != nil {
		return res, err
	}
	if res.Failed > 0 {
		return res, nil
	}
	return res, s.Refresh(ctx)
}

// Status is the sync state snapshot surfaces render from.
type Status struct {
	Pending    int
	Dead       int
	Syncing    bool
	LastSyncAt *time.Time
}

func (s *Syncer) Status(ctx context.Context) (*Status, error) {
	live, dead, err := s.repos.Pending.Counts(ctx)
	if err != nil {
		return nil, err
	}
	syncing, err := s.repos.Metadata.Syncing(ctx)
	if err != nil {
		return nil, err
	}
	last, err := s.repos.Metadata.LastSyncAt(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{Pending: live, Dead: dead, Syncing: syncing || s.draining.Load(), LastSyncAt: last}, nil
}
