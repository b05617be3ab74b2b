package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/gymdesk/gymsync/internal/client/client"
	"github.com/gymdesk/gymsync/internal/client/events"
	"github.com/gymdesk/gymsync/internal/client/models"
	"github.com/gymdesk/gymsync/internal/client/repositories/activity"
	"github.com/gymdesk/gymsync/internal/client/repositories/pending"
	"github.com/gymdesk/gymsync/internal/client/repositories/subscribers"
	"github.com/gymdesk/gymsync/internal/common"
	"github.com/gymdesk/gymsync/internal/dbx"
	"github.com/gymdesk/gymsync/internal/logging"
	"github.com/gymdesk/gymsync/internal/phone"
)

// autoArchiveAfterDays is how long a subscription may stay expired before the
// read path sweeps it into the archive.
const autoArchiveAfterDays = 30

// OnlineChecker reports the last observed remote reachability. The
// connectivity watcher satisfies this.
type OnlineChecker interface {
	Online() bool
}

// SubscriberService is the single mutation path for subscribers. Every write
// lands in the local store and the pending-change queue in one transaction,
// gets an audit record, and is pushed to the remote store right away when it
// is reachable. Reads are always served locally.
type SubscriberService struct {
	repos    *client.Repositories
	syncer   *Syncer
	online   OnlineChecker
	bus      *events.Bus
	clock    Clock
	logger   logging.Logger
	validate *validator.Validate
}

func NewSubscriberService(repos *client.Repositories, syncer *Syncer, online OnlineChecker, bus *events.Bus, clock Clock, logger logging.Logger) *SubscriberService {
	if clock == nil {
		clock = SystemClock
	}
	return &SubscriberService{
		repos:    repos,
		syncer:   syncer,
		online:   online,
		bus:      bus,
		clock:    clock,
		logger:   logger.With("module", "subscribers"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// txRepos is the transactional view the write path works through.
type txRepos struct {
	subscribers subscribers.Repository
	pending     pending.Repository
	activity    activity.Repository
}

// commit runs fn against transaction-scoped repositories. The local row, the
// queued change, and the audit record land atomically or not at all.
func (s *SubscriberService) commit(ctx context.Context, fn func(ctx context.Context, r txRepos) error) error {
	return dbx.WithTx(ctx, s.repos.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, txRepos{
			subscribers: subscribers.NewSQLiteRepository(tx),
			pending:     pending.NewSQLiteRepository(tx),
			activity:    activity.NewSQLiteRepository(tx),
		})
	})
}

// afterWrite announces the mutation and pushes the queue remotely if the
// store is reachable. A drain already in flight covers the new change, so
// ErrSyncInProgress is not an error here.
func (s *SubscriberService) afterWrite(ctx context.Context) {
	s.bus.Publish(events.TopicSubscribers)
	s.bus.Publish(events.TopicPending)

	if s.online == nil || !s.online.Online() {
		return
	}
	if _, err := s.syncer.Drain(ctx); err != nil && !errors.Is(err, common.ErrSyncInProgress) {
		s.logger.Warn(ctx, "opportunistic drain failed, changes stay queued", "error", err)
	}
}

// List returns the cached subscribers with their status freshly derived.
// Along the way it sweeps long-expired memberships into the archive, so the
// active list never accumulates members who are clearly gone. Archived rows
// are filtered out unless includeArchived is set.
func (s *SubscriberService) List(ctx context.Context, includeArchived bool) ([]models.Subscriber, error) {
	all, err := s.repos.Subscribers.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	result := make([]models.Subscriber, 0, len(all))
	for i := range all {
		sub := &all[i]
		sub.Refresh(now)

		if !sub.IsArchived && sub.Status == models.StatusExpired {
			expiredFor := models.DaysBetween(models.StartOfDay(sub.EndDate), models.StartOfDay(now))
			if expiredFor >= autoArchiveAfterDays {
				if err := s.autoArchive(ctx, sub); err != nil {
					s.logger.Error(ctx, "auto-archive failed", "subscriber_id", sub.ID, "error", err)
				}
			}
		}

		if sub.IsArchived && !includeArchived {
			continue
		}
		result = append(result, *sub)
	}
	return result, nil
}

func (s *SubscriberService) autoArchive(ctx context.Context, sub *models.Subscriber) error {
	prev := models.Snapshot(sub)
	sub.IsArchived = true
	sub.UpdatedAt = s.clock.Now()

	err := s.commit(ctx, func(ctx context.Context, r txRepos) error {
		if err := r.subscribers.Upsert(ctx, sub); err != nil {
			return err
		}
		if err := r.pending.Append(ctx, models.NewUpsert(sub, s.clock.Now())); err != nil {
			return err
		}
		return r.activity.Append(ctx, models.NewActivityLogEntry(sub.ID, sub.Name, models.ActionArchive,
			map[string]string{"reason": "auto", "expired_days": fmt.Sprintf("%d", autoArchiveAfterDays)},
			prev, s.clock.Now()))
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "subscriber auto-archived", "subscriber_id", sub.ID, "name", sub.Name)
	s.afterWrite(ctx)
	return nil
}

// Get returns one subscriber with a freshly derived status.
func (s *SubscriberService) Get(ctx context.Context, id string) (*models.Subscriber, error) {
	sub, err := s.repos.Subscribers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sub.Refresh(s.clock.Now())
	return sub, nil
}

// Search matches by name substring (case-insensitive) or by phone number.
// Phone queries tolerate partial input: typing the last digits of a number
// is enough to find the member.
func (s *SubscriberService) Search(ctx context.Context, query string) ([]models.Subscriber, error) {
	all, err := s.List(ctx, true)
	if err != nil {
		return nil, err
	}

	nameQuery := strings.ToLower(strings.TrimSpace(query))
	phoneQuery := phone.Normalize(query)

	var result []models.Subscriber
	for _, sub := range all {
		if nameQuery != "" && strings.Contains(strings.ToLower(sub.Name), nameQuery) {
			result = append(result, sub)
			continue
		}
		if phoneQuery != "" && phone.SuffixMatch(sub.Phone, phoneQuery) {
			result = append(result, sub)
		}
	}
	return result, nil
}

// checkDuplicatePhone rejects a normalized phone already held by another
// subscriber. selfID excludes the subscriber being edited.
func (s *SubscriberService) checkDuplicatePhone(ctx context.Context, normalized, selfID string) error {
	all, err := s.repos.Subscribers.GetAll(ctx)
	if err != nil {
		return err
	}
	for i := range all {
		if all[i].ID == selfID {
			continue
		}
		if phone.Normalize(all[i].Phone) == normalized {
			return fmt.Errorf("%w: %s already belongs to %q", common.ErrDuplicatePhone, normalized, all[i].Name)
		}
	}
	return nil
}

// Add registers a new subscriber. The phone is canonicalized before the
// duplicate check, so the same number written with Arabic-Indic digits or the
// country code cannot sneak in twice.
func (s *SubscriberService) Add(ctx context.Context, sub *models.Subscriber) error {
	now := s.clock.Now()

	sub.Phone = phone.Normalize(sub.Phone)
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.CreatedAt = now
	sub.UpdatedAt = now
	sub.Refresh(now)

	if err := s.validate.Struct(sub); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	if err := s.checkDuplicatePhone(ctx, sub.Phone, sub.ID); err != nil {
		return err
	}

	err := s.commit(ctx, func(ctx context.Context, r txRepos) error {
		if err := r.subscribers.Upsert(ctx, sub); err != nil {
			return err
		}
		if err := r.pending.Append(ctx, models.NewUpsert(sub, now)); err != nil {
			return err
		}
		return r.activity.Append(ctx, models.NewActivityLogEntry(sub.ID, sub.Name, models.ActionAdd, nil, nil, now))
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "subscriber added", "subscriber_id", sub.ID, "name", sub.Name)
	s.afterWrite(ctx)
	return nil
}

// Update applies a partial field patch. The patch travels to the remote
// store as-is, so only the edited fields are replayed there; the full
// snapshot of the fields before the edit goes to the activity log.
func (s *SubscriberService) Update(ctx context.Context, id string, patch map[string]any) (*models.Subscriber, error) {
	if err := models.ValidatePatch(patch); err != nil {
		return nil, err
	}

	sub, err := s.repos.Subscribers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := models.Snapshot(sub)

	if raw, ok := patch["phone"]; ok {
		str, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: phone must be a string", common.ErrValidation)
		}
		normalized := phone.Normalize(str)
		if err := s.checkDuplicatePhone(ctx, normalized, id); err != nil {
			return nil, err
		}
		patch["phone"] = normalized
	}

	now := s.clock.Now()
	if err := sub.ApplyPatch(patch); err != nil {
		return nil, err
	}
	sub.UpdatedAt = now
	sub.Refresh(now)

	if err := s.validate.Struct(sub); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	// carry the derived bookkeeping along with the user's edit
	patch["updatedAt"] = sub.UpdatedAt
	patch["status"] = sub.Status

	err = s.commit(ctx, func(ctx context.Context, r txRepos) error {
		if err := r.subscribers.Upsert(ctx, sub); err != nil {
			return err
		}
		if err := r.pending.Append(ctx, models.NewUpdate(id, patch, now)); err != nil {
			return err
		}
		return r.activity.Append(ctx, models.NewActivityLogEntry(sub.ID, sub.Name, models.ActionUpdate, nil, prev, now))
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx)
	return sub, nil
}

// mutate loads the subscriber, applies fn, and persists the result as a
// full-row change with an audit record. The lifecycle operations below are
// all shaped like this.
func (s *SubscriberService) mutate(ctx context.Context, id string, action models.ActionType, details map[string]string, fn func(sub *models.Subscriber) error) (*models.Subscriber, error) {
	sub, err := s.repos.Subscribers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := models.Snapshot(sub)

	if err := fn(sub); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	sub.UpdatedAt = now
	sub.Refresh(now)

	err = s.commit(ctx, func(ctx context.Context, r txRepos) error {
		if err := r.subscribers.Upsert(ctx, sub); err != nil {
			return err
		}
		if err := r.pending.Append(ctx, models.NewUpsert(sub, now)); err != nil {
			return err
		}
		return r.activity.Append(ctx, models.NewActivityLogEntry(sub.ID, sub.Name, action, details, prev, now))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "subscriber mutated", "subscriber_id", sub.ID, "action", string(action))
	s.afterWrite(ctx)
	return sub, nil
}

// Renew extends the membership by its plan span and books the payment.
func (s *SubscriberService) Renew(ctx context.Context, id string, paid float64) (*models.Subscriber, error) {
	return s.mutate(ctx, id, models.ActionRenew,
		map[string]string{"amount": fmt.Sprintf("%.2f", paid)},
		func(sub *models.Subscriber) error { return sub.Renew(paid) })
}

// Pause freezes the membership until the given date.
func (s *SubscriberService) Pause(ctx context.Context, id string, until time.Time) (*models.Subscriber, error) {
	return s.mutate(ctx, id, models.ActionPause,
		map[string]string{"until": until.Format(common.DateOnly)},
		func(sub *models.Subscriber) error { return sub.Pause(until, s.clock.Now()) })
}

// Resume lifts a pause early or late, settling the end date either way.
func (s *SubscriberService) Resume(ctx context.Context, id string) (*models.Subscriber, error) {
	return s.mutate(ctx, id, models.ActionResume, nil,
		func(sub *models.Subscriber) error { return sub.Resume(s.clock.Now()) })
}

// Archive hides the subscriber from the active list without deleting data.
func (s *SubscriberService) Archive(ctx context.Context, id string) (*models.Subscriber, error) {
	return s.mutate(ctx, id, models.ActionArchive, nil,
		func(sub *models.Subscriber) error {
			if sub.IsArchived {
				return fmt.Errorf("%w: already archived", common.ErrValidation)
			}
			sub.IsArchived = true
			return nil
		})
}

// Restore brings an archived subscriber back to the active list.
func (s *SubscriberService) Restore(ctx context.Context, id string) (*models.Subscriber, error) {
	return s.mutate(ctx, id, models.ActionRestore, nil,
		func(sub *models.Subscriber) error {
			if !sub.IsArchived {
				return fmt.Errorf("%w: not archived", common.ErrValidation)
			}
			sub.IsArchived = false
			return nil
		})
}

// Delete removes the subscriber for good. Audit entries survive with the
// subscriber reference detached; the snapshot stored on the delete entry is
// what Revert rebuilds the row from.
func (s *SubscriberService) Delete(ctx context.Context, id string) error {
	sub, err := s.repos.Subscribers.GetByID(ctx, id)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	prev := models.Snapshot(sub)

	err = s.commit(ctx, func(ctx context.Context, r txRepos) error {
		if err := r.subscribers.DeleteByID(ctx, id); err != nil {
			return err
		}
		if err := r.pending.Append(ctx, models.NewDelete(id, now)); err != nil {
			return err
		}
		if err := r.activity.Append(ctx, models.NewActivityLogEntry(sub.ID, sub.Name, models.ActionDelete,
			map[string]string{"id": sub.ID}, prev, now)); err != nil {
			return err
		}
		return r.activity.DetachSubscriber(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "subscriber deleted", "subscriber_id", id, "name", sub.Name)
	s.afterWrite(ctx)
	return nil
}

// ActivityLog returns audit entries newest first, up to limit (0 = all).
func (s *SubscriberService) ActivityLog(ctx context.Context, limit int) ([]models.ActivityLogEntry, error) {
	return s.repos.Activity.List(ctx, limit)
}

// Revert undoes the mutation recorded by a log entry, restoring the snapshot
// it carries. Reverting a delete recreates the subscriber; reverting
// anything else overlays the old field values onto the current row. The
// revert itself is logged, so it too can be reverted.
func (s *SubscriberService) Revert(ctx context.Context, logEntryID string) (*models.Subscriber, error) {
	entry, err := s.repos.Activity.GetByID(ctx, logEntryID)
	if err != nil {
		return nil, err
	}
	if len(entry.PreviousData) == 0 {
		return nil, fmt.Errorf("%w: log entry %s carries no snapshot", common.ErrNoSnapshot, logEntryID)
	}

	now := s.clock.Now()

	if entry.ActionType == models.ActionDelete {
		id := entry.ActionDetails["id"]
		if id == "" {
			return nil, fmt.Errorf("%w: delete entry %s lost its subscriber id", common.ErrNoSnapshot, logEntryID)
		}
		sub := &models.Subscriber{ID: id, CreatedAt: now, UpdatedAt: now}
		if err := sub.ApplyPatch(entry.PreviousData); err != nil {
			return nil, err
		}
		sub.Refresh(now)

		err = s.commit(ctx, func(ctx context.Context, r txRepos) error {
			if err := r.subscribers.Upsert(ctx, sub); err != nil {
				return err
			}
			if err := r.pending.Append(ctx, models.NewUpsert(sub, now)); err != nil {
				return err
			}
			return r.activity.Append(ctx, models.NewActivityLogEntry(sub.ID, sub.Name, models.ActionRevert,
				map[string]string{"reverted": string(entry.ActionType)}, nil, now))
		})
		if err != nil {
			return nil, err
		}
		s.afterWrite(ctx)
		return sub, nil
	}

	if entry.SubscriberID == nil {
		return nil, fmt.Errorf("%w: subscriber of log entry %s no longer exists", common.ErrNotFound, logEntryID)
	}
	return s.mutate(ctx, *entry.SubscriberID, models.ActionRevert,
		map[string]string{"reverted": string(entry.ActionType)},
		func(sub *models.Subscriber) error { return sub.ApplyPatch(entry.PreviousData) })
}

// ChangeFeed delivers remote change notifications. The remote store
// satisfies this.
type ChangeFeed interface {
	Subscribe(ctx context.Context, ownerID string, onChange func()) error
}

// StartRealtime subscribes to remote change notifications and refreshes the
// local cache on each one, for as long as ctx lives. Notifications that
// arrive while changes are still queued locally are deferred to the next
// sync rather than letting a stale remote snapshot shadow queued edits.
func (s *SubscriberService) StartRealtime(ctx context.Context, store ChangeFeed, ownerID string) error {
	return store.Subscribe(ctx, ownerID, func() {
		live, _, err := s.repos.Pending.Counts(ctx)
		if err != nil {
			s.logger.Error(ctx, "failed to inspect queue on remote change", "error", err)
			return
		}
		if live > 0 {
			s.logger.Debug(ctx, "remote change deferred, local changes still queued", "pending", live)
			return
		}
		if err := s.syncer.Refresh(ctx); err != nil {
			s.logger.Error(ctx, "failed to refresh after remote change", "error", err)
		}
	})
}
