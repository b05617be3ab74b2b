package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gymdesk/gymsync/internal/client/client"
	"github.com/gymdesk/gymsync/internal/client/config"
	"github.com/gymdesk/gymsync/internal/client/connectivity"
	"github.com/gymdesk/gymsync/internal/client/events"
	"github.com/gymdesk/gymsync/internal/client/models"
	"github.com/gymdesk/gymsync/internal/client/services"
	"github.com/gymdesk/gymsync/internal/common"
	"github.com/gymdesk/gymsync/internal/logging"
	"github.com/gymdesk/gymsync/internal/remote"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles everything a command needs. One-shot commands probe the remote
// store once at startup; the watch command runs the full connectivity
// watcher instead.
type app struct {
	cfg     *config.Config
	logger  logging.Logger
	repos   *client.Repositories
	store   *remote.PostgresStore
	watcher *connectivity.Watcher
	bus     *events.Bus
	syncer  *services.Syncer
	service *services.SubscriberService
}

// probedOnline is the reachability snapshot one-shot commands use: a single
// ping at startup, not a background watcher.
type probedOnline bool

func (p probedOnline) Online() bool { return bool(p) }

func newApp(ctx context.Context) (*app, error) {
	cfg := config.LoadConfig()
	if cfg.OwnerID == "" {
		return nil, errors.New("owner id is not configured (flag -o, env GYMSYNC_OWNER_ID, or config.json)")
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	repos, err := client.InitDatabase(ctx, cfg.LocalDBPath)
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}

	store, err := remote.NewPostgresStore(cfg.RemoteDSN, logger)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	online := probedOnline(store.Ping(pingCtx) == nil)
	cancel()

	bus := events.NewBus()
	syncer := services.NewSyncer(repos, store, cfg.OwnerID, bus, services.SystemClock, logger)
	service := services.NewSubscriberService(repos, syncer, online, bus, services.SystemClock, logger)
	watcher := connectivity.NewWatcher(store, cfg.OnlineCheckInterval, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		repos:   repos,
		store:   store,
		watcher: watcher,
		bus:     bus,
		syncer:  syncer,
		service: service,
	}, nil
}

func (a *app) Close() {
	_ = a.store.Close()
	_ = a.repos.Close()
}

// subscriptionMonths maps a plan to its calendar length.
func subscriptionMonths(t models.SubscriptionType) (int, error) {
	switch t {
	case models.SubscriptionMonthly:
		return 1, nil
	case models.SubscriptionQuarterly:
		return 3, nil
	case models.SubscriptionSemiAnnual:
		return 6, nil
	case models.SubscriptionAnnual:
		return 12, nil
	default:
		return 0, fmt.Errorf("unknown subscription type %q", t)
	}
}

func printSubscriber(s *models.Subscriber) {
	paused := ""
	if s.IsPaused && s.PausedUntil != nil {
		paused = " (paused until " + s.PausedUntil.Format(common.DateOnly) + ")"
	}
	owing := ""
	if s.HasPendingPayment() {
		owing = fmt.Sprintf("  owes %.2f", s.RemainingAmount)
	}
	fmt.Printf("%-36s  %-20s  %-12s  %-11s  %s..%s  %s%s%s\n",
		s.ID, s.Name, s.Phone, s.Status,
		s.StartDate.Format(common.DateOnly), s.EndDate.Format(common.DateOnly),
		s.SubscriptionType, paused, owing)
}

var rootCmd = &cobra.Command{
	Use:   "gymsync",
	Short: "Offline-first gym subscriber manager",
	Long: "gymsync keeps a durable local copy of the gym's subscriber list, queues\n" +
		"every change while offline, and pushes the queue to the hosted store\n" +
		"whenever it is reachable.",
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Apply remote store migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.RunMigrations(cmd.Context()); err != nil {
			return fmt.Errorf("migrating remote store: %w", err)
		}
		fmt.Println("Remote store is up to date.")
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List subscribers",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		subs, err := a.service.List(cmd.Context(), all)
		if err != nil {
			return err
		}
		if len(subs) == 0 {
			fmt.Println("No subscribers.")
			return nil
		}
		for i := range subs {
			printSubscriber(&subs[i])
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search by name or phone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		subs, err := a.service.Search(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(subs) == 0 {
			fmt.Println("No matches.")
			return nil
		}
		for i := range subs {
			printSubscriber(&subs[i])
		}
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a new subscriber",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		phoneNum, _ := cmd.Flags().GetString("phone")
		subType, _ := cmd.Flags().GetString("type")
		startStr, _ := cmd.Flags().GetString("start")
		paid, _ := cmd.Flags().GetFloat64("paid")
		owed, _ := cmd.Flags().GetFloat64("owed")
		captain, _ := cmd.Flags().GetString("captain")

		start := models.StartOfDay(time.Now())
		if startStr != "" {
			var err error
			start, err = time.Parse(common.DateOnly, startStr)
			if err != nil {
				return fmt.Errorf("invalid start date %q, want YYYY-MM-DD", startStr)
			}
		}
		months, err := subscriptionMonths(models.SubscriptionType(subType))
		if err != nil {
			return err
		}

		sub := &models.Subscriber{
			Name:             name,
			Phone:            phoneNum,
			SubscriptionType: models.SubscriptionType(subType),
			StartDate:        start,
			EndDate:          start.AddDate(0, months, 0),
			PaidAmount:       paid,
			RemainingAmount:  owed,
			Captain:          captain,
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.service.Add(cmd.Context(), sub); err != nil {
			return err
		}
		fmt.Printf("Added %s (%s), member until %s\n", sub.Name, sub.ID, sub.EndDate.Format(common.DateOnly))
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Edit subscriber fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch := map[string]any{}
		if cmd.Flags().Changed("name") {
			v, _ := cmd.Flags().GetString("name")
			patch["name"] = v
		}
		if cmd.Flags().Changed("phone") {
			v, _ := cmd.Flags().GetString("phone")
			patch["phone"] = v
		}
		if cmd.Flags().Changed("captain") {
			v, _ := cmd.Flags().GetString("captain")
			patch["captain"] = v
		}
		if cmd.Flags().Changed("owed") {
			v, _ := cmd.Flags().GetFloat64("owed")
			patch["remainingAmount"] = v
		}
		if len(patch) == 0 {
			return errors.New("nothing to change, pass at least one of --name, --phone, --captain, --owed")
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		sub, err := a.service.Update(cmd.Context(), args[0], patch)
		if err != nil {
			return err
		}
		printSubscriber(sub)
		return nil
	},
}

var renewCmd = &cobra.Command{
	Use:   "renew ID",
	Short: "Renew a subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, _ := cmd.Flags().GetFloat64("amount")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		sub, err := a.service.Renew(cmd.Context(), args[0], amount)
		if err != nil {
			return err
		}
		fmt.Printf("Renewed %s until %s\n", sub.Name, sub.EndDate.Format(common.DateOnly))
		return nil
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause ID",
	Short: "Pause a subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		untilStr, _ := cmd.Flags().GetString("until")
		until, err := time.Parse(common.DateOnly, untilStr)
		if err != nil {
			return fmt.Errorf("invalid pause end %q, want YYYY-MM-DD", untilStr)
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		sub, err := a.service.Pause(cmd.Context(), args[0], until)
		if err != nil {
			return err
		}
		fmt.Printf("Paused %s until %s, membership now runs to %s\n",
			sub.Name, untilStr, sub.EndDate.Format(common.DateOnly))
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume ID",
	Short: "Resume a paused subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		sub, err := a.service.Resume(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Resumed %s, membership now runs to %s\n", sub.Name, sub.EndDate.Format(common.DateOnly))
		return nil
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive ID",
	Short: "Archive a subscriber",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		sub, err := a.service.Archive(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Archived %s\n", sub.Name)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore ID",
	Short: "Restore an archived subscriber",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		sub, err := a.service.Restore(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Restored %s\n", sub.Name)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a subscriber permanently",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.service.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("Deleted. The activity log keeps the record; `gymsync revert` can undo this.")
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push queued changes and refresh the local cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.syncer.Sync(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Applied %d change(s), %d failed, %d parked as dead.\n", res.Applied, res.Failed, res.Dead)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.syncer.Status(cmd.Context())
		if err != nil {
			return err
		}

		pingCtx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
		online := a.store.Ping(pingCtx) == nil
		cancel()

		mode := "offline"
		if online {
			mode = "online"
		}
		last := "never"
		if st.LastSyncAt != nil {
			last = st.LastSyncAt.Local().Format(time.RFC1123)
		}
		fmt.Printf("Mode:        %s\n", mode)
		fmt.Printf("Pending:     %d change(s)\n", st.Pending)
		fmt.Printf("Dead:        %d change(s)\n", st.Dead)
		fmt.Printf("Last sync:   %s\n", last)
		if st.Syncing {
			fmt.Println("A sync is running right now.")
		}
		return nil
	},
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the activity log",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.service.ActivityLog(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No activity.")
			return nil
		}
		for _, e := range entries {
			details := ""
			for k, v := range e.ActionDetails {
				details += " " + k + "=" + v
			}
			revertable := " "
			if len(e.PreviousData) > 0 {
				revertable = "*"
			}
			fmt.Printf("%s %s  %-8s %-20s%s  (%s)\n",
				revertable, e.CreatedAt.Local().Format("2006-01-02 15:04"),
				e.ActionType, e.SubscriberName, details, e.ID)
		}
		fmt.Println("\nEntries marked * can be reverted with `gymsync revert ENTRY_ID`.")
		return nil
	},
}

var revertCmd = &cobra.Command{
	Use:   "revert ENTRY_ID",
	Short: "Undo the change recorded by an activity log entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		sub, err := a.service.Revert(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Reverted. %s is back to the recorded state.\n", sub.Name)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the sync daemon",
	Long: "Keeps the local store in step with the remote one: probes connectivity,\n" +
		"drains the queue on every offline-to-online transition, listens for\n" +
		"remote change notifications, and optionally syncs on a schedule.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a.watcher.OnOnline(func() {
			if _, err := a.syncer.Sync(ctx); err != nil && !errors.Is(err, common.ErrSyncInProgress) {
				a.logger.Error(ctx, "sync on reconnect failed", "error", err)
			}
		})
		go a.watcher.Run(ctx)

		if err := a.service.StartRealtime(ctx, a.store, a.cfg.OwnerID); err != nil {
			a.logger.Warn(ctx, "realtime notifications unavailable, relying on polling", "error", err)
		}

		if a.cfg.SyncSchedule != "" {
			sched, err := services.NewScheduler(a.cfg.SyncSchedule, a.syncer, a.watcher, a.logger)
			if err != nil {
				return fmt.Errorf("invalid sync schedule %q: %w", a.cfg.SyncSchedule, err)
			}
			sched.Start()
			defer sched.Stop()
		}

		fmt.Println("Watching. Ctrl-C to stop.")
		<-ctx.Done()
		return nil
	},
}

var deadCmd = &cobra.Command{
	Use:   "dead",
	Short: "List changes parked after permanent failures",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		dead, err := a.repos.Pending.ListDead(cmd.Context())
		if err != nil {
			return err
		}
		if len(dead) == 0 {
			fmt.Println("No dead changes.")
			return nil
		}
		for _, c := range dead {
			fmt.Printf("%s  %-6s subscriber=%s attempts=%s queued=%s\n",
				c.ID, c.Op, c.SubscriberID, strconv.Itoa(c.Attempts),
				c.Timestamp.Local().Format(time.RFC1123))
		}
		return nil
	},
}

func init() {
	listCmd.Flags().BoolP("all", "a", false, "include archived subscribers")

	addCmd.Flags().String("name", "", "subscriber name")
	addCmd.Flags().String("phone", "", "phone number")
	addCmd.Flags().String("type", "monthly", "subscription type: monthly, quarterly, semi-annual, annual")
	addCmd.Flags().String("start", "", "start date YYYY-MM-DD (default today)")
	addCmd.Flags().Float64("paid", 0, "amount paid")
	addCmd.Flags().Float64("owed", 0, "amount still owed")
	addCmd.Flags().String("captain", "", "assigned captain")
	_ = addCmd.MarkFlagRequired("name")
	_ = addCmd.MarkFlagRequired("phone")

	updateCmd.Flags().String("name", "", "new name")
	updateCmd.Flags().String("phone", "", "new phone number")
	updateCmd.Flags().String("captain", "", "new captain")
	updateCmd.Flags().Float64("owed", 0, "new remaining amount")

	renewCmd.Flags().Float64("amount", 0, "payment amount")
	pauseCmd.Flags().String("until", "", "pause end date YYYY-MM-DD")
	_ = pauseCmd.MarkFlagRequired("until")

	logCmd.Flags().Int("limit", 50, "maximum entries to show (0 = all)")

	rootCmd.AddCommand(initCmd, listCmd, searchCmd, addCmd, updateCmd, renewCmd, pauseCmd,
		resumeCmd, archiveCmd, restoreCmd, deleteCmd, syncCmd, statusCmd,
		logCmd, revertCmd, watchCmd, deadCmd)
}
