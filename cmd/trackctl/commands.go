package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/kaancat/elportal-forside-design-sub009/internal/config"
	"github.com/kaancat/elportal-forside-design-sub009/internal/kv"
	"github.com/kaancat/elportal-forside-design-sub009/internal/model"
	"github.com/kaancat/elportal-forside-design-sub009/internal/repository"
	"github.com/kaancat/elportal-forside-design-sub009/internal/tracking"
)

// PartnerTotaler reads per-partner totals from the archive.
type PartnerTotaler interface {
	PartnerTotals(ctx context.Context, from, to time.Time) ([]model.PartnerTotal, error)
}

// app holds lazily opened dependencies shared by subcommands.
type app struct {
	cfg     *config.Config
	store   kv.Store
	archive PartnerTotaler
	logger  *slog.Logger
	now     func() time.Time
	closers []func()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "trackctl",
		Short:         "Inspect DinElPortal click tracking state",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	root.AddCommand(dashboardCmd(a))
	root.AddCommand(clickCmd(a))
	root.AddCommand(rateLimitCmd(a))
	root.AddCommand(archiveCmd(a))

	return root
}

func (a *app) init() error {
	if a.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if a.now == nil {
		a.now = time.Now
	}
	return nil
}

func (a *app) kvStore(ctx context.Context) (kv.Store, error) {
	if a.store != nil {
		return a.store, nil
	}

	var (
		store kv.Store
		err   error
	)
	if a.cfg.KVBackend == config.BackendBadger {
		if a.cfg.BadgerDir == "" {
			return nil, errors.New("BADGER_DIR is required to inspect a badger store")
		}
		store, err = kv.OpenBadger(a.cfg.BadgerDir)
	} else {
		store, err = kv.New(ctx, a.cfg.RedisURL)
	}
	if err != nil {
		return nil, err
	}

	a.store = store
	a.closers = append(a.closers, func() { _ = store.Close() })
	return store, nil
}

func (a *app) clickArchive(ctx context.Context) (PartnerTotaler, error) {
	if a.archive != nil {
		return a.archive, nil
	}
	if a.cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required for archive commands")
	}

	repo, err := repository.New(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.archive = repository.NewClickArchive(repo)
	a.closers = append(a.closers, repo.Close)
	return a.archive, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func dashboardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Print today's counters and recent clicks and conversions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.kvStore(cmd.Context())
			if err != nil {
				return err
			}
			metrics, err := tracking.NewDashboard(store, a.logger).Metrics(cmd.Context())
			if err != nil {
				return fmt.Errorf("read dashboard: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), metrics)
		},
	}
}

func clickCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "click <click_id>",
		Short: "Print a stored click record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.kvStore(cmd.Context())
			if err != nil {
				return err
			}
			event, err := tracking.NewClickService(store, nil, a.logger).Get(cmd.Context(), args[0])
			if errors.Is(err, tracking.ErrClickNotFound) {
				return fmt.Errorf("click %s not found (records expire after 90 days)", args[0])
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), event)
		},
	}
}

func rateLimitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ratelimit <ip>",
		Short: "Print the click rate limit window count for an IP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.kvStore(cmd.Context())
			if err != nil {
				return err
			}
			limiter := tracking.NewRateLimiter(store, a.cfg.ClickRateLimit, a.cfg.ClickRateWindow)
			count, err := limiter.Count(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("read rate limit: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d requests in current %s window\n",
				args[0], count, limiter.Limit(), a.cfg.ClickRateWindow)
			return nil
		},
	}
}

func archiveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Query the Postgres click archive",
	}

	totals := &cobra.Command{
		Use:   "totals",
		Short: "Print archived clicks per partner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := cmd.Flags().GetInt("days")
			if err != nil {
				return err
			}
			if days <= 0 {
				return errors.New("--days must be positive")
			}

			archive, err := a.clickArchive(cmd.Context())
			if err != nil {
				return err
			}

			to := a.now().UTC()
			rows, err := archive.PartnerTotals(cmd.Context(), to.AddDate(0, 0, -days), to)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintf(out, "no archived clicks in the last %d days\n", days)
				return nil
			}
			fmt.Fprintf(out, "%-30s %8s  %-20s  %-20s\n", "PARTNER", "CLICKS", "FIRST", "LAST")
			for _, r := range rows {
				fmt.Fprintf(out, "%-30s %8d  %-20s  %-20s\n",
					r.PartnerID, r.Clicks,
					r.FirstSeen.UTC().Format(time.DateTime),
					r.LastSeen.UTC().Format(time.DateTime))
			}
			return nil
		},
	}
	totals.Flags().IntP("days", "d", 30, "Look-back window in days")

	cmd.AddCommand(totals)
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
