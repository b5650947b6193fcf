package main

import (
	"context"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xthestreams/current-rms-watcher/internal/db"
	"github.com/xthestreams/current-rms-watcher/internal/store"
	"github.com/xthestreams/current-rms-watcher/internal/webhook"
	"github.com/xthestreams/current-rms-watcher/pkg/currentrms"
)

var (
	syncFrom       string
	syncTo         string
	syncWindowDays int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Backfill the opportunity mirror from the Current RMS API",
	Long:  "Pages through opportunities in the given window and upserts them into the local mirror. Safe to re-run; the same window never duplicates rows.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		client, err := requireClient()
		if err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		from, to, err := syncWindow()
		if err != nil {
			return err
		}

		opps, err := fetchAllOpportunities(ctx, client, from, to)
		if err != nil {
			return err
		}
		zap.L().Info("fetched opportunities",
			zap.Int("count", len(opps)),
			zap.Time("from", from),
			zap.Time("to", to),
		)

		n, err := mirrorOpportunities(ctx, st, opps)
		if err != nil {
			return err
		}

		zap.L().Info("sync complete", zap.Int64("upserted", n))
		return nil
	},
}

func syncWindow() (from, to time.Time, err error) {
	days := syncWindowDays
	if days == 0 {
		days = cfg.Sync.WindowDays
	}
	now := time.Now().UTC()
	from = now.AddDate(0, 0, -days)
	to = now.AddDate(0, 0, days)

	if syncFrom != "" {
		from, err = time.Parse("2006-01-02", syncFrom)
		if err != nil {
			return
		}
	}
	if syncTo != "" {
		to, err = time.Parse("2006-01-02", syncTo)
		if err != nil {
			return
		}
	}
	return
}

// fetchAllOpportunities pages through the API concurrently. The first page
// establishes the total; remaining pages fan out under errgroup with the
// configured concurrency.
func fetchAllOpportunities(ctx context.Context, client currentrms.Client, from, to time.Time) ([]currentrms.Opportunity, error) {
	pageSize := cfg.Sync.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	first, err := client.ListOpportunities(ctx, currentrms.ListOptions{
		Page:     1,
		PerPage:  pageSize,
		FromDate: &from,
		ToDate:   &to,
	})
	if err != nil {
		return nil, err
	}

	all := first.Opportunities
	total := first.Meta.TotalRowCount
	if total <= len(all) {
		return all, nil
	}

	pages := (total + pageSize - 1) / pageSize

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Sync.Concurrency, 1))

	for page := 2; page <= pages; page++ {
		g.Go(func() error {
			res, err := client.ListOpportunities(gctx, currentrms.ListOptions{
				Page:     page,
				PerPage:  pageSize,
				FromDate: &from,
				ToDate:   &to,
			})
			if err != nil {
				return err
			}
			mu.Lock()
			all = append(all, res.Opportunities...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}

// mirrorOpportunities writes the fetched set. Postgres gets a COPY-based
// bulk upsert; other drivers fall back to row-at-a-time upserts.
func mirrorOpportunities(ctx context.Context, st store.Store, opps []currentrms.Opportunity) (int64, error) {
	pg, ok := st.(*store.PostgresStore)
	if !ok {
		var n int64
		for i := range opps {
			if err := st.UpsertOpportunity(ctx, webhook.ToModel(&opps[i])); err != nil {
				return n, err
			}
			n++
		}
		return n, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(opps))
	for i := range opps {
		m := webhook.ToModel(&opps[i])
		rows = append(rows, []any{
			m.ID, m.Subject, m.OrganisationName, m.OwnerName,
			m.StartsAt, m.EndsAt, m.StateName,
			m.ChargeTotal.Float(), m.ProvisionalCostTotal.Float(),
			m.PredictedCostTotal.Float(), m.ActualCostTotal.Float(),
			m.UpdatedAt, now,
		})
	}

	return db.BulkUpsert(ctx, pg.Pool(), db.UpsertConfig{
		Table: "opportunities",
		Columns: []string{
			"id", "subject", "organisation_name", "owner_name",
			"starts_at", "ends_at", "state_name",
			"charge_total", "provisional_cost_total",
			"predicted_cost_total", "actual_cost_total",
			"updated_at", "mirrored_at",
		},
		ConflictKeys: []string{"id"},
	}, rows)
}

func init() {
	syncCmd.Flags().StringVar(&syncFrom, "from", "", "window start (YYYY-MM-DD)")
	syncCmd.Flags().StringVar(&syncTo, "to", "", "window end (YYYY-MM-DD)")
	syncCmd.Flags().IntVar(&syncWindowDays, "window-days", 0, "days either side of today when --from/--to are not set")
	rootCmd.AddCommand(syncCmd)
}
