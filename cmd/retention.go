package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/pable/go-cr-metrics/internal/config"
	"github.com/pable/go-cr-metrics/internal/metrics"
	"github.com/pable/go-cr-metrics/internal/retention"
	"github.com/pable/go-cr-metrics/internal/storage"
)

var retentionSchedule string

// retentionCmd deletes battles past the retention horizon.
var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Delete battles older than the retention horizon and reclaim space",
	Long: `Delete battles older than the horizon (default 90 days) in bounded batches
until none are left, then VACUUM. Card rows of deleted battles go with them.

With --schedule the sweep runs on a cron expression (e.g. "0 4 * * *") until
interrupted.`,
	Args: cobra.NoArgs,
	RunE: runRetention,
}

func init() {
	f := retentionCmd.Flags()
	f.StringVar(&retentionSchedule, "schedule", "", "run on this cron schedule instead of once")
	f.Int("days", 0, "retention horizon in days (default 90)")
	f.Int("batch", 0, "rows deleted per statement (default 10000)")
	bindFlag(f.Lookup("days"), config.KeyRetentionDays)
	bindFlag(f.Lookup("batch"), config.KeyRetentionBatch)
}

func runRetention(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if retentionSchedule == "" {
		return sweep(cmd.Context(), db)
	}

	c := cron.New()
	_, err = c.AddFunc(retentionSchedule, func() {
		if err := sweep(context.Background(), db); err != nil {
			log.Error().Err(err).Msg("scheduled sweep failed")
			return
		}
		metrics.LastRunTimestamp.WithLabelValues("retention").SetToCurrentTime()
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Warn().Err(err).Msg("write metrics")
		}
	})
	if err != nil {
		return fmt.Errorf("bad schedule %q: %w", retentionSchedule, err)
	}
	c.Start()
	log.Info().Str("schedule", retentionSchedule).Msg("retention scheduler started")

	<-cmd.Context().Done()

	log.Info().Msg("shutting down")
	<-c.Stop().Done()
	return nil
}

func sweep(ctx context.Context, db *storage.DB) error {
	s := retention.New(db, log)
	if cfg.Retention.Horizon > 0 {
		s.Horizon = cfg.Retention.Horizon
	}
	if cfg.Retention.BatchSize > 0 {
		s.BatchSize = cfg.Retention.BatchSize
	}
	res, err := s.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("retention sweep: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Done: deleted %d battles older than %s in %d batches\n",
		res.Deleted, res.Cutoff.UTC().Format("2006-01-02 15:04"), res.Batches)
	return nil
}
