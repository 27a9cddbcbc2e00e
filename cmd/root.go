package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pable/go-cr-metrics/internal/clashroyale"
	"github.com/pable/go-cr-metrics/internal/config"
	"github.com/pable/go-cr-metrics/internal/logging"
	"github.com/pable/go-cr-metrics/internal/metrics"
	"github.com/pable/go-cr-metrics/internal/sampler"
	"github.com/pable/go-cr-metrics/internal/storage"
)

var (
	cfgFile string

	v   = viper.New()
	cfg *config.Config
	log = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "crmetrics",
	Short: "Clash Royale card usage and win-rate sampler",
	Long: `Sample public Clash Royale battles (seeds → clans → players → battle logs),
load them into SQLite or Postgres, and report card usage and win rate overall
and per trophy bin.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: finish,
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	pf.String("db", "", "database DSN: a SQLite path or postgres:// URL (default ~/.crmetrics/crmetrics.db)")
	pf.String("data-dir", "", "directory for intermediate artifacts (default data)")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.String("metrics-file", "", "write run metrics to this node-exporter textfile")
	bindFlag(pf.Lookup("db"), config.KeyDSN)
	bindFlag(pf.Lookup("data-dir"), config.KeyDataDir)
	bindFlag(pf.Lookup("log-level"), config.KeyLogLevel)
	bindFlag(pf.Lookup("metrics-file"), config.KeyMetricsFile)

	rootCmd.AddCommand(cardsCmd)
	rootCmd.AddCommand(clansCmd)
	rootCmd.AddCommand(playersCmd)
	rootCmd.AddCommand(battlesCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(retentionCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(sqlCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(dropCmd)
}

// bindFlag lets an explicitly set flag override env and config for key.
func bindFlag(f *pflag.Flag, key string) {
	if err := v.BindPFlag(key, f); err != nil {
		panic(err)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	if err := config.Init(v, cfgFile); err != nil {
		return err
	}
	cfg = config.FromViper(v)
	log, _ = logging.WithRun(logging.Stderr(cfg.LogLevel), cmd.Name())
	return nil
}

func finish(cmd *cobra.Command, args []string) error {
	metrics.LastRunTimestamp.WithLabelValues(cmd.Name()).SetToCurrentTime()
	if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

func openDB() (*storage.DB, error) {
	if storage.DialectFor(cfg.DSN) == storage.SQLite && cfg.DSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := storage.Open(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return db, nil
}

func newClient() (*clashroyale.Client, error) {
	if err := cfg.RequireToken(); err != nil {
		return nil, err
	}
	return clashroyale.NewClient(cfg.Token,
		clashroyale.WithBaseURL(cfg.APIURL),
		clashroyale.WithMinInterval(cfg.Sampling.RequestInterval),
	), nil
}

func newSampler() (*sampler.Sampler, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	s := sampler.New(client, log)
	if cfg.Sampling.Retries > 0 {
		s.Policy.MaxAttempts = cfg.Sampling.Retries
	}
	return s, nil
}
