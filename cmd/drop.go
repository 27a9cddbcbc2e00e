package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-cr-metrics/internal/storage"
)

var dropForce bool

// dropCmd deletes the metrics database.
var dropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Delete the metrics database",
	Long: `Permanently delete all stored data. A SQLite database file is removed;
on Postgres every crmetrics table is dropped. Re-run the pipeline afterwards to rebuild.`,
	Args: cobra.NoArgs,
	RunE: runDrop,
}

func init() {
	dropCmd.Flags().BoolVarP(&dropForce, "force", "f", false, "skip confirmation prompt")
}

func runDrop(cmd *cobra.Command, args []string) error {
	if !dropForce {
		fmt.Fprintf(os.Stderr, "This will permanently delete: %s\n", cfg.DSN)
		fmt.Fprintf(os.Stderr, "Re-run with --force to confirm.\n")
		return nil
	}

	if storage.DialectFor(cfg.DSN) == storage.Postgres {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.DropAll(cmd.Context()); err != nil {
			return fmt.Errorf("drop tables: %w", err)
		}
		fmt.Fprintln(os.Stdout, "Dropped all tables.")
		return nil
	}

	if err := os.Remove(cfg.DSN); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintln(os.Stdout, "Database does not exist, nothing to drop.")
			return nil
		}
		return fmt.Errorf("remove database: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(cfg.DSN + suffix)
	}
	fmt.Fprintf(os.Stdout, "Deleted: %s\n", cfg.DSN)
	return nil
}
