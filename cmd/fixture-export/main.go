package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ixtech/aniota/lic-controller/internal/replay"
	"github.com/ixtech/aniota/lic-controller/internal/state"
)

// #region main
var (
	dbPath    string
	sessionID string
	outPath   string
	limit     int
	seed      uint64
)

var rootCmd = &cobra.Command{
	Use:   "fixture-export",
	Short: "Export a recorded session as a replay fixture",
	Long: `Reads a session's events and selections from the database and writes a
fixture that expects every recorded selection. Without --session the most
recently started session is exported.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd)
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&dbPath, "db", "lic.db", "session database")
	f.StringVar(&sessionID, "session", "", "session to export (default: most recent)")
	f.StringVar(&outPath, "out", "", "output fixture JSON path")
	f.IntVar(&limit, "limit", 0, "export only the first N events (0 = all)")
	f.Uint64Var(&seed, "seed", 0, "seed the session ran with")
	_ = rootCmd.MarkFlagRequired("out")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// #endregion main

// #region extract
func run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	store, err := state.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	var rec state.SessionRecord
	if sessionID == "" {
		recs, err := store.ListSessions(ctx, 1)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			return fmt.Errorf("no sessions in %s", dbPath)
		}
		rec = recs[0]
	} else if rec, err = store.GetSession(ctx, sessionID); err != nil {
		return err
	}

	rows, err := store.ListSelections(ctx, rec.ID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("session %s has no selections", rec.ID)
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}

	f := replay.FromSelections(rec, rows, seed)
	if err := f.Write(outPath); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %d events from session %s to %s\n", len(rows), rec.ID, outPath)
	return nil
}

// #endregion extract
