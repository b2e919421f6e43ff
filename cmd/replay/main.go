package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ixtech/aniota/lic-controller/internal/knowledge"
	"github.com/ixtech/aniota/lic-controller/internal/logging"
	"github.com/ixtech/aniota/lic-controller/internal/replay"
	"github.com/ixtech/aniota/lic-controller/internal/state"
)

// errDrift marks a run where some fixture did not replay as expected.
var errDrift = errors.New("replay drift")

// #region commands
var (
	dbPath        string
	sessionID     string
	fixtureDir    string
	knowledgePath string
	parallel      int
	seed          uint64
	verbose       bool
	jsonOut       bool
)

var rootCmd = &cobra.Command{
	Use:   "replay [fixture.json...]",
	Short: "Replay recorded learner sessions and check for drift",
	Long: `Replays fixtures through a fresh in-memory controller and compares each
selection with the recorded one.

Fixture mode: pass fixture files as arguments or --dir for a directory.
DB mode: --db with --session replays one recorded session directly.

Exit status is 1 when any event drifts and 2 when a run cannot be set up.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&dbPath, "db", "", "session database (DB mode)")
	f.StringVar(&sessionID, "session", "", "session to replay (DB mode)")
	f.Uint64Var(&seed, "seed", 0, "seed the recorded session ran with (DB mode)")
	f.StringVar(&fixtureDir, "dir", "", "directory of fixture JSON files")
	f.StringVar(&knowledgePath, "knowledge", "", "knowledge table (default: built-in)")
	f.IntVarP(&parallel, "parallel", "p", 4, "fixtures replayed at once")
	f.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	f.BoolVar(&jsonOut, "json", false, "print summaries as JSON")
}

func main() {
	err := rootCmd.Execute()
	switch {
	case err == nil:
	case errors.Is(err, errDrift):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

// #endregion commands

// #region run
func run(cmd *cobra.Command, args []string) error {
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{Level: level})
	if err != nil {
		return err
	}
	defer logger.Sync()

	kb := knowledge.Default
	if knowledgePath != "" {
		kb = func() (*knowledge.Base, error) { return knowledge.LoadFile(knowledgePath) }
	}
	base, err := kb()
	if err != nil {
		return err
	}

	fixtures, err := collect(cmd.Context(), args)
	if err != nil {
		return err
	}
	if len(fixtures) == 0 {
		return errors.New("nothing to replay: pass fixtures, --dir, or --db with --session")
	}

	summaries, err := replay.ReplayAll(cmd.Context(), base, fixtures, parallel, logger)
	if err != nil {
		return err
	}
	return report(summaries, logger)
}

func collect(ctx context.Context, args []string) ([]*replay.Fixture, error) {
	var out []*replay.Fixture
	for _, p := range args {
		f, err := replay.LoadFixture(p)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if fixtureDir != "" {
		fs, err := replay.LoadDir(fixtureDir)
		if err != nil {
			return nil, err
		}
		out = append(out, fs...)
	}
	if dbPath != "" {
		if sessionID == "" {
			return nil, errors.New("--db needs --session")
		}
		f, err := fromDB(ctx, dbPath, sessionID, seed)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func fromDB(ctx context.Context, path, id string, seed uint64) (*replay.Fixture, error) {
	store, err := state.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	rec, err := store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := store.ListSelections(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("session %s has no selections", id)
	}
	return replay.FromSelections(rec, rows, seed), nil
}

// #endregion run

// #region report
func report(summaries []replay.ReplaySummary, logger *zap.Logger) error {
	if jsonOut {
		data, err := json.MarshalIndent(summaries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		fmt.Printf("%-40s  %6s  %7s  %8s  %4s  %6s\n", "Fixture", "Events", "Matches", "Mismatch", "Eval", "Errors")
		fmt.Printf("%-40s+-%6s+-%7s+-%8s+-%4s+-%6s\n",
			"----------------------------------------", "------", "-------", "--------", "----", "------")
		for _, s := range summaries {
			fmt.Printf("%-40s  %6d  %7d  %8d  %4d  %6d\n",
				truncate(s.Description, 40), s.TotalEvents, s.Matches, s.Mismatches, s.EvalFailures, s.Errors)
		}
	}

	failed := 0
	for _, s := range summaries {
		if !s.Passed() {
			failed++
			logger.Warn("fixture drifted",
				zap.String("fixture", s.Description),
				zap.Int("mismatches", s.Mismatches),
				zap.Int("eval_failures", s.EvalFailures),
				zap.Int("errors", s.Errors))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d fixtures", errDrift, failed, len(summaries))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// #endregion report
