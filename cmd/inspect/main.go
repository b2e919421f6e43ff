package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ixtech/aniota/lic-controller/internal/quadvec"
	"github.com/ixtech/aniota/lic-controller/internal/state"
)

// #region commands
var (
	dbPath  string
	jsonOut bool
	last    int
)

var rootCmd = &cobra.Command{
	Use:          "inspect",
	Short:        "Inspect recorded learner sessions",
	SilenceUsage: true,
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List the most recent sessions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(func(store *state.Store) error {
			recs, err := store.ListSessions(cmd.Context(), last)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(os.Stderr, "no sessions found")
				return nil
			}
			if jsonOut {
				return printJSON(recs)
			}
			printSessionTable(recs)
			return nil
		})
	},
}

var selectionsCmd = &cobra.Command{
	Use:   "selections <session-id>",
	Short: "Show every selection of a session in event order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *state.Store) error {
			if _, err := store.GetSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			rows, err := store.ListSelections(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(rows)
			}
			printSelectionTable(rows)
			return nil
		})
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary <session-id>",
	Short: "Show the stored summary of an ended session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *state.Store) error {
			sum, err := store.GetSummary(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(sum)
			}
			printSummary(sum)
			return nil
		})
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dbPath, "db", "lic.db", "path to the session database")
	pf.BoolVar(&jsonOut, "json", false, "output as JSON instead of a table")
	sessionsCmd.Flags().IntVar(&last, "last", 20, "show N most recent sessions")

	rootCmd.AddCommand(sessionsCmd, selectionsCmd, summaryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// #endregion commands

// #region tables
func printSessionTable(recs []state.SessionRecord) {
	fmt.Printf("%-12s  %-14s  %-12s  %-20s  %s\n", "Session", "Age Tier", "Subject", "Started", "Ended")
	fmt.Printf("%-12s+-%-14s+-%-12s+-%-20s+-%s\n",
		"------------", "--------------", "------------", "--------------------", "--------------------")
	for _, r := range recs {
		ended := "open"
		if !r.EndedAt.IsZero() {
			ended = r.EndedAt.Format("2006-01-02T15:04:05Z")
		}
		fmt.Printf("%-12s  %-14s  %-12s  %-20s  %s\n",
			shortID(r.ID), r.Profile.AgeTier, orDash(r.Profile.Subject),
			r.StartedAt.Format("2006-01-02T15:04:05Z"), ended)
	}
}

func printSelectionTable(rows []state.SelectionRow) {
	fmt.Printf("%4s  %-10s  %-8s  %-18s  %11s  %6s  %6s  %-8s  %s\n",
		"Seq", "Event", "Label", "Tier", "Coordinate", "Sim", "Frust", "Outcome", "Triggers")
	fmt.Printf("%4s+-%-10s+-%-8s+-%-18s+-%11s+-%6s+-%6s+-%-8s+-%s\n",
		"----", "----------", "--------", "------------------", "-----------", "------", "------", "--------", "--------")
	for _, r := range rows {
		fmt.Printf("%4d  %-10s  %-8s  %-18s  (%.2f,%.2f)  %6.2f  %6.2f  %-8s  %s\n",
			r.Seq, r.Event.Kind, r.Label, r.Tier, r.Vector.Relatedness, r.Vector.Difficulty,
			r.Similarity, r.Frustration, outcome(r), strings.Join(r.Triggers, ","))
	}
}

func printSummary(sum state.Summary) {
	fmt.Printf("Session:      %s\n", sum.SessionID)
	fmt.Printf("Started:      %s\n", sum.StartedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Printf("Ended:        %s\n", sum.EndedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Printf("Events:       %d\n", sum.Events)
	fmt.Printf("Frustration:  %.4f (avg)\n", sum.AvgFrustration)
	fmt.Printf("Recognition:  %.2f\n", sum.RecognitionRate)

	fmt.Printf("\nLabels:\n")
	for _, l := range quadvec.Labels() {
		fmt.Printf("  %-8s %d\n", l, sum.LabelCounts[l])
	}

	fmt.Printf("\nTiers:\n")
	names := make([]string, 0, len(sum.TierCounts))
	for n := range sum.TierCounts {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Printf("  %-18s %d\n", n, sum.TierCounts[n])
	}
}

// #endregion tables

// #region helpers
func withStore(fn func(*state.Store) error) error {
	store, err := state.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func outcome(r state.SelectionRow) string {
	switch {
	case !r.Completed:
		return "pending"
	case r.Success:
		return "progress"
	}
	return "stalled"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// #endregion helpers
