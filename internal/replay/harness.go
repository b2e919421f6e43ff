package replay

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ixtech/aniota/lic-controller/internal/eval"
	"github.com/ixtech/aniota/lic-controller/internal/gate"
	"github.com/ixtech/aniota/lic-controller/internal/knowledge"
	"github.com/ixtech/aniota/lic-controller/internal/orchestrator"
	"github.com/ixtech/aniota/lic-controller/internal/session"
	"github.com/ixtech/aniota/lic-controller/internal/state"
)

// #region types

// ReplayConfig bundles session, selector, gate, and eval configs for a replay run.
type ReplayConfig struct {
	Session  session.Config
	Selector orchestrator.SelectorConfig
	Gate     gate.GateConfig
	Eval     eval.EvalConfig
}

// DefaultReplayConfig returns the controller defaults for every stage.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		Session:  session.DefaultConfig(),
		Selector: orchestrator.DefaultSelectorConfig(),
		Gate:     gate.DefaultGateConfig(),
		Eval:     eval.DefaultEvalConfig(),
	}
}

// ReplayResult captures the outcome of replaying one event.
type ReplayResult struct {
	Seq      int
	Action   string // "match" | "mismatch" | "eval_fail" | "error"
	Reason   string
	Response session.Response
	Eval     eval.EvalResult
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	Description  string
	TotalEvents  int
	Matches      int
	Mismatches   int
	EvalFailures int
	Errors       int
	Session      state.Summary
}

// Passed reports whether every event matched and passed eval.
func (s ReplaySummary) Passed() bool {
	return s.Mismatches == 0 && s.EvalFailures == 0 && s.Errors == 0
}

// #endregion types

// #region replay

// Replay runs a fixture's events through a fresh in-memory controller. Each
// response is checked by the eval harness and compared with the fixture's
// expected step for its seq, if any. The error is reserved for failures to
// set the run up; per-event problems land in the results.
func Replay(ctx context.Context, kb *knowledge.Base, f *Fixture, logger *zap.Logger) ([]ReplayResult, state.Summary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config := f.Config.ToReplayConfig()

	g := gate.NewGate(config.Gate, logger)
	sel := orchestrator.NewSelector(config.Selector, g, nil, logger)
	var n atomic.Int64
	ctrl, err := session.NewController(config.Session, session.Deps{
		Knowledge: kb,
		Selector:  sel,
		NewID:     func() string { return fmt.Sprintf("replay-%d", n.Add(1)) },
	}, logger)
	if err != nil {
		return nil, state.Summary{}, fmt.Errorf("replay: %w", err)
	}

	sc := config.Session.Session
	id, err := ctrl.StartSession(ctx, f.Profile, &sc)
	if err != nil {
		return nil, state.Summary{}, fmt.Errorf("replay: %w", err)
	}

	expected := make(map[int]FixtureExpectedStep, len(f.Expected))
	for _, e := range f.Expected {
		expected[e.Seq] = e
	}
	harness := eval.NewEvalHarness(config.Eval)

	results := make([]ReplayResult, 0, len(f.Events))
	for seq, raw := range f.Events {
		resp, err := ctrl.HandleEvent(ctx, id, raw)
		if err != nil {
			results = append(results, ReplayResult{Seq: seq, Action: "error", Reason: err.Error()})
			if ctx.Err() != nil {
				break
			}
			continue
		}

		// 1. Eval
		ev := harness.Run(resp)
		r := ReplayResult{Seq: seq, Response: resp, Eval: ev, Action: "match"}
		if !ev.Passed {
			r.Action, r.Reason = "eval_fail", ev.Reason
			results = append(results, r)
			continue
		}

		// 2. Compare
		if exp, ok := expected[seq]; ok {
			if reason := compare(exp, resp); reason != "" {
				r.Action, r.Reason = "mismatch", reason
			}
		}
		results = append(results, r)
	}

	// 3. History
	if snap, err := ctrl.Snapshot(ctx, id); err == nil {
		if hist := harness.RunHistory(snap.History); !hist.Passed {
			results = append(results, ReplayResult{Seq: len(f.Events), Action: "eval_fail", Reason: hist.Reason, Eval: hist})
		}
	}

	sum, err := ctrl.EndSession(context.WithoutCancel(ctx), id)
	if err != nil {
		return results, sum, fmt.Errorf("replay: %w", err)
	}
	return results, sum, nil
}

// compare returns why resp does not match exp, or "" when it does. Escape
// labels come from a seeded draw, so only the tier is compared for them.
func compare(exp FixtureExpectedStep, resp session.Response) string {
	if exp.Tier != "" && exp.Tier != resp.Rationale.TierName {
		return fmt.Sprintf("seq %d: expected tier %s, got %s", exp.Seq, exp.Tier, resp.Rationale.TierName)
	}
	escape := orchestrator.Tier(resp.Rationale.Tier).IsEscape()
	if exp.Label != "" && !escape && exp.Label != string(resp.Label) {
		return fmt.Sprintf("seq %d: expected label %s, got %s", exp.Seq, exp.Label, resp.Label)
	}
	if exp.FollowUp != nil && *exp.FollowUp != resp.FollowUp {
		return fmt.Sprintf("seq %d: expected follow_up=%v, got %v", exp.Seq, *exp.FollowUp, resp.FollowUp)
	}
	return ""
}

// Summarize computes aggregate stats from replay results.
func Summarize(description string, results []ReplayResult, final state.Summary) ReplaySummary {
	s := ReplaySummary{
		Description: description,
		TotalEvents: final.Events,
		Session:     final,
	}
	for _, r := range results {
		switch r.Action {
		case "match":
			s.Matches++
		case "mismatch":
			s.Mismatches++
		case "eval_fail":
			s.EvalFailures++
		case "error":
			s.Errors++
		}
	}
	return s
}

// #endregion replay

// #region replay-all

// ReplayAll replays fixtures concurrently, at most limit at a time (limit
// <= 0 means no limit). Summaries keep the order of fixtures. The first
// setup error cancels the remaining runs.
func ReplayAll(ctx context.Context, kb *knowledge.Base, fixtures []*Fixture, limit int, logger *zap.Logger) ([]ReplaySummary, error) {
	summaries := make([]ReplaySummary, len(fixtures))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, f := range fixtures {
		g.Go(func() error {
			results, sum, err := Replay(gctx, kb, f, logger)
			if err != nil {
				return fmt.Errorf("fixture %q: %w", f.Description, err)
			}
			summaries[i] = Summarize(f.Description, results, sum)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// #endregion replay-all
