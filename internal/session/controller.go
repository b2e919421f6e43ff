package session

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ixtech/aniota/lic-controller/internal/codec"
	"github.com/ixtech/aniota/lic-controller/internal/event"
	"github.com/ixtech/aniota/lic-controller/internal/gate"
	"github.com/ixtech/aniota/lic-controller/internal/knowledge"
	"github.com/ixtech/aniota/lic-controller/internal/orchestrator"
	"github.com/ixtech/aniota/lic-controller/internal/pattern"
	"github.com/ixtech/aniota/lic-controller/internal/quadvec"
	"github.com/ixtech/aniota/lic-controller/internal/signals"
	"github.com/ixtech/aniota/lic-controller/internal/state"
	"github.com/ixtech/aniota/lic-controller/internal/truth"
)

// #endregion

// #region controller-struct

// Controller owns all live sessions. Sessions run in parallel; events of one
// session are handled one at a time in arrival order.
type Controller struct {
	config   Config
	kb       *knowledge.Base
	scorer   *truth.Scorer
	selector *orchestrator.Selector
	signals  *signals.Producer
	recorder Recorder
	oracle   Oracle
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string

	mu       sync.Mutex
	sessions map[string]*live
	ended    map[string]struct{}
}

// live is one session. Everything below sem is guarded by holding its slot.
type live struct {
	sem    chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	config         SessionConfig
	subjectCovered bool

	state  state.SessionState
	memory *pattern.Memory
	pcg    *rand.PCG
}

// #endregion

// #region constructor

// NewController wires a controller. Missing collaborators get defaults; a
// nil Recorder keeps sessions in memory only and a nil Oracle sends every
// question to the offline knowledge base.
func NewController(config Config, deps Deps, logger *zap.Logger) (*Controller, error) {
	if deps.Knowledge == nil {
		return nil, errors.New("new controller: knowledge base is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if config.Session.RecognitionThreshold <= 0 {
		config.Session.RecognitionThreshold = def.Session.RecognitionThreshold
	}
	if config.Session.RecentWindow <= 0 {
		config.Session.RecentWindow = def.Session.RecentWindow
	}
	if config.OracleTimeout <= 0 {
		config.OracleTimeout = def.OracleTimeout
	}

	c := &Controller{
		config:   config,
		kb:       deps.Knowledge,
		scorer:   deps.Scorer,
		selector: deps.Selector,
		signals:  deps.Signals,
		recorder: deps.Recorder,
		oracle:   deps.Oracle,
		logger:   logger.Named("session"),
		now:      deps.Now,
		newID:    deps.NewID,
		sessions: make(map[string]*live),
		ended:    make(map[string]struct{}),
	}
	if c.scorer == nil {
		c.scorer = truth.NewScorer(c.kb, truth.DefaultConfig())
	}
	if c.selector == nil {
		c.selector = orchestrator.NewSelector(orchestrator.DefaultSelectorConfig(), nil, nil, logger)
	}
	if c.signals == nil {
		c.signals = signals.NewProducer(signals.DefaultFrustrationConfig())
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	return c, nil
}

// #endregion

// #region start

// StartSession opens a session for a learner. cfg nil uses the controller's
// session defaults.
func (c *Controller) StartSession(ctx context.Context, profile state.Profile, cfg *SessionConfig) (string, error) {
	if profile.AgeTier != "" && !profile.AgeTier.Valid() {
		return "", fmt.Errorf("start session: age tier %q: %w", profile.AgeTier, ErrInvalidProfile)
	}
	profile.Subject = strings.ToLower(strings.TrimSpace(profile.Subject))

	sc := c.config.Session
	if cfg != nil {
		if cfg.RecognitionThreshold > 0 {
			sc.RecognitionThreshold = cfg.RecognitionThreshold
		}
		if cfg.RecentWindow > 0 {
			sc.RecentWindow = cfg.RecentWindow
		}
		sc.Seed = cfg.Seed
	}
	seed := sc.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	id := c.newID()
	now := c.now()
	st := state.NewSessionState(id, profile, now)

	if c.recorder != nil {
		err := c.recorder.StartSession(ctx, state.SessionRecord{ID: id, Profile: st.Profile, StartedAt: now})
		if err != nil {
			return "", fmt.Errorf("start session: %w", err)
		}
	}

	covered := c.kb.Len() > 0
	if profile.Subject != "" {
		covered = c.kb.Coverage(profile.Subject).ConceptCount > 0
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &live{
		sem:            make(chan struct{}, 1),
		ctx:            sctx,
		cancel:         cancel,
		config:         sc,
		subjectCovered: covered,
		state:          st,
		memory:         pattern.NewMemory(sc.RecognitionThreshold).WithClock(c.now),
		pcg:            rand.NewPCG(seed, seed),
	}

	c.mu.Lock()
	c.sessions[id] = s
	c.mu.Unlock()

	c.logger.Info("session started",
		zap.String("session", id),
		zap.String("age_tier", string(st.Profile.AgeTier)),
		zap.String("subject", profile.Subject),
		zap.Uint64("seed", seed))
	return id, nil
}

// #endregion

// #region handle-event

// HandleEvent runs one learner event through the pipeline and returns the
// next action. Nothing in the session changes unless the selection is
// recorded; a cancelled or failed record leaves the session as it was.
func (c *Controller) HandleEvent(ctx context.Context, id string, raw event.RawEvent) (Response, error) {
	s, err := c.lookup(id)
	if err != nil {
		return Response{}, err
	}
	if err := s.acquire(ctx); err != nil {
		return Response{}, fmt.Errorf("handle event %s: %w", id, err)
	}
	defer s.release()
	if s.closing() {
		return Response{}, fmt.Errorf("handle event %s: %w", id, ErrSessionClosed)
	}

	rec, err := event.Normalize(raw)
	if err != nil {
		return Response{}, fmt.Errorf("handle event %s: %w", id, err)
	}
	if n := len(s.state.History); n > 0 && rec.At.Before(s.state.History[n-1].At) {
		return Response{}, fmt.Errorf("handle event %s: %w: timestamp %s precedes previous event at %s",
			id, event.ErrMalformedEvent, rec.At.Format(time.RFC3339Nano), s.state.History[n-1].At.Format(time.RFC3339Nano))
	}
	vec, err := quadvec.Encode(rec)
	if err != nil {
		return Response{}, fmt.Errorf("handle event %s: %w", id, err)
	}

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()
	budgetCtx := opCtx
	if c.config.HandleTimeout > 0 {
		var cancelBudget context.CancelFunc
		budgetCtx, cancelBudget = context.WithTimeout(opCtx, c.config.HandleTimeout)
		defer cancelBudget()
	}

	staged := s.state.Clone()
	src := *s.pcg
	rng := rand.New(&src)

	report := s.memory.Match(vec)
	obs := signals.Observation{
		Record:   rec,
		Vector:   vec,
		Pattern:  report,
		Baseline: staged.Baseline,
		Jitter:   staged.Jitter,
	}
	sig := c.signals.Produce(obs)
	staged.Frustration = c.signals.NextFrustration(staged.Frustration, obs, sig)
	staged.Jitter = staged.Jitter.Add(rec)
	if report.Recognized {
		staged.Recognitions++
	}

	var completes *state.Outcome
	recent, done, ok := orchestrator.Complete(staged.Recent, sig.Engagement, staged.Baseline.Mean)
	staged.Recent = recent
	if ok && len(staged.History) > 0 {
		staged.Success = staged.Success.Record(done.Label, done.Success)
		completes = &state.Outcome{
			SelectionID: staged.History[len(staged.History)-1].SelectionID,
			Success:     done.Success,
			Engagement:  sig.Engagement,
		}
	}
	staged.Baseline = staged.Baseline.Add(sig.Engagement)

	pasteWindow := c.selector.Config().PasteWindow
	staged.PrunePastes(rec.At, pasteWindow)

	in := orchestrator.Input{
		Record:         rec,
		Vector:         vec,
		Pattern:        report,
		Goals:          staged.Profile.Goals,
		AgeTier:        staged.Profile.AgeTier,
		Subject:        staged.Profile.Subject,
		SubjectCovered: s.subjectCovered,
		Recent:         staged.Recent,
		Frustration:    staged.Frustration,
		PatternsSeen:   staged.Recognitions,
		Pastes:         staged.Pastes,
		Success:        staged.Success,
	}
	if budgetCtx.Err() != nil {
		return c.afterCancel(ctx, s, id, in, rng)
	}

	sel, err := c.selector.Select(in, rng)
	if err != nil {
		c.logger.Error("selection failed", zap.String("session", id), zap.Error(err))
		return Response{}, fmt.Errorf("handle event %s: %w", id, err)
	}

	seq := len(staged.History)
	selID := c.newID()
	srec := state.SelectionRecord{
		ID:          selID,
		SessionID:   id,
		Seq:         seq,
		Event:       rec,
		Vector:      vec,
		Label:       sel.Label,
		Tier:        sel.Tier,
		Triggers:    sel.Triggers,
		Message:     sel.Message.Text,
		FollowUp:    sel.FollowUp,
		Degraded:    sel.Degraded,
		VetoedTiers: sel.VetoedTiers,
		Vetoes:      ruleIDs(sel.Report.Violations),
		Similarity:  report.Similarity,
		Recognized:  report.Recognized,
		Engagement:  sig.Engagement,
		Frustration: staged.Frustration,
		CreatedAt:   c.now(),
		Completes:   completes,
	}
	if err := c.record(budgetCtx, srec); err != nil {
		if budgetCtx.Err() != nil {
			return c.afterCancel(ctx, s, id, in, rng)
		}
		return Response{}, fmt.Errorf("handle event %s: %w", id, err)
	}

	// Recorded: commit.
	if orchestrator.IsExternalPaste(rec) {
		staged.Pastes = append(staged.Pastes, rec.At)
	}
	staged.PushRecent(orchestrator.Recent{Label: sel.Label, Tier: sel.Tier}, s.config.RecentWindow)
	staged.History = append(staged.History, state.HistoryEntry{
		Seq:         seq,
		SelectionID: selID,
		Event:       rec,
		Vector:      vec,
		Label:       sel.Label,
		Tier:        sel.Tier,
		Triggers:    sel.Triggers,
		Message:     sel.Message.Text,
		Similarity:  report.Similarity,
		Recognized:  report.Recognized,
		Engagement:  sig.Engagement,
		Frustration: staged.Frustration,
		At:          rec.At,
	})
	staged.LastTier = sel.Tier
	staged.FrustrationSum += staged.Frustration
	s.memory.Ingest(vec)
	s.state = staged
	*s.pcg = src

	return responseFor(selID, sel, report, staged.Frustration), nil
}

// afterCancel decides what an aborted event returns. An ended session or a
// cancelled caller gets an error; an exhausted budget gets the timeout escape.
// The session is left untouched either way.
func (c *Controller) afterCancel(ctx context.Context, s *live, id string, in orchestrator.Input, rng *rand.Rand) (Response, error) {
	if s.ctx.Err() != nil {
		return Response{}, fmt.Errorf("handle event %s: %w", id, ErrSessionClosed)
	}
	if err := ctx.Err(); err != nil {
		return Response{}, fmt.Errorf("handle event %s: %w", id, err)
	}
	sel := c.selector.TimeoutSelection(in, rng)
	c.logger.Warn("event budget exceeded",
		zap.String("session", id),
		zap.Duration("budget", c.config.HandleTimeout),
		zap.String("label", string(sel.Label)))
	return responseFor("", sel, in.Pattern, in.Frustration), nil
}

func (c *Controller) record(ctx context.Context, rec state.SelectionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.recorder == nil {
		return nil
	}
	return c.recorder.RecordSelection(ctx, rec)
}

// #endregion

// #region queries

// QueryOffline answers from the offline knowledge base at the learner's tier.
func (c *Controller) QueryOffline(ctx context.Context, id, text string) (knowledge.Response, error) {
	p, err := c.profile(ctx, id)
	if err != nil {
		return knowledge.Response{}, fmt.Errorf("query offline: %w", err)
	}
	return c.kb.Query(text, p.Subject, p.AgeTier), nil
}

// ScoreStatement rates how well a statement agrees with the knowledge base.
func (c *Controller) ScoreStatement(ctx context.Context, id, text string) (truth.Result, error) {
	if _, err := c.profile(ctx, id); err != nil {
		return truth.Result{}, fmt.Errorf("score statement: %w", err)
	}
	return c.scorer.Score(text), nil
}

// Ask sends a question to the oracle and falls back to the offline knowledge
// base when there is no oracle or it fails.
func (c *Controller) Ask(ctx context.Context, id, text string) (Answer, error) {
	p, err := c.profile(ctx, id)
	if err != nil {
		return Answer{}, fmt.Errorf("ask: %w", err)
	}

	if c.oracle != nil {
		octx, cancel := context.WithTimeout(ctx, c.config.OracleTimeout)
		ans, err := c.oracle.Ask(octx, codec.Question{Text: text, Subject: p.Subject, AgeTier: string(p.AgeTier)})
		cancel()
		if err == nil {
			return Answer{Text: ans.Text, Source: "oracle", Confidence: ans.Confidence}, nil
		}
		if ctx.Err() != nil {
			return Answer{}, fmt.Errorf("ask: %w", ctx.Err())
		}
		c.logger.Warn("oracle unavailable, answering offline", zap.String("session", id), zap.Error(err))
	}

	resp := c.kb.Query(text, p.Subject, p.AgeTier)
	return Answer{Text: resp.RenderedText, Source: "offline", Confidence: resp.Confidence, Offline: &resp}, nil
}

// profile reads the learner profile under the session slot.
func (c *Controller) profile(ctx context.Context, id string) (state.Profile, error) {
	s, err := c.lookup(id)
	if err != nil {
		return state.Profile{}, err
	}
	if err := s.acquire(ctx); err != nil {
		return state.Profile{}, err
	}
	defer s.release()
	if s.closing() {
		return state.Profile{}, fmt.Errorf("session %s: %w", id, ErrSessionClosed)
	}
	return s.state.Profile, nil
}

// Snapshot returns a copy of a session's state.
func (c *Controller) Snapshot(ctx context.Context, id string) (state.SessionState, error) {
	s, err := c.lookup(id)
	if err != nil {
		return state.SessionState{}, err
	}
	if err := s.acquire(ctx); err != nil {
		return state.SessionState{}, err
	}
	defer s.release()
	if s.closing() {
		return state.SessionState{}, fmt.Errorf("session %s: %w", id, ErrSessionClosed)
	}
	return s.state.Clone(), nil
}

// PatternStats returns the session's per-dimension pattern statistics.
func (c *Controller) PatternStats(ctx context.Context, id string) (pattern.DimensionStats, error) {
	s, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()
	if s.closing() {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionClosed)
	}
	return s.memory.Stats(), nil
}

// #endregion

// #region end

// EndSession closes a session and returns its summary. Any event still in
// flight is cancelled first and commits nothing. Once cancelled the session
// refuses all other operations, even if ctx ends before the close completes;
// calling EndSession again finishes it. A closed session is dropped from the
// controller.
func (c *Controller) EndSession(ctx context.Context, id string) (state.Summary, error) {
	s, err := c.lookup(id)
	if err != nil {
		return state.Summary{}, err
	}
	s.cancel()
	if err := s.acquire(ctx); err != nil {
		return state.Summary{}, fmt.Errorf("end session %s: %w", id, err)
	}
	defer s.release()
	if s.state.Closed {
		return state.Summary{}, fmt.Errorf("end session %s: %w", id, ErrSessionClosed)
	}

	s.state.Closed = true
	sum := s.state.Summarize(c.now())
	c.forget(id)
	c.logger.Info("session ended",
		zap.String("session", id),
		zap.Int("events", sum.Events),
		zap.Float64("avg_frustration", sum.AvgFrustration),
		zap.Float64("recognition_rate", sum.RecognitionRate))

	if c.recorder != nil {
		if err := c.recorder.EndSession(ctx, sum); err != nil {
			return sum, fmt.Errorf("end session %s: %w", id, err)
		}
	}
	return sum, nil
}

// Close ends every open session. Errors are logged, not returned.
func (c *Controller) Close(ctx context.Context) {
	c.mu.Lock()
	ids := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		if _, err := c.EndSession(ctx, id); err != nil && !errors.Is(err, ErrSessionClosed) {
			c.logger.Warn("close session", zap.String("session", id), zap.Error(err))
		}
	}
}

// #endregion

// #region helpers

func (c *Controller) lookup(id string) (*live, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	if !ok {
		if _, gone := c.ended[id]; gone {
			return nil, fmt.Errorf("session %s: %w", id, ErrSessionClosed)
		}
		return nil, fmt.Errorf("session %s: %w", id, ErrUnknownSession)
	}
	return s, nil
}

// forget releases an ended session's state, keeping only its id.
func (c *Controller) forget(id string) {
	c.mu.Lock()
	delete(c.sessions, id)
	c.ended[id] = struct{}{}
	c.mu.Unlock()
}

// closing reports whether EndSession has begun on s.
func (s *live) closing() bool {
	return s.state.Closed || s.ctx.Err() != nil
}

func (s *live) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *live) release() {
	<-s.sem
}

func responseFor(selID string, sel orchestrator.Selection, report pattern.Report, frustration float64) Response {
	vetoed := make([]string, len(sel.VetoedTiers))
	for i, t := range sel.VetoedTiers {
		vetoed[i] = t.String()
	}
	return Response{
		SelectionID: selID,
		Label:       sel.Label,
		Message:     sel.Message.Text,
		Rationale: Rationale{
			Tier:        int(sel.Tier),
			TierName:    sel.Tier.String(),
			Triggers:    sel.Triggers,
			Coordinate:  [2]float64{sel.Coordinate.Relatedness, sel.Coordinate.Difficulty},
			Degraded:    sel.Degraded,
			VetoedTiers: vetoed,
			Warnings:    ruleIDs(sel.Report.Warnings),
			Similarity:  report.Similarity,
			Recognized:  report.Recognized,
			Frustration: frustration,
		},
		FollowUp: sel.FollowUp,
	}
}

func ruleIDs(fs []gate.Finding) []string {
	if len(fs) == 0 {
		return nil
	}
	ids := make([]string, len(fs))
	for i, f := range fs {
		ids[i] = f.RuleID
	}
	return ids
}

// #endregion
