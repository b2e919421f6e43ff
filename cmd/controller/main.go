package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ixtech/aniota/lic-controller/internal/codec"
	"github.com/ixtech/aniota/lic-controller/internal/config"
	"github.com/ixtech/aniota/lic-controller/internal/gate"
	"github.com/ixtech/aniota/lic-controller/internal/knowledge"
	"github.com/ixtech/aniota/lic-controller/internal/logging"
	"github.com/ixtech/aniota/lic-controller/internal/orchestrator"
	"github.com/ixtech/aniota/lic-controller/internal/session"
	"github.com/ixtech/aniota/lic-controller/internal/signals"
	"github.com/ixtech/aniota/lic-controller/internal/state"
	"github.com/ixtech/aniota/lic-controller/internal/truth"
)

// #region flags
var (
	configPath string
	dbPath     string
	oracleAddr string
	ageTier    string
	subject    string
	goals      []string
	learnerRef string
)

// #endregion flags

// #region commands
var rootCmd = &cobra.Command{
	Use:   "lic-controller",
	Short: "Learner interaction core",
	Long: `Reads learner events as JSON lines and answers each with the next
learning action (Expand, Explore, Extend or Review) and its rationale.

Lines starting with ':' are commands:
  :query <text>   look up the offline knowledge base
  :score <text>   score a statement against the knowledge base
  :ask <text>     ask the oracle, falling back to offline knowledge
  :summary        show the session so far
  :quit           end the session`,
	SilenceUsage: true,
	RunE:         runREPL,
}

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Look up a question in the offline knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(cmd.Context(), func(ctx context.Context, a *app, id string) (any, error) {
			return a.ctrl.QueryOffline(ctx, id, strings.Join(args, " "))
		})
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score <statement>",
	Short: "Score how well a statement agrees with the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(cmd.Context(), func(ctx context.Context, a *app, id string) (any, error) {
			return a.ctrl.ScoreStatement(ctx, id, strings.Join(args, " "))
		})
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the oracle, falling back to offline knowledge",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(cmd.Context(), func(ctx context.Context, a *app, id string) (any, error) {
			return a.ctrl.Ask(ctx, id, strings.Join(args, " "))
		})
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "lic.yaml", "config file (missing file uses defaults)")
	pf.StringVar(&dbPath, "db", "", "sqlite database (overrides config; \"-\" keeps sessions in memory)")
	pf.StringVar(&oracleAddr, "oracle", "", "oracle gRPC address (overrides config)")
	pf.StringVar(&ageTier, "age-tier", "elementary", "learner grade tier")
	pf.StringVar(&subject, "subject", "", "session subject")
	pf.StringSliceVar(&goals, "goal", nil, "learner goal (repeatable)")
	pf.StringVar(&learnerRef, "learner", "", "opaque learner reference")

	rootCmd.AddCommand(queryCmd, scoreCmd, askCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// #endregion commands

// #region wiring

// app is a wired controller and the resources it owns.
type app struct {
	cfg    *config.Config
	ctrl   *session.Controller
	store  *state.Store
	oracle *codec.OracleClient
	logger *zap.Logger
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Store.Path = dbPath
	}
	if cfg.Store.Path == "-" {
		cfg.Store.Path = ""
	}
	if oracleAddr != "" {
		cfg.Oracle.Addr = oracleAddr
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	kb, err := loadKnowledge(cfg.Knowledge.Path)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	deps := session.Deps{
		Knowledge: kb,
		Scorer:    truth.NewScorer(kb, cfg.TruthConfig()),
		Selector:  orchestrator.NewSelector(cfg.SelectorConfig(), gate.NewGate(cfg.GateConfig(), logger), nil, logger),
		Signals:   signals.NewProducer(cfg.Frustration),
	}
	if cfg.Store.Path != "" {
		store, err := state.NewStore(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		a.store = store
		deps.Recorder = store
	}
	if cfg.Oracle.Addr != "" {
		client, err := codec.NewOracleClient(cfg.Oracle.Addr)
		if err != nil {
			a.close()
			return nil, err
		}
		a.oracle = client
		deps.Oracle = client
	}

	ctrl, err := session.NewController(cfg.SessionConfig(), deps, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.ctrl = ctrl
	return a, nil
}

func loadKnowledge(path string) (*knowledge.Base, error) {
	if path == "" {
		return knowledge.Default()
	}
	return knowledge.LoadFile(path)
}

func (a *app) profile() (state.Profile, error) {
	tier, err := knowledge.ParseGradeLevel(ageTier)
	if err != nil {
		return state.Profile{}, err
	}
	p := state.Profile{LearnerRef: learnerRef, AgeTier: tier, Subject: subject}
	for _, g := range goals {
		p.Goals = append(p.Goals, gate.Goal(strings.ToLower(g)))
	}
	return p, nil
}

func (a *app) close() {
	if a.ctrl != nil {
		a.ctrl.Close(context.Background())
	}
	if a.oracle != nil {
		a.oracle.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.logger != nil {
		a.logger.Sync()
	}
}

// oneShot runs fn inside a throwaway session and prints its result.
func oneShot(ctx context.Context, fn func(context.Context, *app, string) (any, error)) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	p, err := a.profile()
	if err != nil {
		return err
	}
	id, err := a.ctrl.StartSession(ctx, p, nil)
	if err != nil {
		return err
	}
	out, err := fn(ctx, a, id)
	if err != nil {
		return err
	}
	return printJSON(out)
}

// #endregion wiring

// #region helpers
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// #endregion helpers
