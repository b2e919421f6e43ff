package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ixtech/aniota/lic-controller/internal/event"
	"github.com/ixtech/aniota/lic-controller/internal/session"
)

// #region repl
func runREPL(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
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

	store := a.cfg.Store.Path
	if store == "" {
		store = "memory"
	}
	oracle := a.cfg.Oracle.Addr
	if oracle == "" {
		oracle = "offline"
	}
	fmt.Fprintln(os.Stderr, "Learner interaction core ready.")
	fmt.Fprintf(os.Stderr, "  Session: %s | Store: %s | Oracle: %s\n", id, store, oracle)
	fmt.Fprintln(os.Stderr, "One JSON event per line (or ':quit' to exit):")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(os.Stderr, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == ":quit" || line == "quit" || line == "exit" {
			break
		}

		out, err := handleLine(ctx, a.ctrl, id, line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			a.logger.Warn("line rejected", zap.Error(err))
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		if err := printJSON(out); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	sum, err := a.ctrl.EndSession(context.WithoutCancel(ctx), id)
	if err != nil {
		return err
	}
	return printJSON(sum)
}

// handleLine runs one REPL line: a command or a JSON event.
func handleLine(ctx context.Context, ctrl *session.Controller, id, line string) (any, error) {
	if !strings.HasPrefix(line, ":") {
		raw, err := event.DecodeRaw([]byte(line))
		if err != nil {
			return nil, err
		}
		return ctrl.HandleEvent(ctx, id, raw)
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "query":
		return ctrl.QueryOffline(ctx, id, arg)
	case "score":
		return ctrl.ScoreStatement(ctx, id, arg)
	case "ask":
		return ctrl.Ask(ctx, id, arg)
	case "summary":
		snap, err := ctrl.Snapshot(ctx, id)
		if err != nil {
			return nil, err
		}
		return snap.Summarize(time.Now()), nil
	}
	return nil, fmt.Errorf("unknown command %q", name)
}

// #endregion repl
