package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/codetalk/internal/app"
	"github.com/dshills/codetalk/internal/history"
	"github.com/dshills/codetalk/internal/orchestrator"
	"github.com/dshills/codetalk/internal/ui"
	"github.com/dshills/codetalk/internal/vectorstore"
)

// maxQuestionSize bounds one input line
const maxQuestionSize = 1024 * 1024

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask",
		Short: "Start an interactive question session",
		Long: `Start an interactive session. The index is built first if none exists.
Type a question and press enter; type "exit" or press Ctrl-D to quit.`,
		Args: cobra.NoArgs,
		RunE: runAsk,
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, _, err := openApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	p := printer(cmd)
	if !a.Store().Exists() {
		p.Warn("Vector store doesn't exist. Creating one now...")
	}
	if err := ensureIndex(cmd.Context(), a, p); err != nil {
		return err
	}

	return askLoop(cmd.Context(), a, p, cmd.InOrStdin())
}

// session is what the ask loop needs from the application
type session interface {
	EnsureIndex(ctx context.Context) (*app.BuildReport, error)
	Answer(ctx context.Context, question string, hist *history.History, out io.Writer) (*orchestrator.Result, error)
	NewHistory() *history.History
}

func ensureIndex(ctx context.Context, s session, p *ui.Printer) error {
	report, err := s.EnsureIndex(ctx)
	if err != nil {
		return err
	}
	if report != nil {
		printBuildReport(p, report)
	}
	return nil
}

// askLoop reads questions from in until "exit" or end of input. Errors for a
// single question are reported and the loop continues.
func askLoop(ctx context.Context, s session, p *ui.Printer, in io.Reader) error {
	hist := s.NewHistory()
	lines := bufio.NewScanner(in)
	lines.Buffer(make([]byte, 0, 4096), maxQuestionSize)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		p.Prompt()
		if !lines.Scan() {
			fmt.Fprintln(p.Out())
			return lines.Err()
		}

		question := strings.TrimSpace(lines.Text())
		if question == "" {
			continue
		}
		if strings.EqualFold(question, "exit") {
			return nil
		}

		if err := answer(ctx, s, p, question, hist); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.Error(err)
		}
	}
}

// answer streams one answer, rebuilding the index once if it vanished
func answer(ctx context.Context, s session, p *ui.Printer, question string, hist *history.History) error {
	_, err := s.Answer(ctx, question, hist, p.AnswerWriter())
	if errors.Is(err, vectorstore.ErrStoreNotFound) {
		p.Warn("Vector store doesn't exist. Creating one now...")
		if err := ensureIndex(ctx, s, p); err != nil {
			return err
		}
		_, err = s.Answer(ctx, question, hist, p.AnswerWriter())
	}
	fmt.Fprintln(p.Out())
	return err
}
