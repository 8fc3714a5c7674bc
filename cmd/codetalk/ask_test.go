package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codetalk/internal/app"
	"github.com/dshills/codetalk/internal/history"
	"github.com/dshills/codetalk/internal/indexer"
	"github.com/dshills/codetalk/internal/orchestrator"
	"github.com/dshills/codetalk/internal/scanner"
	"github.com/dshills/codetalk/internal/ui"
	"github.com/dshills/codetalk/internal/vectorstore"
)

// fakeSession answers with the question upper-cased
type fakeSession struct {
	questions []string
	failOn    string
	missing   int // Answers failing with ErrStoreNotFound before success
	builds    int
}

func (f *fakeSession) EnsureIndex(ctx context.Context) (*app.BuildReport, error) {
	f.builds++
	return &app.BuildReport{
		Scan:  &scanner.Result{Tree: "code\n└── a.py\n", TotalTokens: 4},
		Stats: &indexer.Statistics{DocumentsIndexed: 1},
	}, nil
}

func (f *fakeSession) Answer(ctx context.Context, question string, hist *history.History, out io.Writer) (*orchestrator.Result, error) {
	if f.missing > 0 {
		f.missing--
		return nil, vectorstore.ErrStoreNotFound
	}
	f.questions = append(f.questions, question)
	if question == f.failOn {
		return nil, errors.New("model unavailable")
	}
	answer := strings.ToUpper(question)
	_, _ = io.WriteString(out, answer)
	hist.Append(history.RoleHuman, question)
	hist.Append(history.RoleAI, answer)
	return &orchestrator.Result{Answer: answer}, nil
}

func (f *fakeSession) NewHistory() *history.History {
	return history.New(20)
}

func runLoop(t *testing.T, s session, input string) (string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := askLoop(context.Background(), s, ui.NewPrinter(&out, &errOut), strings.NewReader(input))
	require.NoError(t, err)
	return out.String(), errOut.String()
}

func TestAskLoop(t *testing.T) {
	s := &fakeSession{}
	out, errOut := runLoop(t, s, "what is foo?\n\n   \nand bar?\nEXIT\nnever asked\n")

	assert.Equal(t, []string{"what is foo?", "and bar?"}, s.questions)
	assert.Contains(t, out, "WHAT IS FOO?\n")
	assert.Contains(t, out, "AND BAR?\n")
	assert.Equal(t, 5, strings.Count(out, ui.AskPrompt))
	assert.Empty(t, errOut)
}

func TestAskLoop_EndOfInput(t *testing.T) {
	s := &fakeSession{}
	out, _ := runLoop(t, s, "only question")

	assert.Equal(t, []string{"only question"}, s.questions)
	assert.Contains(t, out, "ONLY QUESTION")
}

func TestAskLoop_ErrorsDoNotEndSession(t *testing.T) {
	s := &fakeSession{failOn: "bad"}
	out, errOut := runLoop(t, s, "bad\ngood\nexit\n")

	assert.Equal(t, []string{"bad", "good"}, s.questions)
	assert.Contains(t, errOut, "Error: model unavailable")
	assert.Contains(t, out, "GOOD")
}

func TestAskLoop_RebuildsMissingStore(t *testing.T) {
	s := &fakeSession{missing: 1}
	out, errOut := runLoop(t, s, "what is foo?\nexit\n")

	assert.Equal(t, 1, s.builds)
	assert.Equal(t, []string{"what is foo?"}, s.questions)
	assert.Contains(t, errOut, "Vector store doesn't exist")
	assert.Contains(t, out, "└── a.py")
	assert.Contains(t, out, "WHAT IS FOO?")
}

func TestAskLoop_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &fakeSession{}
	var out bytes.Buffer
	err := askLoop(ctx, s, ui.NewPrinter(&out, io.Discard), strings.NewReader("q\n"))
	require.NoError(t, err)
	assert.Empty(t, s.questions)
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"ask", "scan", "clear", "status", "serve", "version"}, names)

	scan, _, err := root.Find([]string{"rebuild"})
	require.NoError(t, err)
	assert.Equal(t, "scan", scan.Name())
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "Version: dev")
	assert.Contains(t, out.String(), "Build Mode:")
}

func TestFormatMB(t *testing.T) {
	assert.Equal(t, "0.00 MB", formatMB(0))
	assert.Equal(t, "1.25 MB", formatMB(1.254))
}
