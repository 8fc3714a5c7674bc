// Package ui renders terminal output for the codetalk commands. Colors are
// dropped automatically when the output is not a terminal.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// AskPrompt is shown before every question in the ask loop
const AskPrompt = `Ask a question (or type "exit"): `

// Styles groups the styles used across commands
type Styles struct {
	Prompt  lipgloss.Style
	Answer  lipgloss.Style
	Title   lipgloss.Style
	Tree    lipgloss.Style
	Stats   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Faint   lipgloss.Style
}

// NewStyles builds the styles for renderer r
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Prompt: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")),
		Answer: r.NewStyle().
			Foreground(lipgloss.Color("39")).
			TabWidth(lipgloss.NoTabConversion),
		Title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),
		Tree: r.NewStyle().
			Foreground(lipgloss.Color("220")).
			TabWidth(lipgloss.NoTabConversion),
		Stats: r.NewStyle().
			Foreground(lipgloss.Color("86")),
		Success: r.NewStyle().
			Foreground(lipgloss.Color("42")),
		Warning: r.NewStyle().
			Foreground(lipgloss.Color("214")),
		Error: r.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
		Faint: r.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true),
	}
}

// Printer writes styled output. Results go to out, problems to errOut.
type Printer struct {
	out    io.Writer
	errOut io.Writer
	styles Styles
	errSty Styles
}

// NewPrinter creates a Printer with renderers detected from each writer
func NewPrinter(out, errOut io.Writer) *Printer {
	return &Printer{
		out:    out,
		errOut: errOut,
		styles: NewStyles(lipgloss.NewRenderer(out)),
		errSty: NewStyles(lipgloss.NewRenderer(errOut)),
	}
}

// Out returns the result writer
func (p *Printer) Out() io.Writer {
	return p.out
}

// Prompt prints the ask prompt without a trailing newline
func (p *Printer) Prompt() {
	fmt.Fprint(p.out, p.styles.Prompt.Render(AskPrompt))
}

// Title prints a heading line
func (p *Printer) Title(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.styles.Title.Render(fmt.Sprintf(format, args...)))
}

// Tree prints a directory listing
func (p *Printer) Tree(tree string) {
	fmt.Fprint(p.out, renderLines(p.styles.Tree, tree))
}

// Stats prints a summary line
func (p *Printer) Stats(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.styles.Stats.Render(fmt.Sprintf(format, args...)))
}

// Success prints a confirmation line
func (p *Printer) Success(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.styles.Success.Render(fmt.Sprintf(format, args...)))
}

// Warn prints a warning to errOut
func (p *Printer) Warn(format string, args ...interface{}) {
	fmt.Fprintln(p.errOut, p.errSty.Warning.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error to errOut
func (p *Printer) Error(err error) {
	fmt.Fprintln(p.errOut, p.errSty.Error.Render("Error: "+err.Error()))
}

// Field prints an aligned "label: value" pair
func (p *Printer) Field(label string, value interface{}) {
	fmt.Fprintf(p.out, "%s %v\n", p.styles.Faint.Render(fmt.Sprintf("%-16s", label+":")), value)
}

// AnswerWriter returns a writer that colors streamed answer text
func (p *Printer) AnswerWriter() io.Writer {
	return &styledWriter{w: p.out, style: p.styles.Answer}
}

// styledWriter renders each write line by line so streamed fragments keep
// their newlines and gain no padding
type styledWriter struct {
	w     io.Writer
	style lipgloss.Style
}

func (s *styledWriter) Write(b []byte) (int, error) {
	if _, err := io.WriteString(s.w, renderLines(s.style, string(b))); err != nil {
		return 0, err
	}
	return len(b), nil
}

// renderLines styles every non-empty line of text and keeps line breaks
func renderLines(style lipgloss.Style, text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = style.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}
