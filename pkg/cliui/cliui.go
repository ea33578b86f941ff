// Package cliui provides reusable terminal UI helpers (spinners, step indicators,
// ranked tables, markdown rendering) for rxrank CLI commands.
package cliui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	SuccessMark  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	KeyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	ValueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	DimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	ScoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// IsTerminal reports whether w is an interactive terminal. Spinners and
// colors are skipped for pipes and files.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Step runs fn and reports it as one line: msg with a ✓ or ✗ and the elapsed
// time. On a terminal a spinner animates in that line while fn runs.
func Step(w io.Writer, msg string, fn func() error) error {
	start := time.Now()
	stop := spin(w, msg)
	err := fn()
	stop()

	fmt.Fprintf(w, "\r  %s %s %s\n", Mark(err), msg,
		StepStyle.Render("("+FormatDuration(time.Since(start))+")"))
	return err
}

// spin animates msg on w until the returned func is called. The func returns
// only after the last frame is written, so callers may write to w afterwards.
func spin(w io.Writer, msg string) (stop func()) {
	if !IsTerminal(w) {
		return func() {}
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for frame := 0; ; frame++ {
			fmt.Fprintf(w, "\r  %s %s", spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]), msg)
			select {
			case <-done:
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		close(done)
		<-finished
	}
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// KeyValue writes an aligned "key: value" line.
func KeyValue(w io.Writer, key string, value any) {
	fmt.Fprintf(w, "  %s %s\n", KeyStyle.Render(key+":"), ValueStyle.Render(fmt.Sprint(value)))
}

// Row is one line of a ranked listing.
type Row struct {
	Label string
	Score float64
	Note  string
}

// RankedList writes rows numbered from 1 with the label padded to the widest
// entry and the score formatted to four decimals.
func RankedList(w io.Writer, rows []Row) {
	width := 0
	for _, r := range rows {
		width = max(width, len(r.Label))
	}

	for i, r := range rows {
		line := fmt.Sprintf("  %s %s  %s",
			DimStyle.Render(fmt.Sprintf("%2d.", i+1)),
			r.Label+strings.Repeat(" ", width-len(r.Label)),
			ScoreStyle.Render(fmt.Sprintf("%.4f", r.Score)),
		)
		if r.Note != "" {
			line += "  " + DimStyle.Render(r.Note)
		}
		fmt.Fprintln(w, line)
	}
}

// RenderMarkdown renders content for the terminal with glamour, wrapped at
// 80 columns. On failure the raw content is returned with the error.
func RenderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
	if err != nil {
		return content, err
	}
	out, err := r.Render(content)
	if err != nil {
		return content, err
	}
	return out, nil
}
