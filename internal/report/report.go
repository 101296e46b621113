// Package report renders operator-facing output: command confirmations,
// host notifications and listings.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/agentic-research/ttsync/internal/journal"
	"github.com/agentic-research/ttsync/internal/reconcile"
	"github.com/agentic-research/ttsync/internal/savefile"
)

// Printer writes styled lines to one writer.
type Printer struct {
	w io.Writer

	label   lipgloss.Style
	done    lipgloss.Style
	warn    lipgloss.Style
	muted   lipgloss.Style
	failure lipgloss.Style
}

// ColorEnabled reports whether w is a terminal and color was not disabled.
func ColorEnabled(w io.Writer, noColor bool) bool {
	if noColor {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// New returns a printer for w. Without color every style renders plain
// text.
func New(w io.Writer, color bool) *Printer {
	p := &Printer{w: w}
	if !color {
		plain := lipgloss.NewStyle()
		p.label, p.done, p.warn, p.muted, p.failure = plain, plain, plain, plain, plain
		return p
	}
	r := lipgloss.NewRenderer(w)
	p.label = r.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	p.done = r.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	p.warn = r.NewStyle().Foreground(lipgloss.Color("11"))
	p.muted = r.NewStyle().Foreground(lipgloss.Color("8"))
	p.failure = r.NewStyle().Foreground(lipgloss.Color("9"))
	return p
}

func (p *Printer) line(s string) {
	_, _ = fmt.Fprintln(p.w, s)
}

// Info prints a highlighted label followed by a message, e.g.
// "updated: A1B2C3 (Board) with tag 'lua/board.lua'".
func (p *Printer) Info(label, format string, args ...any) {
	p.line(p.label.Render(label) + " " + fmt.Sprintf(format, args...))
}

// Done prints a completion line.
func (p *Printer) Done(msg string) {
	p.line(p.done.Render(msg))
}

func (p *Printer) Warn(format string, args ...any) {
	p.line(p.warn.Render("warning: " + fmt.Sprintf(format, args...)))
}

// Muted prints game output, such as print() calls.
func (p *Printer) Muted(msg string) {
	p.line(p.muted.Render(msg))
}

func (p *Printer) Failure(msg string) {
	p.line(p.failure.Render(msg))
}

// Outcome prints every change and warning of a pass and whether it was
// committed.
func (p *Printer) Outcome(out *reconcile.Outcome) {
	for _, c := range out.Changes {
		p.Info(c.Kind.String()+":", "%s", c)
	}
	for _, w := range out.Warnings {
		p.Warn("%s", w)
	}
	switch {
	case out.Committed:
		p.Done("reloaded save!")
	case !out.Changed:
		p.Info("unchanged:", "%s", out.SavePath)
	}
}

// Objects lists objects with their tags.
func (p *Printer) Objects(objects []*savefile.Object) {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "GUID\tNAME\tTAGS")
	for _, o := range objects {
		name := o.Nickname
		if name == "" {
			name = o.Name
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", o.GUID, name, strings.Join(o.Tags, ", "))
	}
	_ = tw.Flush()
}

// Journal lists journal entries, newest first.
func (p *Printer) Journal(entries []journal.Entry) {
	for _, e := range entries {
		p.Info(e.Kind+":", "%s %s (%s)", e.At.Local().Format(time.DateTime), e.SaveName, e.SavePath)
		for _, c := range e.Changes {
			p.line("  " + c)
		}
	}
}
