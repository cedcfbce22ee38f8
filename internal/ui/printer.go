package ui

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/rfxcom/internal/capture"
	"github.com/muurk/rfxcom/internal/logging"
)

// Printer writes UI components to a writer. Commands print through it so
// tests can capture their output.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Printf writes formatted content
func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(h *Header) {
	p.Println(h.SetWidth(p.width).Render())
}

// PrintResult prints a result box
func (p *Printer) PrintResult(r *Result) {
	p.Println(r.SetWidth(p.width).Render())
}

// PrintSummary prints one frame summary line with a direction marker
func (p *Printer) PrintSummary(ev FrameEvent) {
	marker := directionMarker(ev.Direction)
	if ev.Direction == capture.DirectionSent {
		marker = SentStyle.Render(marker)
	}
	p.Printf("%s %s %s\n", ev.Time.Format("15:04:05.000"), marker, SummarizeFrame(ev.Raw))
}

// RunMonitor runs the monitor full screen until the user quits. It returns
// the final model so callers can report totals.
func RunMonitor(m MonitorModel) (MonitorModel, error) {
	defer logging.Suspend()()

	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return m, err
	}
	return final.(MonitorModel), nil
}
