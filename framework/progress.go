package framework

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorPrimary = lipgloss.Color("39")
	colorSuccess = lipgloss.Color("42")
	colorWarning = lipgloss.Color("220")
	colorError   = lipgloss.Color("196")
	colorDim     = lipgloss.Color("241")

	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			Border(lipgloss.DoubleBorder(), true, false).
			BorderForeground(colorPrimary).
			Padding(0, 2)

	stepStyle = lipgloss.NewStyle().
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(colorSuccess)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	failStyle = lipgloss.NewStyle().
			Foreground(colorError)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Width(11)
)

// Progress prints the short human-readable outcome lines for each pipeline
// stage. It is safe for concurrent use; both solvers report through the same
// printer.
type Progress struct {
	mu  sync.Mutex
	out io.Writer
}

// NewProgress builds a printer writing to out (stdout when nil).
func NewProgress(out io.Writer) *Progress {
	if out == nil {
		out = os.Stdout
	}
	return &Progress{out: out}
}

// DiscardProgress is a printer that swallows everything.
func DiscardProgress() *Progress {
	return &Progress{out: io.Discard}
}

func (p *Progress) println(s string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, s)
}

// Banner prints a section title.
func (p *Progress) Banner(title string) {
	p.println("\n" + bannerStyle.Render(title) + "\n")
}

// Step prints "[n/total] label".
func (p *Progress) Step(n, total int, label string) {
	p.println(stepStyle.Render(fmt.Sprintf("[%d/%d]", n, total)) + " " + label)
}

// OK prints a success line.
func (p *Progress) OK(format string, args ...any) {
	p.println("  " + okStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

// Warn prints a degraded-result line.
func (p *Progress) Warn(format string, args ...any) {
	p.println("  " + warnStyle.Render("⚠ "+fmt.Sprintf(format, args...)))
}

// Fail prints a failure line.
func (p *Progress) Fail(format string, args ...any) {
	p.println("  " + failStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

// Info prints a dimmed detail line.
func (p *Progress) Info(format string, args ...any) {
	p.println("  " + dimStyle.Render(fmt.Sprintf(format, args...)))
}

// Field prints an aligned "label value" pair.
func (p *Progress) Field(label, value string) {
	p.println("  " + labelStyle.Render(strings.TrimSpace(label)+":") + " " + value)
}

// Text prints s unstyled.
func (p *Progress) Text(s string) {
	p.println(s)
}
