// Package output renders command results as styled terminal text,
// plain markdown, or JSON. Mode auto picks text on a TTY and markdown
// everywhere else, so piped output stays readable.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Mode selects how results are rendered.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
)

// ValidMode reports whether s names a known mode.
func ValidMode(s string) bool {
	switch Mode(s) {
	case ModeAuto, ModeText, ModeMarkdown, ModeJSON:
		return true
	}
	return false
}

// Styles holds the lipgloss styles used across commands.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style

	// Status glyphs, pre-styled. Call String() to render.
	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
	StatusSkipped lipgloss.Style
	StatusRunning lipgloss.Style
	StatusPending lipgloss.Style
}

func newStyles(color bool) *Styles {
	s := &Styles{
		Header1:       lipgloss.NewStyle().Bold(true),
		Header2:       lipgloss.NewStyle().Bold(true),
		Bold:          lipgloss.NewStyle().Bold(true),
		Muted:         lipgloss.NewStyle(),
		Success:       lipgloss.NewStyle(),
		Warning:       lipgloss.NewStyle(),
		Error:         lipgloss.NewStyle(),
		StatusSuccess: lipgloss.NewStyle().SetString("✓"),
		StatusFailed:  lipgloss.NewStyle().SetString("✗"),
		StatusSkipped: lipgloss.NewStyle().SetString("-"),
		StatusRunning: lipgloss.NewStyle().SetString("→"),
		StatusPending: lipgloss.NewStyle().SetString("·"),
	}
	if color {
		s.Header1 = s.Header1.Foreground(lipgloss.Color("12"))
		s.Header2 = s.Header2.Foreground(lipgloss.Color("14"))
		s.Muted = s.Muted.Foreground(lipgloss.Color("8"))
		s.Success = s.Success.Foreground(lipgloss.Color("10"))
		s.Warning = s.Warning.Foreground(lipgloss.Color("11"))
		s.Error = s.Error.Foreground(lipgloss.Color("9"))
		s.StatusSuccess = s.StatusSuccess.Foreground(lipgloss.Color("10"))
		s.StatusFailed = s.StatusFailed.Foreground(lipgloss.Color("9"))
		s.StatusSkipped = s.StatusSkipped.Foreground(lipgloss.Color("8"))
		s.StatusRunning = s.StatusRunning.Foreground(lipgloss.Color("12"))
		s.StatusPending = s.StatusPending.Foreground(lipgloss.Color("8"))
	}
	return s
}

// Renderer writes command output in the selected mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	styles *Styles
}

// NewRenderer creates a renderer. An empty mode means auto.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	r := &Renderer{out: out, errOut: errOut, mode: mode}
	r.styles = newStyles(r.colorEnabled())
	return r
}

// EffectiveMode resolves auto to text on a TTY and markdown otherwise.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY() {
		return ModeText
	}
	return ModeMarkdown
}

// Styles returns the style set for direct rendering.
func (r *Renderer) Styles() *Styles {
	return r.styles
}

// Writer returns the destination for normal output.
func (r *Renderer) Writer() io.Writer {
	return r.out
}

// ErrWriter returns the destination for warnings and errors.
func (r *Renderer) ErrWriter() io.Writer {
	return r.errOut
}

// Println writes a line to normal output.
func (r *Renderer) Println(a ...any) {
	fmt.Fprintln(r.out, a...)
}

// Printf writes formatted text to normal output.
func (r *Renderer) Printf(format string, a ...any) {
	fmt.Fprintf(r.out, format, a...)
}

// JSON writes v as indented JSON to normal output.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Success writes a success line with a check glyph.
func (r *Renderer) Success(msg string) {
	fmt.Fprintf(r.out, "%s %s\n", r.styles.StatusSuccess.String(), msg)
}

// Warning writes a warning line to the error stream.
func (r *Renderer) Warning(msg string) {
	fmt.Fprintln(r.errOut, r.styles.Warning.Render("! "+msg))
}

// Error writes an error line to the error stream.
func (r *Renderer) Error(msg string) {
	fmt.Fprintln(r.errOut, r.styles.Error.Render("✗ "+msg))
}

// StatusLine writes an indented status entry: a glyph for the status,
// the name, and an optional muted detail.
func (r *Renderer) StatusLine(name, status, detail string) {
	var icon string
	switch status {
	case "success", "completed":
		icon = r.styles.StatusSuccess.String()
	case "failed":
		icon = r.styles.StatusFailed.String()
	case "skipped":
		icon = r.styles.StatusSkipped.String()
	case "running":
		icon = r.styles.StatusRunning.String()
	default:
		icon = r.styles.StatusPending.String()
	}

	line := fmt.Sprintf("  %s %s", icon, name)
	if detail != "" {
		line += " " + r.styles.Muted.Render("("+detail+")")
	}
	fmt.Fprintln(r.out, line)
}

func (r *Renderer) isTTY() bool {
	f, ok := r.out.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func (r *Renderer) colorEnabled() bool {
	if termenv.EnvNoColor() {
		return false
	}
	return r.isTTY()
}
