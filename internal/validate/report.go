package validate

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

const (
	errorIntro   = "   x"
	warningIntro = "   ~"
)

// report writes the human readable validation output.
type report struct {
	out          io.Writer
	denyWarnings bool

	title   lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	warning lipgloss.Style
	header  lipgloss.Style
}

func newReport(out io.Writer, color, denyWarnings bool) *report {
	renderer := lipgloss.NewRenderer(out)
	if color {
		renderer.SetColorProfile(termenv.ANSI256)
	} else {
		renderer.SetColorProfile(termenv.Ascii)
	}

	return &report{
		out:          out,
		denyWarnings: denyWarnings,
		title:        renderer.NewStyle().Bold(true),
		success:      renderer.NewStyle().Foreground(lipgloss.Color("42")),
		failure:      renderer.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		warning:      renderer.NewStyle().Foreground(lipgloss.Color("214")),
		header:       renderer.NewStyle().Foreground(lipgloss.Color("39")),
	}
}

func (r *report) fileHeader(path string) {
	fmt.Fprintln(r.out, r.header.Render("# Config: "+path))
}

func (r *report) titleLine(title string) {
	fmt.Fprintln(r.out, r.title.Render("- "+title))
}

func (r *report) successLine(msg string) {
	fmt.Fprintln(r.out, r.success.Render("√ "+msg))
}

func (r *report) errorLine(msg string) {
	fmt.Fprintf(r.out, "%s %s\n", r.failure.Render(errorIntro), msg)
}

func (r *report) errors(errs []error) {
	for _, err := range errs {
		r.errorLine(err.Error())
	}
}

func (r *report) warnings(warnings []string) {
	for _, w := range warnings {
		if r.denyWarnings {
			r.errorLine(w)
			continue
		}
		fmt.Fprintf(r.out, "%s %s\n", r.warning.Render(warningIntro), w)
	}
}

func (r *report) plain(msg string) {
	fmt.Fprintln(r.out, msg)
}
