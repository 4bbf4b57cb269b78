// Package report renders a run summary for humans and maps it to the
// process exit status.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/cli-runtime/pkg/printers"

	"github.com/rhoai-upgrade/upgrade-helpers/internal/executor"
	"github.com/rhoai-upgrade/upgrade-helpers/internal/k8s"
)

var (
	colorGreen = lipgloss.Color("#22c55e")
	colorRed   = lipgloss.Color("#ef4444")
	colorAmber = lipgloss.Color("#f59e0b")
	colorDim   = lipgloss.Color("#6b7280")

	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	failStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	actionStyle = lipgloss.NewStyle().Foreground(colorAmber)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDim)
)

// Options controls rendering.
type Options struct {
	Color     bool
	NoHeaders bool
}

// ColorEnabled reports whether stdout can take ANSI colors.
func ColorEnabled(noColor bool) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// Render writes the outcome table, the totals line and, when anything
// failed, the failed resource names.
func Render(w io.Writer, s executor.Summary, opts Options) error {
	if len(s.Outcomes) > 0 {
		if err := printTable(w, s, opts); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	paint := func(st lipgloss.Style, text string) string {
		if !opts.Color {
			return text
		}
		return st.Render(text)
	}

	failedStyle := dimStyle
	if s.Failed() > 0 {
		failedStyle = failStyle
	}
	fmt.Fprintf(w, "%s  found=%d succeeded=%s failed=%s\n",
		paint(dimStyle, "mode="+s.Mode.String()),
		s.Found(),
		paint(okStyle, fmt.Sprint(s.Succeeded())),
		paint(failedStyle, fmt.Sprint(s.Failed())),
	)

	switch s.Mode {
	case executor.Inspect:
		if n := s.Count(executor.StatusNeedsAction); n > 0 {
			fmt.Fprintln(w, paint(actionStyle, fmt.Sprintf("%d resource(s) need action; rerun with --fix to apply", n)))
		}
	case executor.Simulate:
		fmt.Fprintln(w, paint(actionStyle, fmt.Sprintf("dry run: %d change(s) would be made", s.Changes())))
	}

	if refs := s.FailedRefs(); len(refs) > 0 {
		fmt.Fprintln(w, paint(failStyle, "failed:"))
		for _, ref := range refs {
			fmt.Fprintf(w, "  - %s\n", ref)
		}
	}
	return nil
}

func printTable(w io.Writer, s executor.Summary, opts Options) error {
	printer := printers.NewTablePrinter(printers.PrintOptions{NoHeaders: opts.NoHeaders})

	table := &metav1.Table{
		ColumnDefinitions: []metav1.TableColumnDefinition{
			{Name: "KIND", Type: "string"},
			{Name: "NAMESPACE", Type: "string"},
			{Name: "NAME", Type: "string"},
			{Name: "STATE", Type: "string"},
			{Name: "RESULT", Type: "string"},
			{Name: "DETAIL", Type: "string"},
		},
	}
	for _, o := range s.Outcomes {
		result := string(o.Status)
		if o.DryRun {
			result += " (dry-run)"
		}
		table.Rows = append(table.Rows, metav1.TableRow{
			Cells: []interface{}{
				o.Ref.Kind.String(),
				o.Ref.Namespace,
				o.Ref.Name,
				o.Class.String(),
				result,
				o.Detail,
			},
		})
	}

	if err := printer.PrintObj(table, w); err != nil {
		return fmt.Errorf("failed to print outcome table: %w", err)
	}
	return nil
}

// FailuresError is returned when at least one resource failed.
type FailuresError struct {
	Refs []k8s.Ref
}

func (e *FailuresError) Error() string {
	names := make([]string, 0, len(e.Refs))
	for _, ref := range e.Refs {
		names = append(names, ref.String())
	}
	return fmt.Sprintf("%d resource(s) failed: %s", len(e.Refs), strings.Join(names, ", "))
}

// ExitError is nil iff no resource failed.
func ExitError(s executor.Summary) error {
	if s.Failed() == 0 {
		return nil
	}
	return &FailuresError{Refs: s.FailedRefs()}
}
