package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/plc-analyzer/backend/internal/metrics"
	"github.com/plc-analyzer/backend/internal/models"
)

// Output formats
const (
	formatText     = "text"
	formatJSON     = "json"
	formatCSV      = "csv"
	formatMarkdown = "markdown"
)

var (
	colorPrimary   = lipgloss.Color("39")  // Blue
	colorSecondary = lipgloss.Color("245") // Gray
	colorSuccess   = lipgloss.Color("34")  // Green
	colorWarning   = lipgloss.Color("214") // Orange
	colorError     = lipgloss.Color("196") // Red
)

type styleSet struct {
	title   lipgloss.Style
	muted   lipgloss.Style
	header  lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	border  lipgloss.Style
}

var styles = newStyles(term.IsTerminal(int(os.Stdout.Fd())))

func newStyles(color bool) styleSet {
	if !color {
		plain := lipgloss.NewStyle()
		return styleSet{plain, plain, plain, plain, plain, plain, plain}
	}
	return styleSet{
		title:   lipgloss.NewStyle().Bold(true).Foreground(colorPrimary),
		muted:   lipgloss.NewStyle().Foreground(colorSecondary),
		header:  lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Padding(0, 1),
		success: lipgloss.NewStyle().Foreground(colorSuccess),
		warning: lipgloss.NewStyle().Foreground(colorWarning),
		failure: lipgloss.NewStyle().Foreground(colorError),
		border:  lipgloss.NewStyle().Foreground(colorSecondary),
	}
}

func disableColor() {
	styles = newStyles(false)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeTable renders rows under headers. An empty table prints the empty
// message instead.
func writeTable(w io.Writer, headers []string, rows [][]string, empty string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, styles.muted.Render(empty))
		return err
	}
	cell := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(styles.border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.header
			}
			return cell
		})
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func writeTitle(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styles.title.Render(fmt.Sprintf(format, args...)))
}

func severityStyle(s models.Severity) lipgloss.Style {
	switch s {
	case models.SeverityError:
		return styles.failure
	case models.SeverityWarning:
		return styles.warning
	}
	return styles.muted
}

// scoreCell colors a score by band: 80 and up is healthy, below 50 poor.
func scoreCell(s metrics.Score) string {
	v, ok := s.Value()
	if !ok {
		return styles.muted.Render(s.String())
	}
	switch {
	case v >= 80:
		return styles.success.Render(s.String())
	case v >= 50:
		return styles.warning.Render(s.String())
	}
	return styles.failure.Render(s.String())
}

