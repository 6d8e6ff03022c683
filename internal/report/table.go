// Package report renders analysis results for people: terminal tables, the
// system clipboard and PNG charts.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mrsinham/dvhgrab/internal/session"
)

// Headings of the results table.
var Headings = []string{"STRUCTURE", "METRIC", "VALUE", "UNIT"}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	missStyle   = cellStyle.Foreground(lipgloss.Color("214"))
	errStyle    = cellStyle.Foreground(lipgloss.Color("196"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	okMessageStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failMessageStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

// CellValue formats a value for display, rounded to three decimals.
func CellValue(v float64) string {
	return session.FormatValue(math.Round(v*1000) / 1000)
}

// Cells returns the display rows of a results table.
func Cells(t *session.ResultsTable) [][]string {
	rows := t.Rows()
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = []string{r.Structure, r.Metric, CellValue(r.Value), r.Unit}
	}
	return cells
}

// Table renders the results as a bordered terminal table. Missing
// structures and failed metrics are highlighted.
func Table(t *session.ResultsTable) string {
	rows := t.Rows()
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(Headings...).
		Rows(Cells(t)...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row < 0 || row >= len(rows) {
				return cellStyle
			}
			switch rows[row].Unit {
			case session.MissingUnit:
				return missStyle
			case session.ErrorUnit:
				return errStyle
			}
			return cellStyle
		})
	return tbl.Render()
}

// Message renders the summary message of a run, green when complete.
func Message(t *session.ResultsTable) string {
	if t.Complete() {
		return okMessageStyle.Render(t.Message)
	}
	return failMessageStyle.Render(t.Message)
}

// Errors renders one line per failed metric, or an empty string.
func Errors(t *session.ResultsTable) string {
	errs := t.Errors()
	if len(errs) == 0 {
		return ""
	}
	var b strings.Builder
	for _, err := range errs {
		fmt.Fprintf(&b, "  %s\n", errStyle.Render(err.Error()))
	}
	return b.String()
}
