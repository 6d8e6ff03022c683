package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var infoPanelStyle = lipgloss.NewStyle().
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(lipgloss.Color("240")).
	PaddingLeft(1)

// Field is one labelled line of an InfoPanel.
type Field struct {
	Label string
	Value string
}

// InfoPanel renders the fields as aligned label/value lines. Empty values
// are shown as a dash.
func InfoPanel(fields []Field) string {
	var lines []string
	for _, f := range fields {
		v := f.Value
		if v == "" {
			v = "-"
		}
		lines = append(lines, LabelStyle.Render(f.Label)+ValueStyle.Render(v))
	}
	return infoPanelStyle.Render(strings.Join(lines, "\n"))
}

// StatusLine renders a command outcome, green or red.
func StatusLine(text string, ok bool) string {
	if text == "" {
		return ""
	}
	if ok {
		return StatusOKStyle.Render(text)
	}
	return StatusFailStyle.Render(text)
}
