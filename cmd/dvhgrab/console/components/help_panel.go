package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mrsinham/dvhgrab/cmd/dvhgrab/console/help"
)

var (
	helpBarStyle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("63")).
			PaddingLeft(1)

	helpHeadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("63")).
			Bold(true)

	helpBodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	helpNoteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	helpExampleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("42"))
)

// HelpPanel explains the command whose form is open, next to the value
// the session currently holds for it.
type HelpPanel struct {
	action  string
	current string
	width   int
}

// NewHelpPanel creates a help panel with a default width.
func NewHelpPanel() *HelpPanel {
	return &HelpPanel{width: 64}
}

// SetAction selects the help text by action key and clears the current
// value.
func (h *HelpPanel) SetAction(action string) {
	h.action = action
	h.current = ""
}

// SetCurrent sets the value shown as "Current".
func (h *HelpPanel) SetCurrent(value string) {
	h.current = value
}

// SetWidth updates the panel width. Narrow terminals keep the last width.
func (h *HelpPanel) SetWidth(width int) {
	if width > 20 {
		h.width = width
	}
}

// View renders the panel, or nothing for actions without help.
func (h *HelpPanel) View() string {
	text, ok := help.Texts[h.action]
	if !ok {
		return ""
	}
	body := helpBodyStyle.Width(h.width - 2)

	lines := []string{
		helpHeadStyle.Render(text.Title) + helpNoteStyle.Render(" · "+text.Description),
	}
	if h.current != "" {
		lines = append(lines, helpNoteStyle.Render("Current: ")+ValueStyle.Render(h.current))
	}
	if text.Details != "" {
		for _, l := range strings.Split(text.Details, "\n") {
			lines = append(lines, body.Render(l))
		}
	}
	if text.Example != "" {
		lines = append(lines, helpExampleStyle.Render("e.g. "+text.Example))
	}

	return helpBarStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
