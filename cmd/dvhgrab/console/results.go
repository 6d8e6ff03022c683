package console

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mrsinham/dvhgrab/cmd/dvhgrab/console/components"
	"github.com/mrsinham/dvhgrab/internal/report"
	"github.com/mrsinham/dvhgrab/internal/session"
)

// ResultsView displays a results table and copies it on request.
type ResultsView struct {
	sess   *session.Session
	clip   session.Clipboard
	format session.ExportFormat
	table  *session.ResultsTable
	lines  []string
	offset int
	height int
	status session.Status
	done   bool
}

// NewResultsView creates a viewer over the session's last results. Enter
// copies them in the given format.
func NewResultsView(sess *session.Session, clip session.Clipboard, format session.ExportFormat, table *session.ResultsTable) *ResultsView {
	v := &ResultsView{
		sess:   sess,
		clip:   clip,
		format: format,
		table:  table,
		height: 20,
	}
	v.lines = strings.Split(report.Table(table), "\n")
	return v
}

// Init implements tea.Model
func (v *ResultsView) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (v *ResultsView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// Title, message, status and hints take the remaining lines
		v.height = msg.Height - 8
		if v.height < 5 {
			v.height = 5
		}
		v.clampOffset()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc":
			v.done = true
		case "enter":
			v.status = v.sess.Copy(v.format, v.clip)
		case "c":
			v.status = v.sess.Copy(session.ExportFull, v.clip)
		case "v":
			v.status = v.sess.Copy(session.ExportValues, v.clip)
		case "up", "k":
			v.offset--
			v.clampOffset()
		case "down", "j":
			v.offset++
			v.clampOffset()
		case "pgup":
			v.offset -= v.height
			v.clampOffset()
		case "pgdown", " ":
			v.offset += v.height
			v.clampOffset()
		}
	}
	return v, nil
}

func (v *ResultsView) clampOffset() {
	last := len(v.lines) - v.height
	if v.offset > last {
		v.offset = last
	}
	if v.offset < 0 {
		v.offset = 0
	}
}

// View implements tea.Model
func (v *ResultsView) View() string {
	end := v.offset + v.height
	if end > len(v.lines) {
		end = len(v.lines)
	}
	body := strings.Join(v.lines[v.offset:end], "\n")

	title := components.TitleStyle.Render("Results")
	subtitle := components.SubtitleStyle.Render(fmt.Sprintf("%s | %s | %s",
		v.table.Definition, v.table.StructureFile, v.table.DoseFile))

	parts := []string{title, subtitle, body, "", report.Message(v.table)}
	if errs := report.Errors(v.table); errs != "" {
		parts = append(parts, strings.TrimRight(errs, "\n"))
	}
	if line := components.StatusLine(v.status.Text, v.status.OK); line != "" {
		parts = append(parts, line)
	}
	parts = append(parts, "", components.HintStyle.Render("Enter: Copy " + string(v.format) + " | c: Copy all | v: Copy values | ↑/↓: Scroll | q: Back"))

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// Done returns true once the viewer was closed
func (v *ResultsView) Done() bool {
	return v.done
}

// Status returns the outcome of the last copy
func (v *ResultsView) Status() session.Status {
	return v.status
}
