// Package console is the interactive terminal front end of dvhgrab. It
// drives a session through a menu of actions, one huh form per action.
package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/mrsinham/dvhgrab/cmd/dvhgrab/console/components"
	"github.com/mrsinham/dvhgrab/internal/session"
)

// Phase represents the current screen of the console.
type Phase int

const (
	PhaseMenu Phase = iota
	PhaseForm
	PhaseList
	PhaseAnalysing
	PhaseResults
)

// Options configures the console.
type Options struct {
	Session   *session.Session
	Clipboard session.Clipboard
	// Archive is opened on start when set.
	Archive string
	// Export is the default clipboard format of the results viewer.
	Export   session.ExportFormat
	PlotPath string
}

// analysisDoneMsg carries the outcome of a background analysis.
type analysisDoneMsg struct {
	table  *session.ResultsTable
	status session.Status
}

// Console is the main orchestrator of the interactive interface.
type Console struct {
	sess *session.Session
	clip session.Clipboard
	opts Options

	phase Phase

	menu    *huh.Form
	action  Action
	form    *huh.Form
	pending Action
	input   string

	listTitle string
	list      []string

	spinner   spinner.Model
	results   *ResultsView
	helpPanel *components.HelpPanel

	archive string
	status  session.Status

	width  int
	height int

	quitting bool
}

// New creates a console over an existing session.
func New(opts Options) *Console {
	if opts.Export == "" {
		opts.Export = session.ExportFull
	}
	c := &Console{
		sess:      opts.Session,
		clip:      opts.Clipboard,
		opts:      opts,
		helpPanel: components.NewHelpPanel(),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("63"))),
		),
	}
	if opts.Archive != "" {
		c.status = c.apply(ActionOpen, opts.Archive)
	}
	c.menu = c.newMenu()
	return c
}

func (c *Console) newMenu() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[Action]().
				Key("action").
				Title("Action").
				Options(menuOptions()...).
				Value(&c.action),
		),
	).WithShowHelp(false)
}

// Init implements tea.Model.
func (c *Console) Init() tea.Cmd {
	return c.menu.Init()
}

// Update implements tea.Model.
func (c *Console) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		c.width = msg.Width
		c.height = msg.Height
		c.helpPanel.SetWidth(msg.Width / 2)
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			c.quitting = true
			return c, tea.Quit
		}
	}

	switch c.phase {
	case PhaseMenu:
		return c.updateMenu(msg)
	case PhaseForm:
		return c.updateForm(msg)
	case PhaseList:
		return c.updateList(msg)
	case PhaseAnalysing:
		return c.updateAnalysing(msg)
	case PhaseResults:
		return c.updateResults(msg)
	}
	return c, nil
}

// View implements tea.Model.
func (c *Console) View() string {
	if c.quitting {
		return ""
	}

	var body string
	switch c.phase {
	case PhaseMenu:
		body = lipgloss.JoinVertical(lipgloss.Left,
			c.menu.View(),
			"",
			components.HintStyle.Render("↑/↓: Move | Enter: Select | q: Quit"),
		)
	case PhaseForm:
		body = lipgloss.JoinVertical(lipgloss.Left,
			c.form.View(),
			"",
			c.helpPanel.View(),
			"",
			components.HintStyle.Render("Enter: Confirm | Esc: Back"),
		)
	case PhaseList:
		body = lipgloss.JoinVertical(lipgloss.Left,
			components.SubtitleStyle.Render(c.listTitle),
			strings.Join(c.list, "\n"),
			"",
			components.HintStyle.Render("Any key: Back"),
		)
	case PhaseAnalysing:
		body = fmt.Sprintf("%s Analysing...", c.spinner.View())
	case PhaseResults:
		return c.results.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		components.TitleStyle.Render("DVH STAT GRAB"),
		c.infoView(),
		"",
		body,
		"",
		components.StatusLine(c.status.Text, c.status.OK),
	)
}

func (c *Console) infoView() string {
	structureFile, doseFile, desc := c.sess.Selection()
	definition, _ := c.sess.Definition()
	settings := c.sess.Settings()

	mode := "Absolute"
	if settings.Relative {
		mode = "Relative"
	}
	rx := ""
	if settings.Prescription > 0 {
		rx = session.FormatValue(settings.Prescription) + " Gy"
	}

	return components.InfoPanel([]components.Field{
		{Label: "DICOM Zip", Value: c.archive},
		{Label: "Structure file", Value: structureFile},
		{Label: "Dose file", Value: doseFile},
		{Label: "Dose study description", Value: desc},
		{Label: "Analysis", Value: definition},
		{Label: "Display as", Value: mode},
		{Label: "Prescription", Value: rx},
	})
}

func (c *Console) backToMenu() (tea.Model, tea.Cmd) {
	c.phase = PhaseMenu
	c.menu = c.newMenu()
	return c, c.menu.Init()
}

func (c *Console) updateMenu(msg tea.Msg) (tea.Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "q", "esc":
			c.quitting = true
			return c, tea.Quit
		}
	}

	form, cmd := c.menu.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		c.menu = f
	}

	if c.menu.State == huh.StateCompleted {
		return c.dispatch(c.action)
	}
	return c, cmd
}

// dispatch starts an action chosen from the menu.
func (c *Console) dispatch(a Action) (tea.Model, tea.Cmd) {
	switch a {
	case ActionQuit:
		c.quitting = true
		return c, tea.Quit

	case ActionStructures:
		names, st := c.sess.ListStructures()
		return c.showList("Structures", names, st)

	case ActionAliases:
		lines, st := c.sess.ListAliases()
		return c.showList("Aliases", lines, st)

	case ActionAnalyze:
		c.phase = PhaseAnalysing
		return c, tea.Batch(c.spinner.Tick, c.analyze)

	case ActionResults:
		table := c.sess.Results()
		if table == nil {
			c.status = session.Status{Text: session.StatusNeedAnalysis}
			return c.backToMenu()
		}
		c.showResults(table)
		return c, nil

	case ActionCopyAll, ActionCopyValues:
		c.status = c.apply(a, "")
		return c.backToMenu()
	}

	form, st := c.inputForm(a)
	if !st.OK {
		c.status = st
		return c.backToMenu()
	}
	c.pending = a
	c.form = form
	c.helpPanel.SetAction(a.Key())
	c.helpPanel.SetCurrent(c.input)
	c.phase = PhaseForm
	return c, c.form.Init()
}

func (c *Console) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok && km.String() == "esc" {
		return c.backToMenu()
	}

	form, cmd := c.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		c.form = f
	}

	if c.form.State == huh.StateCompleted {
		c.status = c.apply(c.pending, c.input)
		return c.backToMenu()
	}
	return c, cmd
}

func (c *Console) showList(title string, lines []string, st session.Status) (tea.Model, tea.Cmd) {
	c.status = st
	if !st.OK {
		return c.backToMenu()
	}
	c.listTitle = title
	c.list = lines
	c.phase = PhaseList
	return c, nil
}

func (c *Console) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if _, ok := msg.(tea.KeyMsg); ok {
		return c.backToMenu()
	}
	return c, nil
}

// analyze runs the analysis off the UI loop.
func (c *Console) analyze() tea.Msg {
	table, st := c.sess.Analyze()
	return analysisDoneMsg{table: table, status: st}
}

func (c *Console) updateAnalysing(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case analysisDoneMsg:
		c.status = msg.status
		if msg.table == nil {
			return c.backToMenu()
		}
		c.showResults(msg.table)
		return c, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		c.spinner, cmd = c.spinner.Update(msg)
		return c, cmd
	}
	return c, nil
}

func (c *Console) showResults(table *session.ResultsTable) {
	c.results = NewResultsView(c.sess, c.clip, c.opts.Export, table)
	if c.height > 0 {
		c.results.Update(tea.WindowSizeMsg{Width: c.width, Height: c.height})
	}
	c.phase = PhaseResults
}

func (c *Console) updateResults(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := c.results.Update(msg)
	if rv, ok := model.(*ResultsView); ok {
		c.results = rv
	}
	if c.results.Done() {
		if st := c.results.Status(); st.Text != "" {
			c.status = st
		}
		return c.backToMenu()
	}
	return c, cmd
}

// Run starts the interactive console.
func Run(opts Options) error {
	if opts.Session == nil {
		return fmt.Errorf("console needs a session")
	}
	c := New(opts)
	p := tea.NewProgram(c, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running console: %w", err)
	}
	return nil
}
