package console

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mrsinham/dvhgrab/internal/report"
	"github.com/mrsinham/dvhgrab/internal/session"
)

// Action is a console menu entry.
type Action int

const (
	ActionOpen Action = iota
	ActionStructureFile
	ActionDoseFile
	ActionAnalysis
	ActionMode
	ActionPrescription
	ActionAlias
	ActionStructures
	ActionAliases
	ActionAnalyze
	ActionResults
	ActionCopyAll
	ActionCopyValues
	ActionPlot
	ActionQuit
)

var actionLabels = map[Action]string{
	ActionOpen:          "Open DICOM zip",
	ActionStructureFile: "Select structure file",
	ActionDoseFile:      "Select dose file",
	ActionAnalysis:      "Select analysis config",
	ActionMode:          "Display as absolute / relative",
	ActionPrescription:  "Set prescription",
	ActionAlias:         "Set alias",
	ActionStructures:    "See structures",
	ActionAliases:       "Show aliases",
	ActionAnalyze:       "Run analysis",
	ActionResults:       "Show results",
	ActionCopyAll:       "Copy all",
	ActionCopyValues:    "Copy values",
	ActionPlot:          "Save DVH chart",
	ActionQuit:          "Quit",
}

var actionKeys = map[Action]string{
	ActionOpen:          "open",
	ActionStructureFile: "structure_file",
	ActionDoseFile:      "dose_file",
	ActionAnalysis:      "analysis",
	ActionMode:          "mode",
	ActionPrescription:  "prescription",
	ActionAlias:         "alias",
	ActionPlot:          "plot",
}

// String returns the menu label of the action.
func (a Action) String() string {
	return actionLabels[a]
}

// Key returns the help key of the action, empty for actions without help.
func (a Action) Key() string {
	return actionKeys[a]
}

func menuOptions() []huh.Option[Action] {
	var opts []huh.Option[Action]
	for a := ActionOpen; a <= ActionQuit; a++ {
		opts = append(opts, huh.NewOption(a.String(), a))
	}
	return opts
}

func required(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

// inputForm returns the form collecting the argument of a, or nil when the
// action runs directly. A non-OK status means the action cannot run now.
func (c *Console) inputForm(a Action) (*huh.Form, session.Status) {
	c.input = ""
	var field huh.Field

	switch a {
	case ActionOpen:
		c.input = c.archive
		field = huh.NewInput().
			Key(a.Key()).
			Title("DICOM Zip").
			Placeholder("export.zip").
			Value(&c.input).
			Validate(required("zip path"))

	case ActionStructureFile, ActionDoseFile:
		ix := c.sess.Index()
		if ix == nil {
			return nil, session.Status{Text: "Open a zip file first"}
		}
		paths, title := ix.StructurePaths(), "Structure DICOM File"
		if a == ActionDoseFile {
			paths, title = ix.DosePaths(), "Dose DICOM File"
		}
		if len(paths) == 0 {
			return nil, session.Status{Text: fmt.Sprintf("No %s in archive", strings.ToLower(title))}
		}
		field = huh.NewSelect[string]().
			Key(a.Key()).
			Title(title).
			Options(huh.NewOptions(paths...)...).
			Value(&c.input)

	case ActionAnalysis:
		names, err := c.sess.Analyses()
		if err != nil || len(names) == 0 {
			return nil, session.Status{Text: "No analysis config available"}
		}
		if current, err := c.sess.Definition(); err == nil {
			c.input = current
		}
		field = huh.NewSelect[string]().
			Key(a.Key()).
			Title("Analysis Config File").
			Options(huh.NewOptions(names...)...).
			Value(&c.input)

	case ActionMode:
		c.input = "absolute"
		if c.sess.Settings().Relative {
			c.input = "relative"
		}
		field = huh.NewSelect[string]().
			Key(a.Key()).
			Title("Display as").
			Options(
				huh.NewOption("Absolute", "absolute"),
				huh.NewOption("Relative", "relative"),
			).
			Value(&c.input)

	case ActionPrescription:
		field = huh.NewInput().
			Key(a.Key()).
			Title("Enter the prescription dose (Gy)").
			Value(&c.input)

	case ActionAlias:
		field = huh.NewInput().
			Key(a.Key()).
			Title("alias=structure").
			Placeholder("PTV_60=PTV").
			Value(&c.input)

	case ActionPlot:
		if c.sess.Results() == nil {
			return nil, session.Status{Text: session.StatusNeedAnalysis}
		}
		c.input = c.opts.PlotPath
		if c.input == "" {
			c.input = "dvh.png"
		}
		field = huh.NewInput().
			Key(a.Key()).
			Title("Save chart to").
			Value(&c.input).
			Validate(required("path"))

	default:
		return nil, session.Status{OK: true}
	}

	form := huh.NewForm(huh.NewGroup(field)).WithShowHelp(false).WithShowErrors(true)
	return form, session.Status{OK: true}
}

// apply runs an action with the value collected by its form.
func (c *Console) apply(a Action, value string) session.Status {
	switch a {
	case ActionOpen:
		st := c.sess.OpenArchive(strings.TrimSpace(value))
		if st.OK {
			c.archive = strings.TrimSpace(value)
		}
		return st
	case ActionStructureFile:
		return c.sess.SelectStructureFile(value)
	case ActionDoseFile:
		_, st := c.sess.SelectDoseFile(value)
		return st
	case ActionAnalysis:
		return c.sess.SelectAnalysis(value)
	case ActionMode:
		return c.sess.SetRelative(value == "relative")
	case ActionPrescription:
		return c.sess.SetPrescription(value)
	case ActionAlias:
		return c.sess.AddAlias(value)
	case ActionCopyAll:
		return c.sess.Copy(session.ExportFull, c.clip)
	case ActionCopyValues:
		return c.sess.Copy(session.ExportValues, c.clip)
	case ActionPlot:
		return c.savePlot(strings.TrimSpace(value))
	}
	return session.Status{Text: fmt.Sprintf("Unknown action %d", a)}
}

func (c *Console) savePlot(path string) session.Status {
	table := c.sess.Results()
	if table == nil {
		return session.Status{Text: session.StatusNeedAnalysis}
	}
	f, err := os.Create(path)
	if err != nil {
		return session.Status{Text: fmt.Sprintf("Failed to save chart: %v", err)}
	}
	if err := report.PlotDVH(f, report.CurvesFromResults(table)); err != nil {
		_ = f.Close()
		return session.Status{Text: fmt.Sprintf("Failed to save chart: %v", err)}
	}
	if err := f.Close(); err != nil {
		return session.Status{Text: fmt.Sprintf("Failed to save chart: %v", err)}
	}
	return session.Status{Text: fmt.Sprintf("DVH chart saved to %s", path), OK: true}
}
