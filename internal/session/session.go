// Package session holds the state of one interactive analysis session and
// implements its commands. Each command returns a short Status for the user.
package session

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/mrsinham/dvhgrab/internal/alias"
	"github.com/mrsinham/dvhgrab/internal/analysis"
	"github.com/mrsinham/dvhgrab/internal/archive"
	"github.com/mrsinham/dvhgrab/internal/dvh"
	"github.com/mrsinham/dvhgrab/internal/logger"
	"github.com/mrsinham/dvhgrab/internal/metric"
)

// Status is the user-facing outcome of a command.
type Status struct {
	Text string
	OK   bool
}

func ok(format string, args ...interface{}) Status {
	return Status{Text: fmt.Sprintf(format, args...), OK: true}
}

func fail(format string, args ...interface{}) Status {
	return Status{Text: fmt.Sprintf(format, args...), OK: false}
}

// Status texts of the session commands.
const (
	StatusArchiveRead         = "Finished reading zip file."
	StatusPrescriptionInvalid = "Prescription needs to be numeric"
	StatusAliasInvalid        = "Format should be: alias=structure"
	StatusSelectBoth          = "Select both a dose and structure file"
	StatusSelectStructure     = "Select structure set first"
	StatusNoAliases           = "No aliases have been set"
	StatusNeedAnalysis        = "Need to analyse first"
	StatusCopied              = "Copied to clipboard"
)

// DefaultSettings returns relative reporting with no prescription.
func DefaultSettings() metric.Settings {
	return metric.Settings{Relative: true, Prescription: -1}
}

// Clipboard receives exported results.
type Clipboard interface {
	WriteAll(text string) error
}

// Options configures a new session.
type Options struct {
	ConfigsDir string
	// DescribeTag names the dose attribute shown on selection. Defaults to
	// StudyDescription.
	DescribeTag string
	// Settings overrides DefaultSettings when non-nil.
	Settings *metric.Settings
	Provider *dvh.Provider
}

// Session is the state of one user session. It is safe for concurrent use;
// commands are serialized and Analyze holds the lock for the whole run.
type Session struct {
	mu sync.Mutex

	loader      analysis.Loader
	provider    *dvh.Provider
	describeTag string

	archive         string
	index           *archive.Index
	structureFile   string
	doseFile        string
	doseDescription string
	definition      string

	settings metric.Settings
	aliases  *alias.Table
	results  *ResultsTable
}

// New returns a session with default settings and no aliases.
func New(opts Options) *Session {
	s := &Session{
		loader:      analysis.Loader{Dir: opts.ConfigsDir},
		provider:    opts.Provider,
		describeTag: opts.DescribeTag,
		settings:    DefaultSettings(),
		aliases:     alias.NewTable(),
	}
	if s.describeTag == "" {
		s.describeTag = archive.DefaultDescribeTag
	}
	if opts.Settings != nil {
		s.settings = *opts.Settings
	}
	if s.provider == nil {
		s.provider = dvh.NewProvider(nil)
	}
	return s
}

// OpenArchive classifies the entries of a zip archive. Previous file
// selections and results are cleared.
func (s *Session) OpenArchive(path string) Status {
	ix, err := archive.Classify(path)
	if err != nil {
		logger.Error("%v", err)
		return fail("Failed to read zip file: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.archive = path
	s.index = ix
	s.structureFile = ""
	s.doseFile = ""
	s.doseDescription = ""
	s.results = nil
	return ok(StatusArchiveRead)
}

// Index returns the classification of the open archive, or nil.
func (s *Session) Index() *archive.Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

func contains(entries []archive.Entry, path string) bool {
	for _, e := range entries {
		if e.Path == path {
			return true
		}
	}
	return false
}

// SelectStructureFile selects a structure set entry of the open archive.
func (s *Session) SelectStructureFile(entry string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return fail("Open a zip file first")
	}
	if !contains(s.index.Structures, entry) {
		return fail("Not a structure set: %s", entry)
	}
	s.structureFile = entry
	return ok("Selected structure file: %s", entry)
}

// SelectDoseFile selects a dose entry of the open archive and returns its
// study description.
func (s *Session) SelectDoseFile(entry string) (string, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return "", fail("Open a zip file first")
	}
	if !contains(s.index.Doses, entry) {
		return "", fail("Not a dose file: %s", entry)
	}

	desc, err := archive.Describe(s.archive, entry, s.describeTag)
	if err != nil {
		logger.Warn("describe %s: %v", entry, err)
		desc = archive.RemovedDescription
	}
	s.doseFile = entry
	s.doseDescription = desc
	return desc, ok("Selected dose file: %s", entry)
}

// Selection returns the selected structure file, dose file and dose
// description.
func (s *Session) Selection() (structureFile, doseFile, doseDescription string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.structureFile, s.doseFile, s.doseDescription
}

// Analyses returns the available analysis definitions.
func (s *Session) Analyses() ([]string, error) {
	return s.loader.List()
}

// SelectAnalysis selects the definition used by Analyze.
func (s *Session) SelectAnalysis(name string) Status {
	if _, err := s.loader.Load(name); err != nil {
		return fail("Cannot use analysis %s: %v", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.definition = name
	return ok("Selected analysis: %s", name)
}

// Definition returns the selected definition, falling back to the first
// available one.
func (s *Session) Definition() (string, error) {
	s.mu.Lock()
	name := s.definition
	s.mu.Unlock()
	if name != "" {
		return name, nil
	}
	return s.loader.Default()
}

// SetRelative switches between relative and absolute reporting.
func (s *Session) SetRelative(relative bool) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Relative = relative
	if relative {
		return ok("Results set to: relative")
	}
	return ok("Results set to: absolute")
}

// SetPrescription parses and stores the prescription dose in Gy.
func (s *Session) SetPrescription(text string) Status {
	rx, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(rx) || math.IsInf(rx, 0) {
		return fail(StatusPrescriptionInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Prescription = rx
	return ok("Set prescription to: %sGy", FormatValue(rx))
}

// Settings returns the current reporting settings.
func (s *Session) Settings() metric.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// AddAlias registers an alias given as "alias=structure".
func (s *Session) AddAlias(text string) Status {
	a, canonical, err := alias.ParseCommand(text)
	if err != nil {
		if !errors.Is(err, alias.ErrMalformedAlias) {
			logger.Error("add alias: %v", err)
		}
		return fail(StatusAliasInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aliases.Add(canonical, a)
	return ok("Added alias: %s", strings.TrimSpace(text))
}

// ListAliases returns the registered aliases as alias=structure lines.
func (s *Session) ListAliases() ([]string, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aliases.Len() == 0 {
		return nil, fail(StatusNoAliases)
	}
	lines := s.aliases.Lines()
	return lines, ok("%d aliases", len(lines))
}

// ListStructures returns the structure names of the selected structure set.
func (s *Session) ListStructures() ([]string, Status) {
	s.mu.Lock()
	path, entry := s.archive, s.structureFile
	s.mu.Unlock()
	if entry == "" {
		return nil, fail(StatusSelectStructure)
	}

	catalog, err := archive.Catalog(path, entry)
	if err != nil {
		logger.Error("%v", err)
		return nil, fail("Failed to read structure set: %v", err)
	}
	return catalog.Names(), ok("%d structures", len(catalog))
}

// Analyze runs the selected definition over the selected files. The table
// replaces previous results even when some structures were not found.
func (s *Session) Analyze() (*ResultsTable, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.structureFile == "" || s.doseFile == "" {
		return nil, fail(StatusSelectBoth)
	}

	name := s.definition
	if name == "" {
		var err error
		if name, err = s.loader.Default(); err != nil {
			return nil, fail("No analysis config available: %v", err)
		}
	}
	def, err := s.loader.Load(name)
	if err != nil {
		logger.Error("%v", err)
		switch {
		case errors.Is(err, analysis.ErrConfigNotFound):
			return nil, fail("Analysis config not found: %s", name)
		case errors.Is(err, analysis.ErrMalformedDefinition):
			return nil, fail("Malformed analysis config: %v", err)
		default:
			return nil, fail("Failed to load analysis config: %v", err)
		}
	}

	table, err := Analyze(Request{
		Archive:       s.archive,
		StructureFile: s.structureFile,
		DoseFile:      s.doseFile,
		Definition:    def,
		Settings:      s.settings,
		Aliases:       s.aliases.Clone(),
		Provider:      s.provider,
	})
	if err != nil {
		logger.Error("%v", err)
		return nil, fail("Analysis failed: %v", err)
	}

	s.results = table
	return table, Status{Text: table.Message, OK: table.Complete()}
}

// Results returns the last results table, or nil.
func (s *Session) Results() *ResultsTable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// Export renders the last results.
func (s *Session) Export(format ExportFormat) (string, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil {
		return "", fail(StatusNeedAnalysis)
	}
	return s.results.Export(format), ok("Exported %s results", format)
}

// Copy exports the last results to the clipboard.
func (s *Session) Copy(format ExportFormat, clip Clipboard) Status {
	text, st := s.Export(format)
	if !st.OK {
		return st
	}
	if err := clip.WriteAll(text); err != nil {
		logger.Error("clipboard: %v", err)
		return fail("Failed to copy to clipboard: %v", err)
	}
	return ok(StatusCopied)
}
