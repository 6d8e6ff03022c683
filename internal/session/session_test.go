package session

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/mrsinham/dvhgrab/internal/dvh"
	"github.com/mrsinham/dvhgrab/internal/metric"
	"github.com/mrsinham/dvhgrab/internal/phantom"
)

// testEnv is a minimal phantom archive with a configs directory.
type testEnv struct {
	archive    string
	configsDir string
}

func newTestEnv(t *testing.T, definitions map[string]string) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		archive:    filepath.Join(dir, "minimal.zip"),
		configsDir: filepath.Join(dir, "configs"),
	}
	if err := phantom.Write(phantom.Minimal(), env.archive); err != nil {
		t.Fatalf("failed to write phantom: %v", err)
	}
	if err := os.Mkdir(env.configsDir, 0755); err != nil {
		t.Fatal(err)
	}
	for name, content := range definitions {
		if err := os.WriteFile(filepath.Join(env.configsDir, name+".txt"), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return env
}

// openSession opens the archive and selects both phantom files.
func (env testEnv) openSession(t *testing.T) *Session {
	t.Helper()
	s := New(Options{ConfigsDir: env.configsDir})
	if st := s.OpenArchive(env.archive); !st.OK {
		t.Fatalf("OpenArchive: %s", st.Text)
	}
	if st := s.SelectStructureFile(phantom.StructureEntry); !st.OK {
		t.Fatalf("SelectStructureFile: %s", st.Text)
	}
	if _, st := s.SelectDoseFile(phantom.DoseEntry); !st.OK {
		t.Fatalf("SelectDoseFile: %s", st.Text)
	}
	return s
}

func assertMetric(t *testing.T, table *ResultsTable, structure, code string, value float64, unit string) {
	t.Helper()
	m, ok := table.Lookup(structure, code)
	if !ok {
		t.Errorf("%s.%s missing from results", structure, code)
		return
	}
	if m.Err != nil {
		t.Errorf("%s.%s failed: %v", structure, code, m.Err)
		return
	}
	if math.Abs(m.Value-value) > 1e-6 || m.Unit != unit {
		t.Errorf("%s.%s = (%v, %q), want (%v, %q)", structure, code, m.Value, m.Unit, value, unit)
	}
}

func TestAnalyze_UnresolvedStructureScenario(t *testing.T) {
	env := newTestEnv(t, map[string]string{"scenario": "PTV:VOL\nPTV:D2cc\nPTV:D0.1cc\nHeart:V30\n"})
	s := env.openSession(t)
	s.SetPrescription("60")

	table, st := s.Analyze()
	if table == nil {
		t.Fatalf("Analyze returned no table: %s", st.Text)
	}
	if st.OK || st.Text != MessageMissing || table.Message != MessageMissing {
		t.Errorf("status = %+v, message = %q", st, table.Message)
	}

	assertMetric(t, table, "PTV", "VOL", 0.512, "cm3")
	assertMetric(t, table, "PTV", "D2cc", 0, "%")
	assertMetric(t, table, "PTV", "D0.1cc", 100, "%")

	heart, ok := table.Lookup("Heart", "V30")
	if !ok || heart.Value != -1 || heart.Unit != "N/A" {
		t.Errorf("Heart.V30 = %+v, want (-1, N/A)", heart)
	}
	if _, ok := table.Lookup("Heart", "VOL"); ok {
		t.Error("Heart.VOL should not exist: it is not configured")
	}
	if len(table.Rows()) != 4 {
		t.Errorf("got %d rows, want 4", len(table.Rows()))
	}
	t.Logf("✓ Run %s: %s", table.RunID, table.Message)
}

func TestAnalyze_AbsoluteAndRelative(t *testing.T) {
	def := "PTV:VOL\nPTV:D95\nPTV:V57Gy\nPTV:Dmean\nBODY:VOL\nBODY:V20Gy\nBODY:Dmax\nRectum:Dmax\n"
	env := newTestEnv(t, map[string]string{"plan": def})
	s := env.openSession(t)
	s.SetPrescription("60")

	if st := s.SetRelative(false); st.Text != "Results set to: absolute" {
		t.Errorf("SetRelative(false) = %q", st.Text)
	}
	table, st := s.Analyze()
	if !st.OK || st.Text != MessageComplete {
		t.Fatalf("Analyze status = %+v", st)
	}
	assertMetric(t, table, "PTV", "VOL", 0.512, "cm3")
	assertMetric(t, table, "PTV", "D95", 60, "Gy")
	assertMetric(t, table, "PTV", "V57Gy", 0.512, "cm3")
	assertMetric(t, table, "PTV", "Dmean", 60, "Gy")
	assertMetric(t, table, "BODY", "VOL", 32, "cm3")
	assertMetric(t, table, "BODY", "V20Gy", 0.576, "cm3")
	assertMetric(t, table, "BODY", "Dmax", 60, "Gy")
	assertMetric(t, table, "Rectum", "Dmax", 30, "Gy")

	if st := s.SetRelative(true); st.Text != "Results set to: relative" {
		t.Errorf("SetRelative(true) = %q", st.Text)
	}
	table, _ = s.Analyze()
	assertMetric(t, table, "PTV", "VOL", 0.512, "cm3")
	assertMetric(t, table, "PTV", "D95", 100, "%")
	assertMetric(t, table, "PTV", "V57Gy", 100, "%")
	assertMetric(t, table, "BODY", "V20Gy", 1.8, "%")
	assertMetric(t, table, "Rectum", "Dmax", 50, "%")
}

func TestAnalyze_MetricErrorsAreTagged(t *testing.T) {
	env := newTestEnv(t, map[string]string{"errors": "PTV:D95\nPTV:X1\nPTV:VOL\nEmpty:VOL\nEmpty:Dmax\n"})
	s := env.openSession(t)

	// relative mode without a prescription
	table, st := s.Analyze()
	if table == nil {
		t.Fatalf("Analyze failed: %s", st.Text)
	}
	if table.Message != MessageComplete {
		t.Errorf("metric failures must not change the message, got %q", table.Message)
	}

	d95, _ := table.Lookup("PTV", "D95")
	if !errors.Is(d95.Err, metric.ErrPrescriptionRequired) || d95.Unit != ErrorUnit || d95.Value != -1 {
		t.Errorf("PTV.D95 = %+v, want prescription error", d95)
	}
	x1, _ := table.Lookup("PTV", "X1")
	if !errors.Is(x1.Err, metric.ErrUnsupportedMetricCode) {
		t.Errorf("PTV.X1 = %+v, want unsupported code error", x1)
	}
	assertMetric(t, table, "PTV", "VOL", 0.512, "cm3")

	for _, code := range []string{"VOL", "Dmax"} {
		m, _ := table.Lookup("Empty", code)
		var sce *dvh.StructureComputeError
		if !errors.As(m.Err, &sce) || !errors.Is(m.Err, dvh.ErrNoContours) {
			t.Errorf("Empty.%s = %+v, want structure compute error", code, m)
		}
	}
	if len(table.Errors()) != 4 {
		t.Errorf("Errors() = %v, want 4 entries", table.Errors())
	}
}

func TestAnalyze_Aliases(t *testing.T) {
	env := newTestEnv(t, map[string]string{"alias": "Prostate:VOL\n"})
	s := env.openSession(t)

	table, _ := s.Analyze()
	if m, _ := table.Lookup("Prostate", "VOL"); m.Unit != MissingUnit {
		t.Fatalf("Prostate should be unresolved before aliasing, got %+v", m)
	}

	if st := s.AddAlias("PTV=Prostate"); !st.OK || st.Text != "Added alias: PTV=Prostate" {
		t.Errorf("AddAlias status = %+v", st)
	}
	table, st := s.Analyze()
	if !st.OK {
		t.Errorf("Analyze status = %+v", st)
	}
	assertMetric(t, table, "Prostate", "VOL", 0.512, "cm3")
	if table.Structures[0].Number != 2 {
		t.Errorf("Prostate resolved to ROI %d, want 2", table.Structures[0].Number)
	}
}

func TestAnalyze_DuplicateMetricsKept(t *testing.T) {
	env := newTestEnv(t, map[string]string{"dup": "PTV:VOL\nRectum:VOL\nPTV:VOL\n"})
	s := env.openSession(t)

	table, _ := s.Analyze()
	if len(table.Structures) != 2 {
		t.Fatalf("got %d structures, want 2", len(table.Structures))
	}
	if got := len(table.Structures[0].Metrics); got != 2 {
		t.Errorf("PTV has %d metrics, want 2", got)
	}

	want := "PTV,VOL,0.512,cm3\nPTV,VOL,0.512,cm3\nRectum,VOL,0.064,cm3\n"
	text, _ := s.Export(ExportFull)
	if text != want {
		t.Errorf("full export = %q, want %q", text, want)
	}
}

func TestSession_CommandGuards(t *testing.T) {
	env := newTestEnv(t, map[string]string{"plan": "PTV:VOL\n"})
	s := New(Options{ConfigsDir: env.configsDir})

	if _, st := s.Analyze(); st.OK || st.Text != StatusSelectBoth {
		t.Errorf("Analyze before selection = %+v", st)
	}
	if _, st := s.ListStructures(); st.OK || st.Text != StatusSelectStructure {
		t.Errorf("ListStructures before selection = %+v", st)
	}
	if _, st := s.ListAliases(); st.OK || st.Text != StatusNoAliases {
		t.Errorf("ListAliases without aliases = %+v", st)
	}
	if _, st := s.Export(ExportValues); st.OK || st.Text != StatusNeedAnalysis {
		t.Errorf("Export before analysis = %+v", st)
	}
	if st := s.SelectStructureFile(phantom.StructureEntry); st.OK {
		t.Error("selecting a file before opening an archive should fail")
	}
	if st := s.OpenArchive(filepath.Join(t.TempDir(), "missing.zip")); st.OK {
		t.Error("opening a missing archive should fail")
	}

	if st := s.OpenArchive(env.archive); !st.OK || st.Text != StatusArchiveRead {
		t.Fatalf("OpenArchive = %+v", st)
	}
	if st := s.SelectStructureFile(phantom.DoseEntry); st.OK {
		t.Error("a dose entry is not a structure set")
	}
	if _, st := s.SelectDoseFile(phantom.StructureEntry); st.OK {
		t.Error("a structure entry is not a dose file")
	}
	if st := s.SelectStructureFile(phantom.StructureEntry); !st.OK {
		t.Fatalf("SelectStructureFile = %+v", st)
	}
	if _, st := s.Analyze(); st.Text != StatusSelectBoth {
		t.Errorf("Analyze with structure only = %+v", st)
	}

	names, st := s.ListStructures()
	if !st.OK || !reflect.DeepEqual(names, []string{"BODY", "PTV", "Rectum", "Empty"}) {
		t.Errorf("ListStructures = %v, %+v", names, st)
	}

	desc, st := s.SelectDoseFile(phantom.DoseEntry)
	if !st.OK || desc != "Minimal phantom" {
		t.Errorf("SelectDoseFile = %q, %+v", desc, st)
	}
	_, _, stored := s.Selection()
	if stored != "Minimal phantom" {
		t.Errorf("stored description = %q", stored)
	}
}

func TestSession_SetPrescription(t *testing.T) {
	s := New(Options{})
	if s.Settings().Prescription != -1 || !s.Settings().Relative {
		t.Errorf("default settings = %+v", s.Settings())
	}

	tests := []struct {
		input string
		ok    bool
		text  string
		rx    float64
	}{
		{"60", true, "Set prescription to: 60Gy", 60},
		{" 42.5 ", true, "Set prescription to: 42.5Gy", 42.5},
		{"abc", false, StatusPrescriptionInvalid, 42.5},
		{"", false, StatusPrescriptionInvalid, 42.5},
		{"NaN", false, StatusPrescriptionInvalid, 42.5},
		{"-1", true, "Set prescription to: -1Gy", -1},
	}
	for _, tc := range tests {
		st := s.SetPrescription(tc.input)
		if st.OK != tc.ok || st.Text != tc.text {
			t.Errorf("SetPrescription(%q) = %+v", tc.input, st)
		}
		if s.Settings().Prescription != tc.rx {
			t.Errorf("after %q prescription = %v, want %v", tc.input, s.Settings().Prescription, tc.rx)
		}
	}
}

func TestSession_Aliases(t *testing.T) {
	s := New(Options{})
	for _, bad := range []string{"PTV", "=PTV", "a=b=c"} {
		if st := s.AddAlias(bad); st.OK || st.Text != StatusAliasInvalid {
			t.Errorf("AddAlias(%q) = %+v", bad, st)
		}
	}
	s.AddAlias("PTV_60=PTV")
	s.AddAlias("Coeur=Heart")
	s.AddAlias("PTV_high=PTV")

	lines, st := s.ListAliases()
	if !st.OK || !reflect.DeepEqual(lines, []string{"PTV_60=PTV", "PTV_high=PTV", "Coeur=Heart"}) {
		t.Errorf("ListAliases = %v, %+v", lines, st)
	}
}

func TestSession_AnalysisSelection(t *testing.T) {
	env := newTestEnv(t, map[string]string{
		"b_plan": "PTV:VOL\n",
		"a_plan": "Rectum:VOL\n",
		"broken": "PTV\n",
	})
	s := env.openSession(t)

	names, err := s.Analyses()
	if err != nil || !reflect.DeepEqual(names, []string{"a_plan", "b_plan", "broken"}) {
		t.Errorf("Analyses() = %v, %v", names, err)
	}
	if name, _ := s.Definition(); name != "a_plan" {
		t.Errorf("default definition = %q, want a_plan", name)
	}

	table, _ := s.Analyze()
	if table.Definition != "a_plan" || table.Structures[0].Name != "Rectum" {
		t.Errorf("default analysis used %q", table.Definition)
	}

	if st := s.SelectAnalysis("missing"); st.OK {
		t.Error("selecting a missing analysis should fail")
	}
	if st := s.SelectAnalysis("broken"); st.OK || !strings.Contains(st.Text, "line 1") {
		t.Errorf("selecting a malformed analysis = %+v", st)
	}
	if st := s.SelectAnalysis("b_plan"); !st.OK {
		t.Fatalf("SelectAnalysis(b_plan) = %+v", st)
	}
	table, _ = s.Analyze()
	if table.Definition != "b_plan" {
		t.Errorf("analysis used %q, want b_plan", table.Definition)
	}

	// a definition broken after selection blocks the run and keeps results
	if err := os.WriteFile(filepath.Join(env.configsDir, "b_plan.txt"), []byte("nope\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if tbl, st := s.Analyze(); tbl != nil || st.OK || !strings.HasPrefix(st.Text, "Malformed analysis config") {
		t.Errorf("Analyze with malformed definition = %v, %+v", tbl, st)
	}
	if s.Results() != table {
		t.Error("previous results should be kept after a failed run")
	}
}

type fakeClipboard struct {
	text string
	err  error
}

func (f *fakeClipboard) WriteAll(text string) error {
	if f.err != nil {
		return f.err
	}
	f.text = text
	return nil
}

func TestSession_ExportAndCopy(t *testing.T) {
	env := newTestEnv(t, map[string]string{"plan": "PTV:VOL\nHeart:V30\nRectum:VOL\n"})
	s := env.openSession(t)

	clip := &fakeClipboard{}
	if st := s.Copy(ExportValues, clip); st.OK || st.Text != StatusNeedAnalysis {
		t.Errorf("Copy before analysis = %+v", st)
	}

	s.Analyze()
	if st := s.Copy(ExportValues, clip); !st.OK || st.Text != StatusCopied {
		t.Errorf("Copy = %+v", st)
	}
	if clip.text != "0.512,-1,0.064" {
		t.Errorf("values export = %q", clip.text)
	}
	if tokens := strings.Split(clip.text, ","); len(tokens) != 3 || tokens[len(tokens)-1] == "" {
		t.Errorf("values export tokens = %q", tokens)
	}

	s.Copy(ExportFull, clip)
	if clip.text != "PTV,VOL,0.512,cm3\nHeart,V30,-1,N/A\nRectum,VOL,0.064,cm3\n" {
		t.Errorf("full export = %q", clip.text)
	}

	broken := &fakeClipboard{err: errors.New("no display")}
	if st := s.Copy(ExportFull, broken); st.OK {
		t.Error("clipboard failure should be reported")
	}
}

func TestSession_OpenArchiveClearsResults(t *testing.T) {
	env := newTestEnv(t, map[string]string{"plan": "PTV:VOL\n"})
	s := env.openSession(t)

	if _, st := s.Analyze(); !st.OK {
		t.Fatalf("Analyze: %s", st.Text)
	}
	if _, st := s.Export(ExportFull); !st.OK {
		t.Fatalf("Export after analysis = %+v", st)
	}

	if st := s.OpenArchive(env.archive); !st.OK {
		t.Fatalf("OpenArchive: %s", st.Text)
	}
	if s.Results() != nil {
		t.Error("results should be cleared when an archive is opened")
	}
	if text, st := s.Export(ExportFull); st.OK || st.Text != StatusNeedAnalysis || text != "" {
		t.Errorf("Export after reopen = %q, %+v", text, st)
	}
	if st := s.Copy(ExportValues, &fakeClipboard{}); st.OK || st.Text != StatusNeedAnalysis {
		t.Errorf("Copy after reopen = %+v", st)
	}
}

func TestSession_ConcurrentCommands(t *testing.T) {
	env := newTestEnv(t, map[string]string{"plan": "PTV:VOL\nPTV:D95\n"})
	s := env.openSession(t)
	s.SetPrescription("60")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			s.Analyze()
		}()
		go func() {
			defer wg.Done()
			s.AddAlias("CTV=PTV")
		}()
		go func() {
			defer wg.Done()
			s.SetRelative(true)
		}()
	}
	wg.Wait()

	table := s.Results()
	if table == nil {
		t.Fatal("no results after concurrent runs")
	}
	assertMetric(t, table, "PTV", "D95", 100, "%")
}
