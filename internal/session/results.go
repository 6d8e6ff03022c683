package session

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mrsinham/dvhgrab/internal/dvh"
	"github.com/mrsinham/dvhgrab/internal/metric"
)

// Sentinels recorded in place of a value.
const (
	// MissingValue and MissingUnit mark metrics of unresolved structures.
	MissingValue = -1.0
	MissingUnit  = "N/A"
	// ErrorUnit marks metrics that failed to compute.
	ErrorUnit = "ERR"
)

// Summary messages of an analysis.
const (
	MessageComplete = "Analyse Complete"
	MessageMissing  = "Some structures not found!"
)

// MetricResult is one computed metric. Err is set when the metric failed,
// in which case Value is -1 and Unit is ErrorUnit.
type MetricResult struct {
	Code  string
	Value float64
	Unit  string
	Err   error
}

// StructureResult holds the metrics of one analysed structure, in
// definition order.
type StructureResult struct {
	Name     string
	Resolved bool
	// Number is the ROI number the name resolved to.
	Number  int
	Metrics []MetricResult
	// DVH is the histogram the metrics were derived from, nil when the
	// structure was not resolved or its DVH failed.
	DVH *dvh.DVH
}

// ResultsTable is the outcome of one analysis.
type ResultsTable struct {
	RunID         string
	Archive       string
	StructureFile string
	DoseFile      string
	Definition    string
	Settings      metric.Settings
	Structures    []StructureResult
	Message       string
}

// Row is a flattened result line.
type Row struct {
	Structure string
	Metric    string
	Value     float64
	Unit      string
	Err       error
}

// Complete reports whether every structure was resolved.
func (t *ResultsTable) Complete() bool {
	for _, s := range t.Structures {
		if !s.Resolved {
			return false
		}
	}
	return true
}

// Rows flattens the table in definition order.
func (t *ResultsTable) Rows() []Row {
	var rows []Row
	for _, s := range t.Structures {
		for _, m := range s.Metrics {
			rows = append(rows, Row{Structure: s.Name, Metric: m.Code, Value: m.Value, Unit: m.Unit, Err: m.Err})
		}
	}
	return rows
}

// Errors returns the metric failures of the table.
func (t *ResultsTable) Errors() []error {
	var errs []error
	for _, r := range t.Rows() {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", r.Structure, r.Metric, r.Err))
		}
	}
	return errs
}

// Lookup returns the first result for structure and code.
func (t *ResultsTable) Lookup(structure, code string) (MetricResult, bool) {
	for _, s := range t.Structures {
		if s.Name != structure {
			continue
		}
		for _, m := range s.Metrics {
			if m.Code == code {
				return m, true
			}
		}
	}
	return MetricResult{}, false
}

// ExportFormat selects the text export layout.
type ExportFormat string

const (
	// ExportFull writes one structure,metric,value,unit line per result.
	ExportFull ExportFormat = "full"
	// ExportValues writes the values only, comma separated on one line.
	ExportValues ExportFormat = "values"
)

// ParseExportFormat validates an export format name.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(s))) {
	case ExportFull:
		return ExportFull, nil
	case ExportValues:
		return ExportValues, nil
	default:
		return "", fmt.Errorf("invalid export format %q (valid: full, values)", s)
	}
}

// FormatValue renders a value in its shortest decimal form.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Export renders the table as text.
func (t *ResultsTable) Export(format ExportFormat) string {
	rows := t.Rows()
	var b strings.Builder
	switch format {
	case ExportValues:
		for i, r := range rows {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(FormatValue(r.Value))
		}
	default:
		for _, r := range rows {
			fmt.Fprintf(&b, "%s,%s,%s,%s\n", r.Structure, r.Metric, FormatValue(r.Value), r.Unit)
		}
	}
	return b.String()
}
