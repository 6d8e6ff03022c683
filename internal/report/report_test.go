package report

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/mrsinham/dvhgrab/internal/dvh"
	"github.com/mrsinham/dvhgrab/internal/session"
)

func sampleResults() *session.ResultsTable {
	diff := make([]float64, 6001)
	diff[2000] = 1
	diff[6000] = 3
	ptv := dvh.FromDifferential("PTV", diff)

	return &session.ResultsTable{
		Message: session.MessageMissing,
		Structures: []session.StructureResult{
			{Name: "PTV", Resolved: true, Number: 2, DVH: ptv, Metrics: []session.MetricResult{
				{Code: "VOL", Value: 4, Unit: "cm3"},
				{Code: "D95", Value: 33.33333333, Unit: "%"},
			}},
			{Name: "Heart", Metrics: []session.MetricResult{
				{Code: "V30", Value: session.MissingValue, Unit: session.MissingUnit},
			}},
			{Name: "Empty", Resolved: true, Metrics: []session.MetricResult{
				{Code: "Dmax", Value: session.MissingValue, Unit: session.ErrorUnit, Err: dvh.ErrNoContours},
			}},
		},
	}
}

func TestCells(t *testing.T) {
	cells := Cells(sampleResults())
	if len(cells) != 4 {
		t.Fatalf("got %d rows, want 4", len(cells))
	}
	want := []string{"PTV", "D95", "33.333", "%"}
	for i, v := range want {
		if cells[1][i] != v {
			t.Errorf("cell [1][%d] = %q, want %q", i, cells[1][i], v)
		}
	}
	if cells[2][2] != "-1" || cells[2][3] != "N/A" {
		t.Errorf("missing row = %v", cells[2])
	}
}

func TestTable(t *testing.T) {
	out := Table(sampleResults())
	for _, s := range append([]string{"PTV", "Heart", "33.333", "N/A", "ERR"}, Headings...) {
		if !strings.Contains(out, s) {
			t.Errorf("table is missing %q:\n%s", s, out)
		}
	}
}

func TestMessageAndErrors(t *testing.T) {
	res := sampleResults()
	if !strings.Contains(Message(res), session.MessageMissing) {
		t.Errorf("Message() = %q", Message(res))
	}
	if !strings.Contains(Errors(res), "Empty Dmax") {
		t.Errorf("Errors() = %q", Errors(res))
	}
	if Errors(&session.ResultsTable{}) != "" {
		t.Error("no errors should render nothing")
	}
}

func TestPlotDVH(t *testing.T) {
	curves := CurvesFromResults(sampleResults())
	if len(curves) != 1 || curves[0].Label != "PTV" {
		t.Fatalf("curves = %+v", curves)
	}

	var buf bytes.Buffer
	if err := PlotDVH(&buf, curves); err != nil {
		t.Fatalf("PlotDVH failed: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("chart is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != chartWidth || b.Dy() != chartHeight {
		t.Errorf("chart is %dx%d", b.Dx(), b.Dy())
	}

	// the curve starts at 100% volume for 0 Gy
	r, g, b, _ := img.At(marginLeft+1, marginTop).RGBA()
	c := curveColors[0]
	if uint8(r>>8) != c.R || uint8(g>>8) != c.G || uint8(b>>8) != c.B {
		t.Errorf("expected curve color at the top-left of the plot, got %v,%v,%v", r>>8, g>>8, b>>8)
	}

	if err := PlotDVH(&buf, nil); err == nil {
		t.Error("plotting nothing should fail")
	}
}

func TestNiceCeil(t *testing.T) {
	tests := map[float64]float64{0: 5, 3: 5, 60: 60, 61.2: 65}
	for in, want := range tests {
		if got := niceCeil(in); got != want {
			t.Errorf("niceCeil(%v) = %v, want %v", in, got, want)
		}
	}
}
