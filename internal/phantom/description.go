// Package phantom writes synthetic RT archives: a zip holding an RT
// Structure Set and an RT Dose built from simple geometric shapes, each
// shape delivering a uniform dose.
package phantom

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Description is the YAML description of a phantom archive.
type Description struct {
	PatientName      string  `yaml:"patient_name"`
	PatientID        string  `yaml:"patient_id"`
	StudyDescription string  `yaml:"study_description,omitempty"`
	DoseUnits        string  `yaml:"dose_units"`
	Seed             string  `yaml:"seed"`
	Grid             Grid    `yaml:"grid"`
	BackgroundDose   float64 `yaml:"background_dose"`
	// Structures are painted in order, so later structures override the
	// dose of earlier ones where they overlap.
	Structures []StructureSpec `yaml:"structures"`
	// Extras adds entries of other kinds: "ct" writes a CT image, "corrupt"
	// writes a .dcm entry that is not DICOM, "text" writes a non-DICOM file.
	Extras []string `yaml:"extras,omitempty"`
}

// Grid is the dose grid geometry. Origin is the center of the first voxel.
type Grid struct {
	Rows         int        `yaml:"rows"`
	Cols         int        `yaml:"cols"`
	Slices       int        `yaml:"slices"`
	Spacing      float64    `yaml:"spacing"`
	SliceSpacing float64    `yaml:"slice_spacing"`
	Origin       [3]float64 `yaml:"origin,flow"`
}

// StructureSpec describes one structure.
type StructureSpec struct {
	Name   string     `yaml:"name"`
	Shape  string     `yaml:"shape"`
	Center [3]float64 `yaml:"center,flow"`
	// Size is the full extent of a box.
	Size [3]float64 `yaml:"size,flow,omitempty"`
	// Radius of a sphere or cylinder; Size[2] is the cylinder height.
	Radius float64 `yaml:"radius,omitempty"`
	Dose   float64 `yaml:"dose"`
	// NoContours lists the ROI without any contour; it delivers no dose.
	NoContours bool `yaml:"no_contours,omitempty"`
}

// Extra entry kinds.
const (
	ExtraCT      = "ct"
	ExtraCorrupt = "corrupt"
	ExtraText    = "text"
	// ExtraPrivate adds planning system private tags to the RT objects.
	ExtraPrivate = "private"
)

// Default returns a small prostate-like phantom.
func Default() *Description {
	return &Description{
		PatientName:      "PHANTOM^PROSTATE",
		PatientID:        "PH0001",
		StudyDescription: "Prostate VMAT phantom",
		DoseUnits:        "GY",
		Seed:             "dvhgrab",
		Grid: Grid{
			Rows: 40, Cols: 40, Slices: 20,
			Spacing: 2, SliceSpacing: 2,
			Origin: [3]float64{-39, -39, -19},
		},
		BackgroundDose: 0,
		Structures: []StructureSpec{
			{Name: "BODY", Shape: ShapeBox, Center: [3]float64{0, 0, 0}, Size: [3]float64{70, 70, 36}, Dose: 10},
			{Name: "Rectum", Shape: ShapeCylinder, Center: [3]float64{0, 20, 0}, Radius: 7, Size: [3]float64{0, 0, 24}, Dose: 30},
			{Name: "PTV", Shape: ShapeBox, Center: [3]float64{0, 0, 0}, Size: [3]float64{20, 20, 20}, Dose: 60},
			{Name: "Bladder", Shape: ShapeSphere, Center: [3]float64{0, -22, 0}, Radius: 9, Dose: 25},
		},
		Extras: []string{ExtraCT, ExtraPrivate, ExtraText},
	}
}

// Minimal returns a small phantom whose structures align with voxel
// boundaries, so volumes and doses are exact:
//
//	BODY    20x20x10 voxels at 10 Gy, 32 cm3
//	PTV     4x4x4 voxels at 60 Gy, 0.512 cm3
//	Rectum  2x2x2 voxels at 30 Gy, 0.064 cm3
//	Empty   listed without contours
//
// It also carries a CT image and an unreadable .dcm entry.
func Minimal() *Description {
	return &Description{
		PatientName:      "PHANTOM^MINIMAL",
		PatientID:        "PH0000",
		StudyDescription: "Minimal phantom",
		DoseUnits:        "GY",
		Seed:             "minimal",
		Grid: Grid{
			Rows: 20, Cols: 20, Slices: 10,
			Spacing: 2, SliceSpacing: 2,
			Origin: [3]float64{-19, -19, -9},
		},
		Structures: []StructureSpec{
			{Name: "BODY", Shape: ShapeBox, Center: [3]float64{0, 0, 0}, Size: [3]float64{40, 40, 20}, Dose: 10},
			{Name: "PTV", Shape: ShapeBox, Center: [3]float64{0, 0, 0}, Size: [3]float64{8, 8, 8}, Dose: 60},
			{Name: "Rectum", Shape: ShapeBox, Center: [3]float64{0, 10, 0}, Size: [3]float64{4, 4, 4}, Dose: 30},
			{Name: "Empty", Shape: ShapeBox, Center: [3]float64{0, 0, 0}, Size: [3]float64{2, 2, 2}, NoContours: true},
		},
		Extras: []string{ExtraCT, ExtraCorrupt},
	}
}

// Presets lists the built-in descriptions by name.
func Presets() map[string]func() *Description {
	return map[string]func() *Description{
		"default": Default,
		"minimal": Minimal,
	}
}

// Validate checks the description for values the writer cannot handle.
func (d *Description) Validate() error {
	g := d.Grid
	if g.Rows <= 0 || g.Cols <= 0 || g.Slices <= 0 {
		return fmt.Errorf("grid dimensions must be positive, got %dx%dx%d", g.Rows, g.Cols, g.Slices)
	}
	if g.Spacing <= 0 || g.SliceSpacing <= 0 {
		return fmt.Errorf("grid spacing must be positive")
	}
	if g.Rows*g.Cols*g.Slices > 512*512*256 {
		return fmt.Errorf("grid too large: %dx%dx%d", g.Rows, g.Cols, g.Slices)
	}
	switch strings.ToUpper(d.DoseUnits) {
	case "GY", "CGY":
	default:
		return fmt.Errorf("dose_units must be GY or CGY, got %q", d.DoseUnits)
	}
	if d.BackgroundDose < 0 {
		return fmt.Errorf("background_dose must not be negative")
	}
	for i, s := range d.Structures {
		if s.Name == "" {
			return fmt.Errorf("structure %d: name is required", i+1)
		}
		if s.Dose < 0 {
			return fmt.Errorf("structure %s: dose must not be negative", s.Name)
		}
		if _, err := s.shape(); err != nil {
			return fmt.Errorf("structure %s: %w", s.Name, err)
		}
	}
	for _, e := range d.Extras {
		switch e {
		case ExtraCT, ExtraCorrupt, ExtraText, ExtraPrivate:
		default:
			return fmt.Errorf("unknown extra %q (valid: ct, corrupt, text, private)", e)
		}
	}
	return nil
}

// LoadFromYAML reads a description from a YAML file. Missing fields keep
// the values of Default, except structures and extras which are replaced
// when present.
func LoadFromYAML(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read phantom description: %w", err)
	}

	d := Default()
	d.Structures = nil
	d.Extras = nil
	if err := yaml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("failed to parse phantom description: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid phantom description: %w", err)
	}
	return d, nil
}

// SaveToYAML writes the description to a YAML file.
func (d *Description) SaveToYAML(path string) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal phantom description: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write phantom description: %w", err)
	}
	return nil
}
