package dvh

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/mrsinham/dvhgrab/internal/rt"
	"golang.org/x/image/vector"
)

// Calculator computes the DVH of one structure of a structure set over a
// dose grid.
type Calculator interface {
	Calculate(ss *rt.StructureSet, dose *rt.DoseGrid, number int) (*DVH, error)
}

// StructureComputeError reports a DVH failure scoped to one structure.
type StructureComputeError struct {
	Structure string
	Number    int
	Err       error
}

func (e *StructureComputeError) Error() string {
	return fmt.Sprintf("structure %q (ROI %d): %v", e.Structure, e.Number, e.Err)
}

func (e *StructureComputeError) Unwrap() error {
	return e.Err
}

var (
	// ErrNoContours is returned for structures without closed planar contours.
	ErrNoContours = errors.New("structure has no closed planar contours")
	// ErrNoOverlap is returned when no contour plane intersects the dose grid.
	ErrNoOverlap = errors.New("structure does not overlap the dose grid")
	// ErrUnknownStructure is returned for ROI numbers absent from the structure set.
	ErrUnknownStructure = errors.New("structure not in structure set")
)

// coverageThreshold is the alpha above which a dose voxel counts as inside a
// contour (its center is covered).
const coverageThreshold = 0x80

// GridCalculator rasterizes contours onto the dose grid and histograms the
// dose of the covered voxels.
type GridCalculator struct{}

// Calculate implements Calculator.
func (GridCalculator) Calculate(ss *rt.StructureSet, dose *rt.DoseGrid, number int) (*DVH, error) {
	st, ok := ss.Structure(number)
	if !ok {
		return nil, fmt.Errorf("ROI %d: %w", number, ErrUnknownStructure)
	}
	planes := st.Planes()
	if len(planes) == 0 {
		return nil, ErrNoContours
	}

	thickness := planeThickness(planes, dose)
	voxelCC := dose.RowSpacing * dose.ColSpacing * thickness / 1000

	nbins := binIndex(dose.MaxDose()) + 2
	voxels := make([]int, nbins)
	overlap := false

	for _, plane := range planes {
		dosePlane, ok := dose.PlaneAt(plane.Z)
		if !ok {
			continue
		}
		mask := planeMask(plane, dose)
		for i, inside := range mask {
			if !inside {
				continue
			}
			overlap = true
			b := binIndex(dosePlane[i])
			if b < 0 {
				b = 0
			}
			if b >= nbins {
				b = nbins - 1
			}
			voxels[b]++
		}
	}

	if !overlap {
		return nil, ErrNoOverlap
	}
	differential := make([]float64, nbins)
	for i, n := range voxels {
		differential[i] = float64(n) * voxelCC
	}
	return FromDifferential(st.Name, differential), nil
}

// planeThickness is the smallest positive spacing between contour planes.
// Single-plane structures fall back to the dose frame spacing, then to the
// column pixel spacing.
func planeThickness(planes []rt.Plane, dose *rt.DoseGrid) float64 {
	thickness := math.Inf(1)
	for i := 1; i < len(planes); i++ {
		if d := planes[i].Z - planes[i-1].Z; d > 0 && d < thickness {
			thickness = d
		}
	}
	if !math.IsInf(thickness, 1) {
		return thickness
	}
	if s := dose.FrameSpacing(); s > 0 {
		return s
	}
	return dose.ColSpacing
}

// planeMask returns, for each dose voxel of a plane, whether it lies inside
// the plane's contours. Overlapping contours are combined with XOR so inner
// contours cut holes.
func planeMask(plane rt.Plane, dose *rt.DoseGrid) []bool {
	mask := make([]bool, dose.Rows*dose.Cols)
	bounds := image.Rect(0, 0, dose.Cols, dose.Rows)

	for _, contour := range plane.Contours {
		alpha := rasterize(contour, dose, bounds)
		for i, a := range alpha.Pix {
			if a >= coverageThreshold {
				mask[i] = !mask[i]
			}
		}
	}
	return mask
}

// rasterize fills one polygon into an alpha mask in dose grid pixel space,
// where voxel (col, row) spans [col, col+1) x [row, row+1).
func rasterize(contour []rt.Point, dose *rt.DoseGrid, bounds image.Rectangle) *image.Alpha {
	alpha := image.NewAlpha(bounds)
	r := vector.NewRasterizer(bounds.Dx(), bounds.Dy())

	toPixel := func(p rt.Point) (float32, float32) {
		x := (p.X-dose.Origin[0])/dose.ColSpacing + 0.5
		y := (p.Y-dose.Origin[1])/dose.RowSpacing + 0.5
		return float32(x), float32(y)
	}

	x, y := toPixel(contour[0])
	r.MoveTo(x, y)
	for _, p := range contour[1:] {
		x, y = toPixel(p)
		r.LineTo(x, y)
	}
	r.ClosePath()
	r.Draw(alpha, bounds, image.Opaque, image.Point{})
	return alpha
}

// Provider retrieves DVHs for resolved structures.
type Provider struct {
	Calculator Calculator
}

// NewProvider returns a provider backed by calc, or by the grid calculator
// when calc is nil.
func NewProvider(calc Calculator) *Provider {
	if calc == nil {
		calc = GridCalculator{}
	}
	return &Provider{Calculator: calc}
}

// GetDVH computes the DVH of ROI number. rxDose is attached to the result for
// prescription-relative statistics. Failures are wrapped in a
// StructureComputeError.
func (p *Provider) GetDVH(ss *rt.StructureSet, dose *rt.DoseGrid, number int, rxDose float64) (*DVH, error) {
	name := ""
	if st, ok := ss.Structure(number); ok {
		name = st.Name
	}
	d, err := p.Calculator.Calculate(ss, dose, number)
	if err != nil {
		return nil, &StructureComputeError{Structure: name, Number: number, Err: err}
	}
	d.RxDose = rxDose
	return d, nil
}
