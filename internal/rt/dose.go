package rt

import (
	"fmt"
	"math"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// axialOrientation is the only dose grid orientation supported.
var axialOrientation = []float64{1, 0, 0, 0, 1, 0}

// DoseGrid is a 3D dose distribution in Gy.
type DoseGrid struct {
	// Origin is the patient position (mm) of the first voxel center.
	Origin [3]float64
	// RowSpacing is the distance between rows (y), ColSpacing between columns (x).
	RowSpacing float64
	ColSpacing float64
	Rows       int
	Cols       int
	// FrameZ holds the absolute z (mm) of each frame, increasing or decreasing.
	FrameZ []float64
	// Frames holds one row-major dose plane per frame.
	Frames [][]float64
}

// FrameSpacing returns the distance between the first two frames, or 0 for
// a single-frame grid.
func (g *DoseGrid) FrameSpacing() float64 {
	if len(g.FrameZ) < 2 {
		return 0
	}
	return math.Abs(g.FrameZ[1] - g.FrameZ[0])
}

// MaxDose returns the highest dose of the grid.
func (g *DoseGrid) MaxDose() float64 {
	maxDose := 0.0
	for _, frame := range g.Frames {
		for _, d := range frame {
			maxDose = math.Max(maxDose, d)
		}
	}
	return maxDose
}

// PlaneAt returns the dose plane at z: the matching frame, or a linear
// interpolation between the two bracketing frames. ok is false when z lies
// outside the grid.
func (g *DoseGrid) PlaneAt(z float64) ([]float64, bool) {
	for i, fz := range g.FrameZ {
		if math.Abs(fz-z) < planeTolerance {
			return g.Frames[i], true
		}
	}

	for i := 0; i+1 < len(g.FrameZ); i++ {
		z0, z1 := g.FrameZ[i], g.FrameZ[i+1]
		lo, hi := math.Min(z0, z1), math.Max(z0, z1)
		if z < lo || z > hi {
			continue
		}
		t := (z - z0) / (z1 - z0)
		a, b := g.Frames[i], g.Frames[i+1]
		plane := make([]float64, len(a))
		for k := range plane {
			plane[k] = a[k] + t*(b[k]-a[k])
		}
		return plane, true
	}

	return nil, false
}

// ParseDoseGrid reads the geometry and pixel data of an RT Dose dataset,
// applying DoseGridScaling and converting to Gy.
func ParseDoseGrid(ds dicom.Dataset) (*DoseGrid, error) {
	g := &DoseGrid{}

	unitScale := 1.0
	if e, err := ds.FindElementByTag(tag.DoseUnits); err == nil {
		switch strings.ToUpper(stringValue(e)) {
		case "GY", "":
		case "CGY":
			unitScale = 0.01
		default:
			return nil, fmt.Errorf("unsupported dose units %q", stringValue(e))
		}
	}

	scaling := 1.0
	if e, err := ds.FindElementByTag(tag.DoseGridScaling); err == nil {
		values, err := floatValues(e)
		if err != nil {
			return nil, err
		}
		if len(values) > 0 {
			scaling = values[0]
		}
	}

	if e, err := ds.FindElementByTag(tag.ImageOrientationPatient); err == nil {
		values, err := floatValues(e)
		if err != nil {
			return nil, err
		}
		if len(values) != 6 {
			return nil, fmt.Errorf("ImageOrientationPatient has %d values, want 6", len(values))
		}
		for i, v := range values {
			if math.Abs(v-axialOrientation[i]) > 1e-3 {
				return nil, fmt.Errorf("unsupported dose grid orientation %v", values)
			}
		}
	}

	posElem, err := requireElement(ds, tag.ImagePositionPatient, "ImagePositionPatient")
	if err != nil {
		return nil, err
	}
	pos, err := floatValues(posElem)
	if err != nil {
		return nil, err
	}
	if len(pos) != 3 {
		return nil, fmt.Errorf("ImagePositionPatient has %d values, want 3", len(pos))
	}
	copy(g.Origin[:], pos)

	spacingElem, err := requireElement(ds, tag.PixelSpacing, "PixelSpacing")
	if err != nil {
		return nil, err
	}
	spacing, err := floatValues(spacingElem)
	if err != nil {
		return nil, err
	}
	if len(spacing) != 2 || spacing[0] <= 0 || spacing[1] <= 0 {
		return nil, fmt.Errorf("invalid PixelSpacing %v", spacing)
	}
	g.RowSpacing, g.ColSpacing = spacing[0], spacing[1]

	rowsElem, err := requireElement(ds, tag.Rows, "Rows")
	if err != nil {
		return nil, err
	}
	if g.Rows, err = intValue(rowsElem); err != nil {
		return nil, err
	}
	colsElem, err := requireElement(ds, tag.Columns, "Columns")
	if err != nil {
		return nil, err
	}
	if g.Cols, err = intValue(colsElem); err != nil {
		return nil, err
	}

	offsets := []float64{0}
	if e, err := ds.FindElementByTag(tag.GridFrameOffsetVector); err == nil {
		if offsets, err = floatValues(e); err != nil {
			return nil, err
		}
	}
	g.FrameZ = frameZ(g.Origin[2], offsets)

	pixelElem, err := requireElement(ds, tag.PixelData, "PixelData")
	if err != nil {
		return nil, err
	}
	info, ok := pixelElem.Value.GetValue().(dicom.PixelDataInfo)
	if !ok {
		return nil, fmt.Errorf("PixelData has unexpected value type %T", pixelElem.Value.GetValue())
	}
	if info.IntentionallySkipped {
		return nil, fmt.Errorf("pixel data was not read")
	}
	if len(info.Frames) != len(g.FrameZ) {
		return nil, fmt.Errorf("dose grid has %d frames but %d frame offsets", len(info.Frames), len(g.FrameZ))
	}

	factor := scaling * unitScale
	for i, f := range info.Frames {
		if f.Encapsulated {
			return nil, fmt.Errorf("frame %d: encapsulated dose pixel data is not supported", i)
		}
		plane, err := readPlane(f.NativeData, g.Rows, g.Cols, factor)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		g.Frames = append(g.Frames, plane)
	}

	return g, nil
}

// frameZ turns GridFrameOffsetVector values into absolute z positions. The
// vector is relative when its first value is zero and absolute when it
// starts at the origin z.
func frameZ(originZ float64, offsets []float64) []float64 {
	absolute := len(offsets) > 0 && offsets[0] != 0 && math.Abs(offsets[0]-originZ) < planeTolerance
	z := make([]float64, len(offsets))
	for i, o := range offsets {
		if absolute {
			z[i] = o
		} else {
			z[i] = originZ + o
		}
	}
	return z
}

// nativePixels is the part of the parser's native frame API readPlane needs.
type nativePixels interface {
	Rows() int
	Cols() int
	GetPixel(x, y int) ([]int, error)
}

func readPlane(frame nativePixels, rows, cols int, factor float64) ([]float64, error) {
	if frame == nil {
		return nil, fmt.Errorf("missing native pixel data")
	}
	if frame.Rows() != rows || frame.Cols() != cols {
		return nil, fmt.Errorf("frame is %dx%d, want %dx%d", frame.Rows(), frame.Cols(), rows, cols)
	}
	plane := make([]float64, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			px, err := frame.GetPixel(x, y)
			if err != nil {
				return nil, err
			}
			plane[y*cols+x] = float64(px[0]) * factor
		}
	}
	return plane, nil
}
