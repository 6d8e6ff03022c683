package rt

import (
	"fmt"
	"math"
	"sort"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// planeTolerance is the distance (mm) under which two contour planes are
// considered the same plane.
const planeTolerance = 1e-3

// Point is a contour vertex in patient coordinates (mm).
type Point struct {
	X, Y float64
}

// Contour is one closed planar polygon of a structure.
type Contour struct {
	Z      float64
	Points []Point
}

// Plane groups the contours of a structure lying at the same z.
type Plane struct {
	Z        float64
	Contours [][]Point
}

// Structure is a region of interest of a structure set.
type Structure struct {
	Number   int
	Name     string
	Contours []Contour
}

// CatalogEntry is one structure of a catalog: its ROI number and name.
type CatalogEntry struct {
	Number int
	Name   string
}

// Catalog lists the structures of a structure set in file order.
type Catalog []CatalogEntry

// Names returns the structure names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, e := range c {
		names[i] = e.Name
	}
	return names
}

// StructureSet is the parsed content of an RT Structure Set object.
type StructureSet struct {
	Label      string
	Structures []Structure
}

// Catalog builds a fresh catalog of the structure set.
func (s *StructureSet) Catalog() Catalog {
	catalog := make(Catalog, len(s.Structures))
	for i, st := range s.Structures {
		catalog[i] = CatalogEntry{Number: st.Number, Name: st.Name}
	}
	return catalog
}

// Structure returns the structure with the given ROI number.
func (s *StructureSet) Structure(number int) (*Structure, bool) {
	for i := range s.Structures {
		if s.Structures[i].Number == number {
			return &s.Structures[i], true
		}
	}
	return nil, false
}

// Planes groups the contours by z, sorted by increasing z.
func (s *Structure) Planes() []Plane {
	contours := make([]Contour, len(s.Contours))
	copy(contours, s.Contours)
	sort.SliceStable(contours, func(i, j int) bool { return contours[i].Z < contours[j].Z })

	var planes []Plane
	for _, c := range contours {
		if n := len(planes); n > 0 && math.Abs(planes[n-1].Z-c.Z) < planeTolerance {
			planes[n-1].Contours = append(planes[n-1].Contours, c.Points)
			continue
		}
		planes = append(planes, Plane{Z: c.Z, Contours: [][]Point{c.Points}})
	}
	return planes
}

// ParseStructureSet reads the ROI catalog and closed planar contours of an
// RT Structure Set dataset. Structures keep the StructureSetROISequence order;
// contours referencing unknown ROI numbers are ignored.
func ParseStructureSet(ds dicom.Dataset) (*StructureSet, error) {
	ss := &StructureSet{}
	if e, err := ds.FindElementByTag(tag.StructureSetLabel); err == nil {
		ss.Label = stringValue(e)
	}

	roiSeq, err := requireElement(ds, tag.StructureSetROISequence, "StructureSetROISequence")
	if err != nil {
		return nil, err
	}

	index := make(map[int]int)
	for i, item := range sequenceItems(roiSeq) {
		numElem, ok := findElement(item, tag.ROINumber)
		if !ok {
			return nil, fmt.Errorf("structure set ROI item %d: missing ROINumber", i)
		}
		number, err := intValue(numElem)
		if err != nil {
			return nil, fmt.Errorf("structure set ROI item %d: %w", i, err)
		}
		name := ""
		if nameElem, ok := findElement(item, tag.ROIName); ok {
			name = stringValue(nameElem)
		}
		index[number] = len(ss.Structures)
		ss.Structures = append(ss.Structures, Structure{Number: number, Name: name})
	}

	contourSeq, err := ds.FindElementByTag(tag.ROIContourSequence)
	if err != nil {
		// A structure set without contours still has a usable catalog.
		return ss, nil
	}

	for i, item := range sequenceItems(contourSeq) {
		refElem, ok := findElement(item, tag.ReferencedROINumber)
		if !ok {
			return nil, fmt.Errorf("ROI contour item %d: missing ReferencedROINumber", i)
		}
		ref, err := intValue(refElem)
		if err != nil {
			return nil, fmt.Errorf("ROI contour item %d: %w", i, err)
		}
		pos, ok := index[ref]
		if !ok {
			continue
		}
		seq, ok := findElement(item, tag.ContourSequence)
		if !ok {
			continue
		}
		for j, contourItem := range sequenceItems(seq) {
			contour, ok, err := parseContour(contourItem)
			if err != nil {
				return nil, fmt.Errorf("ROI %d contour %d: %w", ref, j, err)
			}
			if ok {
				ss.Structures[pos].Contours = append(ss.Structures[pos].Contours, contour)
			}
		}
	}

	return ss, nil
}

// parseContour converts one ContourSequence item. Non-planar geometries
// (POINT, OPEN_PLANAR) are reported as not ok.
func parseContour(item []*dicom.Element) (Contour, bool, error) {
	if typeElem, ok := findElement(item, tag.ContourGeometricType); ok {
		if stringValue(typeElem) != "CLOSED_PLANAR" {
			return Contour{}, false, nil
		}
	}

	dataElem, ok := findElement(item, tag.ContourData)
	if !ok {
		return Contour{}, false, nil
	}
	data, err := floatValues(dataElem)
	if err != nil {
		return Contour{}, false, err
	}
	if len(data)%3 != 0 {
		return Contour{}, false, fmt.Errorf("contour data has %d values, not a multiple of 3", len(data))
	}
	if len(data) < 9 {
		return Contour{}, false, nil
	}

	contour := Contour{Z: data[2], Points: make([]Point, 0, len(data)/3)}
	for k := 0; k < len(data); k += 3 {
		contour.Points = append(contour.Points, Point{X: data[k], Y: data[k+1]})
	}
	return contour, true, nil
}
