package phantom

import (
	"archive/zip"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/mrsinham/dvhgrab/internal/rt"
	"github.com/mrsinham/dvhgrab/internal/util"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Entry names written into the archive.
const (
	StructureEntry = "RS.phantom.dcm"
	DoseEntry      = "RD.phantom.dcm"
	CTEntry        = "CT.phantom.1.dcm"
	CorruptEntry   = "broken.dcm"
	TextEntry      = "README.txt"
)

// maxPixelValue is the largest stored dose value.
const maxPixelValue = 65535

// uids holds the identifiers shared by the objects of one phantom.
type uids struct {
	study, frameOfReference         string
	structureSeries, doseSeries     string
	structureInstance, doseInstance string
	ctSeries, ctInstance            string
}

func newUIDs(seed string) uids {
	u := func(name string) string { return util.DeterministicUID(seed + "/" + name) }
	return uids{
		study:             u("study"),
		frameOfReference:  u("frame"),
		structureSeries:   u("rtstruct-series"),
		doseSeries:        u("rtdose-series"),
		structureInstance: u("rtstruct"),
		doseInstance:      u("rtdose"),
		ctSeries:          u("ct-series"),
		ctInstance:        u("ct"),
	}
}

// framePositions returns the z of every dose frame.
func (g Grid) framePositions() []float64 {
	z := make([]float64, g.Slices)
	for k := range z {
		z[k] = g.Origin[2] + float64(k)*g.SliceSpacing
	}
	return z
}

// DoseAt returns the dose (Gy) the phantom delivers at a point.
func (d *Description) DoseAt(x, y, z float64) float64 {
	dose := d.BackgroundDose
	for _, s := range d.Structures {
		if s.NoContours {
			continue
		}
		sh, err := s.shape()
		if err != nil || !sh.Contains(x, y, z) {
			continue
		}
		dose = s.Dose
	}
	return dose
}

// Write validates the description and writes the archive to path.
func Write(d *Description, path string) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("invalid phantom description: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	if err := WriteTo(d, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteTo writes the archive to w.
func WriteTo(d *Description, w io.Writer) error {
	ids := newUIDs(d.Seed)
	zw := zip.NewWriter(w)

	ss, err := d.structureSetDataset(ids)
	if err != nil {
		return err
	}
	dose := d.doseDataset(ids)
	if d.hasExtra(ExtraPrivate) {
		ss.Elements = append(ss.Elements, structureSetPrivateElements(d.Seed)...)
		dose.Elements = append(dose.Elements, dosePrivateElements(d.Seed)...)
	}
	if err := writeEntry(zw, StructureEntry, ss); err != nil {
		return err
	}
	if err := writeEntry(zw, DoseEntry, dose); err != nil {
		return err
	}

	for _, extra := range d.Extras {
		switch extra {
		case ExtraCT:
			err = writeEntry(zw, CTEntry, d.ctDataset(ids))
		case ExtraCorrupt:
			err = writeRaw(zw, CorruptEntry, []byte("this is not a DICOM file"))
		case ExtraText:
			err = writeRaw(zw, TextEntry, []byte("Synthetic RT phantom generated by dvhgrab.\n"))
		case ExtraPrivate:
			// Written with the RT objects above
		}
		if err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

func (d *Description) hasExtra(extra string) bool {
	for _, e := range d.Extras {
		if e == extra {
			return true
		}
	}
	return false
}

// writeEntry writes a dataset with its elements in ascending tag order.
func writeEntry(zw *zip.Writer, name string, ds dicom.Dataset) error {
	sort.SliceStable(ds.Elements, func(i, j int) bool {
		a, b := ds.Elements[i].Tag, ds.Elements[j].Tag
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Element < b.Element
	})

	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if err := dicom.Write(w, ds); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func writeRaw(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

// commonElements returns the patient and study elements shared by all
// objects.
func (d *Description) commonElements(ids uids) []*dicom.Element {
	elems := []*dicom.Element{
		mustNewElement(tag.PatientName, []string{d.PatientName}),
		mustNewElement(tag.PatientID, []string{d.PatientID}),
		mustNewElement(tag.StudyInstanceUID, []string{ids.study}),
		mustNewElement(tag.StudyDate, []string{"20240101"}),
		mustNewElement(tag.FrameOfReferenceUID, []string{ids.frameOfReference}),
		mustNewElement(tag.Manufacturer, []string{"dvhgrab"}),
	}
	if d.StudyDescription != "" {
		elems = append(elems, mustNewElement(tag.StudyDescription, []string{d.StudyDescription}))
	}
	return elems
}

func (d *Description) structureSetDataset(ids uids) (dicom.Dataset, error) {
	elems := metaElements(rt.StructureSetStorageUID, ids.structureInstance)
	elems = append(elems,
		mustNewElement(tag.SOPClassUID, []string{rt.StructureSetStorageUID}),
		mustNewElement(tag.SOPInstanceUID, []string{ids.structureInstance}),
		mustNewElement(tag.Modality, []string{"RTSTRUCT"}),
		mustNewElement(tag.SeriesInstanceUID, []string{ids.structureSeries}),
		mustNewElement(tag.StructureSetLabel, []string{"PHANTOM"}),
		mustNewElement(tag.StructureSetName, []string{strings.ToUpper(d.Seed)}),
	)
	elems = append(elems, d.commonElements(ids)...)

	var roiItems, contourItems [][]*dicom.Element
	frames := d.Grid.framePositions()
	for i, s := range d.Structures {
		number := intToIS(i + 1)
		roiItems = append(roiItems, []*dicom.Element{
			mustNewElement(tag.ROINumber, []string{number}),
			mustNewElement(tag.ReferencedFrameOfReferenceUID, []string{ids.frameOfReference}),
			mustNewElement(tag.ROIName, []string{s.Name}),
			mustNewElement(tag.ROIGenerationAlgorithm, []string{"MANUAL"}),
		})
		if s.NoContours {
			continue
		}

		sh, err := s.shape()
		if err != nil {
			return dicom.Dataset{}, fmt.Errorf("structure %s: %w", s.Name, err)
		}
		var contours [][]*dicom.Element
		for _, z := range frames {
			pts := sh.Contour(z)
			if len(pts) < 3 {
				continue
			}
			data := make([]string, 0, 3*len(pts))
			for _, p := range pts {
				data = append(data, floatsToDS(p.X, p.Y, z)...)
			}
			contours = append(contours, []*dicom.Element{
				mustNewElement(tag.ContourGeometricType, []string{"CLOSED_PLANAR"}),
				mustNewElement(tag.NumberOfContourPoints, []string{intToIS(len(pts))}),
				mustNewElement(tag.ContourData, data),
			})
		}
		if len(contours) == 0 {
			continue
		}
		contourItems = append(contourItems, []*dicom.Element{
			mustNewElement(tag.ReferencedROINumber, []string{number}),
			mustNewElement(tag.ROIDisplayColor, []string{"255", "0", "0"}),
			mustNewElement(tag.ContourSequence, contours),
		})
	}

	if len(roiItems) > 0 {
		elems = append(elems, mustNewElement(tag.StructureSetROISequence, roiItems))
	}
	if len(contourItems) > 0 {
		elems = append(elems, mustNewElement(tag.ROIContourSequence, contourItems))
	}
	return dicom.Dataset{Elements: elems}, nil
}

// doseScaling returns the DoseGridScaling used for a maximum dose: the
// smallest power of ten from 0.001 that keeps stored values in range.
func doseScaling(maxDose float64) float64 {
	scaling := 0.001
	for maxDose/scaling > maxPixelValue {
		scaling *= 10
	}
	return scaling
}

func (d *Description) doseDataset(ids uids) dicom.Dataset {
	g := d.Grid
	unitFactor := 1.0
	if strings.EqualFold(d.DoseUnits, "CGY") {
		unitFactor = 100
	}

	frames := g.framePositions()
	doses := make([][]float64, len(frames))
	maxDose := 0.0
	for k, z := range frames {
		plane := make([]float64, g.Rows*g.Cols)
		for row := 0; row < g.Rows; row++ {
			y := g.Origin[1] + float64(row)*g.Spacing
			for col := 0; col < g.Cols; col++ {
				x := g.Origin[0] + float64(col)*g.Spacing
				v := d.DoseAt(x, y, z) * unitFactor
				plane[row*g.Cols+col] = v
				maxDose = math.Max(maxDose, v)
			}
		}
		doses[k] = plane
	}

	scaling := doseScaling(maxDose)
	pixelFrames := make([]*frame.Frame, len(frames))
	for k, plane := range doses {
		nf := frame.NewNativeFrame[uint16](16, g.Rows, g.Cols, g.Rows*g.Cols, 1)
		for i, v := range plane {
			nf.RawData[i] = uint16(math.Round(v / scaling))
		}
		pixelFrames[k] = &frame.Frame{Encapsulated: false, NativeData: nf}
	}

	offsets := make([]float64, len(frames))
	for k := range offsets {
		offsets[k] = float64(k) * g.SliceSpacing
	}

	elems := metaElements(rt.DoseStorageUID, ids.doseInstance)
	elems = append(elems,
		mustNewElement(tag.SOPClassUID, []string{rt.DoseStorageUID}),
		mustNewElement(tag.SOPInstanceUID, []string{ids.doseInstance}),
		mustNewElement(tag.Modality, []string{"RTDOSE"}),
		mustNewElement(tag.SeriesInstanceUID, []string{ids.doseSeries}),
	)
	elems = append(elems, d.commonElements(ids)...)
	elems = append(elems,
		mustNewElement(tag.DoseUnits, []string{strings.ToUpper(d.DoseUnits)}),
		mustNewElement(tag.DoseType, []string{"PHYSICAL"}),
		mustNewElement(tag.DoseSummationType, []string{"PLAN"}),
		mustNewElement(tag.ImagePositionPatient, floatsToDS(g.Origin[0], g.Origin[1], g.Origin[2])),
		mustNewElement(tag.ImageOrientationPatient, []string{"1", "0", "0", "0", "1", "0"}),
		mustNewElement(tag.PixelSpacing, floatsToDS(g.Spacing, g.Spacing)),
		mustNewElement(tag.SliceThickness, []string{floatToDS(g.SliceSpacing)}),
		mustNewElement(tag.GridFrameOffsetVector, floatsToDS(offsets...)),
		mustNewElement(tag.DoseGridScaling, []string{floatToDS(scaling)}),
		mustNewElement(tag.NumberOfFrames, []string{intToIS(len(frames))}),
		mustNewElement(tag.Rows, []int{g.Rows}),
		mustNewElement(tag.Columns, []int{g.Cols}),
		mustNewElement(tag.SamplesPerPixel, []int{1}),
		mustNewElement(tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
		mustNewElement(tag.BitsAllocated, []int{16}),
		mustNewElement(tag.BitsStored, []int{16}),
		mustNewElement(tag.HighBit, []int{15}),
		mustNewElement(tag.PixelRepresentation, []int{0}),
		mustNewElement(tag.PixelData, dicom.PixelDataInfo{Frames: pixelFrames}),
	)
	return dicom.Dataset{Elements: elems}
}
