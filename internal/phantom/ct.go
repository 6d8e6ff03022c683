package phantom

import (
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// ctImageStorageUID is the CT Image Storage SOP Class UID.
const ctImageStorageUID = "1.2.840.10008.5.1.4.1.1.2"

// ctSize is the edge of the written CT image, in pixels.
const ctSize = 8

// ctDataset returns a small water-filled CT slice at the first dose frame.
// It is never analysed and only gives the archive an object of another class.
func (d *Description) ctDataset(ids uids) dicom.Dataset {
	nf := frame.NewNativeFrame[uint16](16, ctSize, ctSize, ctSize*ctSize, 1)
	for i := range nf.RawData {
		nf.RawData[i] = 1024 // water with a -1024 intercept
	}

	elems := metaElements(ctImageStorageUID, ids.ctInstance)
	elems = append(elems,
		mustNewElement(tag.SOPClassUID, []string{ctImageStorageUID}),
		mustNewElement(tag.SOPInstanceUID, []string{ids.ctInstance}),
		mustNewElement(tag.Modality, []string{"CT"}),
		mustNewElement(tag.SeriesInstanceUID, []string{ids.ctSeries}),
		mustNewElement(tag.InstanceNumber, []string{"1"}),
	)
	elems = append(elems, d.commonElements(ids)...)
	elems = append(elems,
		mustNewElement(tag.ImagePositionPatient, floatsToDS(d.Grid.Origin[0], d.Grid.Origin[1], d.Grid.Origin[2])),
		mustNewElement(tag.ImageOrientationPatient, []string{"1", "0", "0", "0", "1", "0"}),
		mustNewElement(tag.PixelSpacing, floatsToDS(d.Grid.Spacing, d.Grid.Spacing)),
		mustNewElement(tag.SliceThickness, []string{floatToDS(d.Grid.SliceSpacing)}),
		mustNewElement(tag.RescaleIntercept, []string{floatToDS(-1024)}),
		mustNewElement(tag.RescaleSlope, []string{floatToDS(1)}),
		mustNewElement(tag.RescaleType, []string{"HU"}),
		mustNewElement(tag.Rows, []int{ctSize}),
		mustNewElement(tag.Columns, []int{ctSize}),
		mustNewElement(tag.SamplesPerPixel, []int{1}),
		mustNewElement(tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
		mustNewElement(tag.BitsAllocated, []int{16}),
		mustNewElement(tag.BitsStored, []int{16}),
		mustNewElement(tag.HighBit, []int{15}),
		mustNewElement(tag.PixelRepresentation, []int{0}),
		mustNewElement(tag.PixelData, dicom.PixelDataInfo{Frames: []*frame.Frame{{Encapsulated: false, NativeData: nf}}}),
	)
	return dicom.Dataset{Elements: elems}
}
