package phantom

import (
	"fmt"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Explicit VR Little Endian.
const transferSyntaxUID = "1.2.840.10008.1.2.1"

// mustNewElement creates a new DICOM element, panicking on error.
func mustNewElement(t tag.Tag, value interface{}) *dicom.Element {
	elem, err := dicom.NewElement(t, value)
	if err != nil {
		panic(fmt.Sprintf("failed to create element %v: %v", t, err))
	}
	return elem
}

// floatToDS converts a float64 to a DICOM Decimal String.
func floatToDS(f float64) string {
	return fmt.Sprintf("%.6g", f)
}

// intToIS converts an int to a DICOM Integer String.
func intToIS(i int) string {
	return fmt.Sprintf("%d", i)
}

func floatsToDS(values ...float64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = floatToDS(v)
	}
	return out
}

// metaElements returns the file meta elements of an object.
func metaElements(sopClassUID, sopInstanceUID string) []*dicom.Element {
	return []*dicom.Element{
		mustNewElement(tag.MediaStorageSOPClassUID, []string{sopClassUID}),
		mustNewElement(tag.MediaStorageSOPInstanceUID, []string{sopInstanceUID}),
		mustNewElement(tag.TransferSyntaxUID, []string{transferSyntaxUID}),
	}
}
