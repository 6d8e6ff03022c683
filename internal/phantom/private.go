package phantom

import (
	"fmt"
	"hash/fnv"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// mustNewPrivateElement creates an element with a private tag and explicit
// VR. dicom.NewElement rejects tags missing from the dictionary.
func mustNewPrivateElement(t tag.Tag, rawVR string, data any) *dicom.Element {
	value, err := dicom.NewValue(data)
	if err != nil {
		panic(fmt.Sprintf("failed to create value for private element %v: %v", t, err))
	}
	return &dicom.Element{
		Tag:                    t,
		ValueRepresentation:    tag.GetVRKind(t, rawVR),
		RawValueRepresentation: rawVR,
		Value:                  value,
	}
}

// planBuild derives a stable build number from the seed.
func planBuild(seed string) int {
	h := fnv.New32a()
	h.Write([]byte(seed))
	return int(h.Sum32() % 1000)
}

// structureSetPrivateElements mimics the private blocks a planning system
// leaves in exported structure sets.
func structureSetPrivateElements(seed string) []*dicom.Element {
	return []*dicom.Element{
		// RaySearch private creator and software build
		mustNewPrivateElement(tag.Tag{Group: 0x3249, Element: 0x0010}, "LO", []string{"RAYSEARCHLABS 2.0"}),
		mustNewPrivateElement(tag.Tag{Group: 0x3249, Element: 0x1010}, "LO", []string{fmt.Sprintf("12.0.%d", planBuild(seed))}),
		mustNewPrivateElement(tag.Tag{Group: 0x3249, Element: 0x1012}, "IS", []string{"1", "0", "3"}),
	}
}

// dosePrivateElements mimics the private blocks of an exported dose grid.
func dosePrivateElements(seed string) []*dicom.Element {
	return []*dicom.Element{
		// Varian private creator, calculation model and normalisation
		mustNewPrivateElement(tag.Tag{Group: 0x3253, Element: 0x0010}, "LO", []string{"Varian Medical Systems VISION 3253"}),
		mustNewPrivateElement(tag.Tag{Group: 0x3253, Element: 0x1000}, "LO", []string{fmt.Sprintf("AAA_16.1.%d", planBuild(seed))}),
		mustNewPrivateElement(tag.Tag{Group: 0x3253, Element: 0x1002}, "DS", []string{"100", "0.5"}),
	}
}
