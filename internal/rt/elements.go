// Package rt provides typed views over parsed RT Structure Set and RT Dose
// datasets.
package rt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// SOP Class UIDs of the RT objects dvhgrab reads.
const (
	StructureSetStorageUID = "1.2.840.10008.5.1.4.1.1.481.3"
	DoseStorageUID         = "1.2.840.10008.5.1.4.1.1.481.2"
)

// findElement returns the first element with tag t in elems.
func findElement(elems []*dicom.Element, t tag.Tag) (*dicom.Element, bool) {
	for _, e := range elems {
		if e.Tag == t {
			return e, true
		}
	}
	return nil, false
}

// sequenceItems returns the element lists of every item of a sequence element.
func sequenceItems(e *dicom.Element) [][]*dicom.Element {
	items, ok := e.Value.GetValue().([]*dicom.SequenceItemValue)
	if !ok {
		return nil
	}
	out := make([][]*dicom.Element, 0, len(items))
	for _, item := range items {
		elems, ok := item.GetValue().([]*dicom.Element)
		if !ok {
			continue
		}
		out = append(out, elems)
	}
	return out
}

// stringValue returns the first string value of e, trimmed of DICOM padding.
func stringValue(e *dicom.Element) string {
	values, ok := e.Value.GetValue().([]string)
	if !ok || len(values) == 0 {
		return ""
	}
	return strings.Trim(values[0], " \x00")
}

// intValue reads an integer from an IS (string) or binary integer element.
func intValue(e *dicom.Element) (int, error) {
	switch v := e.Value.GetValue().(type) {
	case []int:
		if len(v) == 0 {
			return 0, fmt.Errorf("tag %v: empty value", e.Tag)
		}
		return v[0], nil
	case []string:
		if len(v) == 0 {
			return 0, fmt.Errorf("tag %v: empty value", e.Tag)
		}
		n, err := strconv.Atoi(strings.Trim(v[0], " \x00"))
		if err != nil {
			return 0, fmt.Errorf("tag %v: %w", e.Tag, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("tag %v: unexpected value type %T", e.Tag, v)
	}
}

// floatValues reads a multi-valued decimal (DS) or floating point element.
func floatValues(e *dicom.Element) ([]float64, error) {
	switch v := e.Value.GetValue().(type) {
	case []float64:
		return v, nil
	case []string:
		out := make([]float64, 0, len(v))
		for _, s := range v {
			s = strings.Trim(s, " \x00")
			if s == "" {
				continue
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("tag %v: %w", e.Tag, err)
			}
			out = append(out, f)
		}
		return out, nil
	case []int:
		out := make([]float64, len(v))
		for i, n := range v {
			out[i] = float64(n)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("tag %v: unexpected value type %T", e.Tag, v)
	}
}

// requireElement looks up a top-level tag, naming it in the error.
func requireElement(ds dicom.Dataset, t tag.Tag, name string) (*dicom.Element, error) {
	e, err := ds.FindElementByTag(t)
	if err != nil {
		return nil, fmt.Errorf("missing %s: %w", name, err)
	}
	return e, nil
}

// TagString returns the value of a top-level string tag of ds. Multiple
// values are joined with a backslash as they are encoded.
func TagString(ds dicom.Dataset, t tag.Tag) (string, bool) {
	e, err := ds.FindElementByTag(t)
	if err != nil {
		return "", false
	}
	values, ok := e.Value.GetValue().([]string)
	if !ok || len(values) == 0 {
		return "", false
	}
	trimmed := make([]string, len(values))
	for i, v := range values {
		trimmed[i] = strings.Trim(v, " \x00")
	}
	s := strings.Join(trimmed, `\`)
	return s, s != ""
}
