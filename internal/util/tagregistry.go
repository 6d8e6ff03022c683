// Package util provides small helpers shared by the dvhgrab packages.
package util

import (
	"fmt"
	"sort"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// TagModule represents the DICOM information module a describable tag belongs to.
type TagModule int

const (
	// ModulePatient groups patient identification tags.
	ModulePatient TagModule = iota
	// ModuleStudy groups tags shared by every object of a study.
	ModuleStudy
	// ModuleSeries groups series level tags.
	ModuleSeries
	// ModuleStructureSet groups RT Structure Set specific tags.
	ModuleStructureSet
	// ModuleDose groups RT Dose specific tags.
	ModuleDose
)

// String returns the string representation of a TagModule.
func (m TagModule) String() string {
	switch m {
	case ModulePatient:
		return "Patient"
	case ModuleStudy:
		return "Study"
	case ModuleSeries:
		return "Series"
	case ModuleStructureSet:
		return "StructureSet"
	case ModuleDose:
		return "Dose"
	default:
		return "Unknown"
	}
}

// TagInfo describes a tag that can be shown for an archive entry.
type TagInfo struct {
	Name   string
	Tag    tag.Tag
	Module TagModule
}

// tagRegistry maps lowercase tag names to their TagInfo.
var tagRegistry = map[string]TagInfo{
	"patientname": {Name: "PatientName", Tag: tag.PatientName, Module: ModulePatient},
	"patientid":   {Name: "PatientID", Tag: tag.PatientID, Module: ModulePatient},

	"studydescription":    {Name: "StudyDescription", Tag: tag.StudyDescription, Module: ModuleStudy},
	"studydate":           {Name: "StudyDate", Tag: tag.StudyDate, Module: ModuleStudy},
	"studyinstanceuid":    {Name: "StudyInstanceUID", Tag: tag.StudyInstanceUID, Module: ModuleStudy},
	"institutionname":     {Name: "InstitutionName", Tag: tag.InstitutionName, Module: ModuleStudy},
	"frameofreferenceuid": {Name: "FrameOfReferenceUID", Tag: tag.FrameOfReferenceUID, Module: ModuleStudy},

	"seriesdescription": {Name: "SeriesDescription", Tag: tag.SeriesDescription, Module: ModuleSeries},
	"modality":          {Name: "Modality", Tag: tag.Modality, Module: ModuleSeries},
	"manufacturer":      {Name: "Manufacturer", Tag: tag.Manufacturer, Module: ModuleSeries},
	"sopinstanceuid":    {Name: "SOPInstanceUID", Tag: tag.SOPInstanceUID, Module: ModuleSeries},

	"structuresetlabel": {Name: "StructureSetLabel", Tag: tag.StructureSetLabel, Module: ModuleStructureSet},
	"structuresetname":  {Name: "StructureSetName", Tag: tag.StructureSetName, Module: ModuleStructureSet},

	"doseunits":         {Name: "DoseUnits", Tag: tag.DoseUnits, Module: ModuleDose},
	"dosetype":          {Name: "DoseType", Tag: tag.DoseType, Module: ModuleDose},
	"dosesummationtype": {Name: "DoseSummationType", Tag: tag.DoseSummationType, Module: ModuleDose},
}

// GetTagByName returns TagInfo for a given tag name.
// The lookup is case-insensitive. If the tag is not found, an error is returned
// with a suggestion for the closest matching tag name (using Levenshtein distance).
func GetTagByName(name string) (TagInfo, error) {
	normalizedName := strings.ToLower(strings.TrimSpace(name))

	if info, ok := tagRegistry[normalizedName]; ok {
		return info, nil
	}

	suggestion := findClosestTagName(normalizedName)
	if suggestion != "" {
		return TagInfo{}, fmt.Errorf("unknown tag %q, did you mean %q?", name, suggestion)
	}

	return TagInfo{}, fmt.Errorf("unknown tag %q", name)
}

// TagNames returns the canonical names of all describable tags, sorted.
func TagNames() []string {
	names := make([]string, 0, len(tagRegistry))
	for _, info := range tagRegistry {
		names = append(names, info.Name)
	}
	sort.Strings(names)
	return names
}

// findClosestTagName finds the closest matching tag name using Levenshtein distance.
// Returns empty string if no close match is found (distance > 5).
// Ties are broken alphabetically so the suggestion is stable.
func findClosestTagName(input string) string {
	const maxDistance = 5
	bestDistance := maxDistance + 1
	var bestMatch string

	for key, info := range tagRegistry {
		distance := levenshteinDistance(input, key)
		if distance < bestDistance || (distance == bestDistance && info.Name < bestMatch) {
			bestDistance = distance
			bestMatch = info.Name
		}
	}

	if bestDistance <= maxDistance {
		return bestMatch
	}
	return ""
}

// levenshteinDistance calculates the Levenshtein distance between two strings,
// keeping only two rows of the edit matrix.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
