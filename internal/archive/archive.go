// Package archive indexes the DICOM objects of a zip archive and reads
// individual entries on demand. The archive is opened and closed by every
// call; no handle is kept between calls.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mrsinham/dvhgrab/internal/logger"
	"github.com/mrsinham/dvhgrab/internal/rt"
	"github.com/mrsinham/dvhgrab/internal/util"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// DICOMExtension is the suffix of the entries considered for classification.
const DICOMExtension = ".dcm"

// DefaultDescribeTag is the tag shown for a selected dose file.
const DefaultDescribeTag = "StudyDescription"

// RemovedDescription is shown when the described tag is absent.
const RemovedDescription = "### REMOVED ###"

var (
	// ErrEntryUnreadable marks an entry that could not be parsed as DICOM.
	ErrEntryUnreadable = errors.New("archive entry unreadable")
	// ErrEntryNotFound is returned when a named entry is not in the archive.
	ErrEntryNotFound = errors.New("archive entry not found")
)

// StorageClass is the category of a DICOM object.
type StorageClass int

const (
	// ClassOther is any storage class dvhgrab does not use.
	ClassOther StorageClass = iota
	// ClassStructureSet is RT Structure Set Storage.
	ClassStructureSet
	// ClassDose is RT Dose Storage.
	ClassDose
)

// String returns the DICOM name of the storage class.
func (c StorageClass) String() string {
	switch c {
	case ClassStructureSet:
		return "RT Structure Set Storage"
	case ClassDose:
		return "RT Dose Storage"
	default:
		return "Other"
	}
}

// ClassFromUID maps a MediaStorageSOPClassUID to a StorageClass.
func ClassFromUID(uid string) StorageClass {
	switch strings.Trim(uid, " \x00") {
	case rt.StructureSetStorageUID:
		return ClassStructureSet
	case rt.DoseStorageUID:
		return ClassDose
	default:
		return ClassOther
	}
}

// Entry is a classified archive entry.
type Entry struct {
	Path  string
	Class StorageClass
}

// Index is the result of classifying an archive. Entries keep the archive
// enumeration order.
type Index struct {
	Archive    string
	Structures []Entry
	Doses      []Entry
	// Skipped lists the entries that could not be parsed, each error
	// wrapping ErrEntryUnreadable.
	Skipped []error
}

// StructurePaths returns the paths of the structure set entries.
func (ix *Index) StructurePaths() []string {
	return entryPaths(ix.Structures)
}

// DosePaths returns the paths of the dose entries.
func (ix *Index) DosePaths() []string {
	return entryPaths(ix.Doses)
}

func entryPaths(entries []Entry) []string {
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	return paths
}

// Classify enumerates the .dcm entries of the archive at path and buckets
// them by storage class, reading only the file meta header of each entry.
// Entries that cannot be parsed are skipped and logged.
func Classify(path string) (*Index, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	defer zr.Close()

	ix := &Index{Archive: path}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(strings.ToLower(f.Name), DICOMExtension) {
			continue
		}

		class, err := classifyEntry(f)
		if err != nil {
			skipErr := fmt.Errorf("%w: %s: %v", ErrEntryUnreadable, f.Name, err)
			logger.Warn("skipping %s: %v", f.Name, err)
			ix.Skipped = append(ix.Skipped, skipErr)
			continue
		}

		logger.Debug("entry %s: %s", f.Name, class)
		switch class {
		case ClassStructureSet:
			ix.Structures = append(ix.Structures, Entry{Path: f.Name, Class: class})
		case ClassDose:
			ix.Doses = append(ix.Doses, Entry{Path: f.Name, Class: class})
		}
	}
	return ix, nil
}

func classifyEntry(f *zip.File) (StorageClass, error) {
	rc, err := f.Open()
	if err != nil {
		return ClassOther, err
	}
	defer rc.Close()
	return classifyReader(rc, int64(f.UncompressedSize64))
}

// classifyReader reads the file meta header from r, leaving the dataset
// body unread.
func classifyReader(r io.Reader, size int64) (StorageClass, error) {
	p, err := dicom.NewParser(r, size, nil, dicom.SkipPixelData())
	if err != nil {
		return ClassOther, err
	}
	meta := p.GetMetadata()
	uid, ok := rt.TagString(meta, tag.MediaStorageSOPClassUID)
	if !ok {
		return ClassOther, errors.New("no MediaStorageSOPClassUID in file meta")
	}
	return ClassFromUID(uid), nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// ReadEntry returns the raw bytes of one archive entry.
func ReadEntry(path, entry string) ([]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name == entry {
			data, err := readEntry(f)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", entry, err)
			}
			return data, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, entry)
}

// ReadDataset parses one archive entry in full.
func ReadDataset(path, entry string, opts ...dicom.ParseOption) (dicom.Dataset, error) {
	data, err := ReadEntry(path, entry)
	if err != nil {
		return dicom.Dataset{}, err
	}
	ds, err := dicom.Parse(bytes.NewReader(data), int64(len(data)), nil, opts...)
	if err != nil {
		return dicom.Dataset{}, fmt.Errorf("%w: %s: %v", ErrEntryUnreadable, entry, err)
	}
	return ds, nil
}

// ReadStructureSet parses a structure set entry.
func ReadStructureSet(path, entry string) (*rt.StructureSet, error) {
	ds, err := ReadDataset(path, entry, dicom.SkipPixelData())
	if err != nil {
		return nil, err
	}
	ss, err := rt.ParseStructureSet(ds)
	if err != nil {
		return nil, fmt.Errorf("structure set %s: %w", entry, err)
	}
	return ss, nil
}

// ReadDoseGrid parses a dose entry.
func ReadDoseGrid(path, entry string) (*rt.DoseGrid, error) {
	ds, err := ReadDataset(path, entry)
	if err != nil {
		return nil, err
	}
	grid, err := rt.ParseDoseGrid(ds)
	if err != nil {
		return nil, fmt.Errorf("dose %s: %w", entry, err)
	}
	return grid, nil
}

// Catalog returns the structure catalog of a structure set entry, parsed
// afresh on every call.
func Catalog(path, entry string) (rt.Catalog, error) {
	ss, err := ReadStructureSet(path, entry)
	if err != nil {
		return nil, err
	}
	return ss.Catalog(), nil
}

// Describe returns the value of the named tag of an entry. Tag names are
// matched case-insensitively; an empty name means StudyDescription. A tag
// the entry does not carry yields RemovedDescription.
func Describe(path, entry, tagName string) (string, error) {
	if tagName == "" {
		tagName = DefaultDescribeTag
	}
	info, err := util.GetTagByName(tagName)
	if err != nil {
		return "", err
	}

	ds, err := ReadDataset(path, entry, dicom.SkipPixelData())
	if err != nil {
		return "", err
	}
	if v, ok := rt.TagString(ds, info.Tag); ok {
		return v, nil
	}
	return RemovedDescription, nil
}
