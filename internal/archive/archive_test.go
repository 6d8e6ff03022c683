package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/mrsinham/dvhgrab/internal/phantom"
)

func writePhantom(t *testing.T, d *phantom.Description) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "phantom.zip")
	if err := phantom.Write(d, path); err != nil {
		t.Fatalf("failed to write phantom: %v", err)
	}
	return path
}

func TestClassify_Phantom(t *testing.T) {
	d := phantom.Minimal()
	d.Extras = []string{phantom.ExtraCT, phantom.ExtraCorrupt, phantom.ExtraText}
	path := writePhantom(t, d)

	ix, err := Classify(path)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if !reflect.DeepEqual(ix.StructurePaths(), []string{phantom.StructureEntry}) {
		t.Errorf("structures = %v", ix.StructurePaths())
	}
	if !reflect.DeepEqual(ix.DosePaths(), []string{phantom.DoseEntry}) {
		t.Errorf("doses = %v", ix.DosePaths())
	}
	if len(ix.Skipped) != 1 {
		t.Fatalf("skipped = %v, want the corrupt entry only", ix.Skipped)
	}
	if !errors.Is(ix.Skipped[0], ErrEntryUnreadable) || !strings.Contains(ix.Skipped[0].Error(), phantom.CorruptEntry) {
		t.Errorf("skipped error = %v", ix.Skipped[0])
	}
	if ix.Structures[0].Class != ClassStructureSet || ix.Doses[0].Class != ClassDose {
		t.Error("entries carry the wrong class")
	}
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

func TestClassify_ReadsFileMetaOnly(t *testing.T) {
	d := phantom.Default()
	d.Extras = nil
	path := writePhantom(t, d)

	data, err := ReadEntry(path, phantom.DoseEntry)
	if err != nil {
		t.Fatalf("ReadEntry failed: %v", err)
	}

	cr := &countingReader{r: bytes.NewReader(data)}
	class, err := classifyReader(cr, int64(len(data)))
	if err != nil {
		t.Fatalf("classifyReader failed: %v", err)
	}
	if class != ClassDose {
		t.Errorf("class = %v, want %v", class, ClassDose)
	}
	if cr.n >= len(data)/4 {
		t.Errorf("read %d of %d bytes to classify the dose entry", cr.n, len(data))
	}
	t.Logf("✓ Classified %d byte dose entry from %d bytes", len(data), cr.n)
}

// copyEntries builds an archive holding the given phantom entries under new
// names, in order.
func copyEntries(t *testing.T, src string, names map[string]string, order []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reordered.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, name := range order {
		data, err := ReadEntry(src, names[name])
		if err != nil {
			t.Fatalf("ReadEntry(%s): %v", names[name], err)
		}
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestClassify_KeepsArchiveOrder(t *testing.T) {
	src := writePhantom(t, phantom.Minimal())
	names := map[string]string{
		"plan2/RD2.dcm": phantom.DoseEntry,
		"plan1/RS1.dcm": phantom.StructureEntry,
		"plan1/RD1.DCM": phantom.DoseEntry,
		"plan2/RS2.dcm": phantom.StructureEntry,
		"RD3.dicom":     phantom.DoseEntry,
		"CT/1.dcm":      phantom.CTEntry,
	}
	order := []string{"plan2/RD2.dcm", "plan1/RS1.dcm", "plan1/RD1.DCM", "plan2/RS2.dcm", "RD3.dicom", "CT/1.dcm"}
	path := copyEntries(t, src, names, order)

	ix, err := Classify(path)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if !reflect.DeepEqual(ix.StructurePaths(), []string{"plan1/RS1.dcm", "plan2/RS2.dcm"}) {
		t.Errorf("structures = %v", ix.StructurePaths())
	}
	if !reflect.DeepEqual(ix.DosePaths(), []string{"plan2/RD2.dcm", "plan1/RD1.DCM"}) {
		t.Errorf("doses = %v", ix.DosePaths())
	}
	if len(ix.Skipped) != 0 {
		t.Errorf("unexpected skipped entries: %v", ix.Skipped)
	}
}

func TestClassify_BadArchive(t *testing.T) {
	if _, err := Classify(filepath.Join(t.TempDir(), "missing.zip")); err == nil {
		t.Error("expected error for missing archive")
	}

	notZip := filepath.Join(t.TempDir(), "plain.zip")
	if err := os.WriteFile(notZip, []byte("not a zip"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Classify(notZip); err == nil {
		t.Error("expected error for non-zip file")
	}
}

func TestClassFromUID(t *testing.T) {
	tests := []struct {
		uid  string
		want StorageClass
	}{
		{"1.2.840.10008.5.1.4.1.1.481.3", ClassStructureSet},
		{"1.2.840.10008.5.1.4.1.1.481.2\x00", ClassDose},
		{"1.2.840.10008.5.1.4.1.1.2", ClassOther},
		{"", ClassOther},
	}
	for _, tc := range tests {
		if got := ClassFromUID(tc.uid); got != tc.want {
			t.Errorf("ClassFromUID(%q) = %v, want %v", tc.uid, got, tc.want)
		}
	}
	if ClassDose.String() != "RT Dose Storage" || ClassStructureSet.String() != "RT Structure Set Storage" {
		t.Error("unexpected class names")
	}
}

func TestDescribe(t *testing.T) {
	path := writePhantom(t, phantom.Minimal())

	tests := []struct {
		tag  string
		want string
	}{
		{"", "Minimal phantom"},
		{"StudyDescription", "Minimal phantom"},
		{"patientid", "PH0000"},
		{"DoseUnits", "GY"},
		{"InstitutionName", RemovedDescription},
	}
	for _, tc := range tests {
		got, err := Describe(path, phantom.DoseEntry, tc.tag)
		if err != nil {
			t.Fatalf("Describe(%q) failed: %v", tc.tag, err)
		}
		if got != tc.want {
			t.Errorf("Describe(%q) = %q, want %q", tc.tag, got, tc.want)
		}
	}

	_, err := Describe(path, phantom.DoseEntry, "StudyDescripton")
	if err == nil || !strings.Contains(err.Error(), "StudyDescription") {
		t.Errorf("expected suggestion for misspelled tag, got %v", err)
	}
}

func TestDescribe_RemovedStudyDescription(t *testing.T) {
	d := phantom.Minimal()
	d.StudyDescription = ""
	path := writePhantom(t, d)

	got, err := Describe(path, phantom.DoseEntry, "")
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if got != RemovedDescription {
		t.Errorf("Describe() = %q, want %q", got, RemovedDescription)
	}
}

func TestReadDataset_Errors(t *testing.T) {
	path := writePhantom(t, phantom.Minimal())

	if _, err := ReadDataset(path, "nope.dcm"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("missing entry error = %v", err)
	}
	if _, err := ReadDataset(path, phantom.CorruptEntry); !errors.Is(err, ErrEntryUnreadable) {
		t.Errorf("corrupt entry error = %v", err)
	}
	if _, err := ReadStructureSet(path, phantom.DoseEntry); err == nil {
		t.Error("reading a dose as a structure set should fail")
	}
}

func TestCatalog(t *testing.T) {
	path := writePhantom(t, phantom.Minimal())

	c1, err := Catalog(path, phantom.StructureEntry)
	if err != nil {
		t.Fatalf("Catalog failed: %v", err)
	}
	c2, _ := Catalog(path, phantom.StructureEntry)
	if !reflect.DeepEqual(c1, c2) {
		t.Error("catalog should be stable across calls")
	}
	c1[0].Name = "changed"
	if c2[0].Name != "BODY" {
		t.Error("catalogs should not share storage")
	}
	t.Logf("✓ Catalog: %v", c2.Names())
}
