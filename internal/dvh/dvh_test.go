package dvh

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

// twoLevelDVH has 1 cm3 at 20 Gy and 1 cm3 at 60 Gy.
func twoLevelDVH() *DVH {
	diff := make([]float64, 6001)
	diff[2000] = 1
	diff[6000] = 1
	return FromDifferential("PTV", diff)
}

func TestFromDifferential_Cumulative(t *testing.T) {
	d := twoLevelDVH()

	if !almostEqual(d.Volume(), 2) {
		t.Errorf("Volume() = %v, want 2", d.Volume())
	}
	if !almostEqual(d.Counts[2000], 2) || !almostEqual(d.Counts[2001], 1) || !almostEqual(d.Counts[6000], 1) {
		t.Errorf("unexpected cumulative counts: [2000]=%v [2001]=%v [6000]=%v", d.Counts[2000], d.Counts[2001], d.Counts[6000])
	}

	diff := d.Differential()
	if !almostEqual(diff[2000], 1) || !almostEqual(diff[6000], 1) || diff[3000] != 0 {
		t.Errorf("Differential() did not round-trip")
	}
}

func TestDVH_EmptyVolume(t *testing.T) {
	d := &DVH{}
	if d.Volume() != 0 {
		t.Errorf("empty DVH volume = %v, want 0", d.Volume())
	}
	if d.Mean() != 0 || d.Max() != 0 || d.Min() != 0 {
		t.Error("empty DVH statistics should be zero")
	}
	if d.DoseToVolume(1) != 0 {
		t.Error("DoseToVolume on empty DVH should be zero")
	}
}

func TestDVH_Statistic(t *testing.T) {
	d := twoLevelDVH()
	d.RxDose = 120

	tests := []struct {
		code  string
		value float64
		unit  string
	}{
		{"D50", 60, UnitGy},
		{"D50%", 60, UnitGy},
		{"D100", 20, UnitGy},
		{"D1cc", 60, UnitGy},
		{"D2cc", 20, UnitGy},
		{"D3cc", 0, UnitGy},
		{"V20Gy", 2, UnitCC},
		{"V30Gy", 1, UnitCC},
		{"V6000cGy", 1, UnitCC},
		{"V61Gy", 0, UnitCC},
		{"V50", 1, UnitCC},
		{"V50%", 1, UnitCC},
		{"Dmax", 60, UnitGy},
		{"Dmin", 20, UnitGy},
		{"Dmean", 40, UnitGy},
		{"DMEAN", 40, UnitGy},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			v, err := d.Statistic(tc.code)
			if err != nil {
				t.Fatalf("Statistic(%q) returned error: %v", tc.code, err)
			}
			if !almostEqual(v.Value, tc.value) {
				t.Errorf("Statistic(%q) = %v, want %v", tc.code, v.Value, tc.value)
			}
			if v.Unit != tc.unit {
				t.Errorf("Statistic(%q) unit = %q, want %q", tc.code, v.Unit, tc.unit)
			}
		})
	}
}

func TestDVH_Statistic_Errors(t *testing.T) {
	d := twoLevelDVH()

	tests := []struct {
		code string
		want error
	}{
		{"V95", ErrPrescriptionRequired},
		{"V95%", ErrPrescriptionRequired},
		{"X5", ErrUnknownStatistic},
		{"V20cc", ErrUnknownStatistic},
		{"D20Gy", ErrUnknownStatistic},
		{"VOL", ErrUnknownStatistic},
		{"", ErrUnknownStatistic},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			_, err := d.Statistic(tc.code)
			if !errors.Is(err, tc.want) {
				t.Errorf("Statistic(%q) error = %v, want %v", tc.code, err, tc.want)
			}
		})
	}
}

func TestDVH_VolumeAtDose_ZeroDose(t *testing.T) {
	d := twoLevelDVH()
	if !almostEqual(d.VolumeAtDose(0), 2) {
		t.Errorf("VolumeAtDose(0) = %v, want full volume", d.VolumeAtDose(0))
	}
}
