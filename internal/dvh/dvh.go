// Package dvh computes cumulative dose-volume histograms and derives dose and
// volume statistics from them.
package dvh

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// BinWidth is the dose resolution of every histogram, in Gy.
const BinWidth = 0.01

// Units reported by statistics.
const (
	UnitGy  = "Gy"
	UnitCC  = "cm3"
	UnitPct = "%"
)

var (
	// ErrPrescriptionRequired is returned when a statistic or metric is
	// relative to a prescription dose that is unset or not positive.
	ErrPrescriptionRequired = errors.New("prescription dose required")
	// ErrUnknownStatistic is returned for codes the histogram cannot evaluate.
	ErrUnknownStatistic = errors.New("unknown statistic")
)

// statisticPattern matches D90, D2cc, D95%, V20Gy, V2000cGy, V95, V95%.
var statisticPattern = regexp.MustCompile(`^([DV])(\d+(?:\.\d+)?)(cc|%|Gy|cGy)?$`)

// Value is a statistic value with its unit.
type Value struct {
	Value float64
	Unit  string
}

// DVH is a cumulative dose-volume histogram: Counts[i] is the volume (cm3)
// receiving at least i*BinWidth Gy.
type DVH struct {
	Name   string
	Counts []float64
	// RxDose is the prescription dose (Gy) used by V<x>% statistics; zero or
	// negative means unset.
	RxDose float64
}

// FromDifferential builds a cumulative DVH from per-bin volumes.
func FromDifferential(name string, differential []float64) *DVH {
	counts := make([]float64, len(differential))
	for i := range differential {
		counts[i] = differential[len(differential)-1-i]
	}
	floats.CumSum(counts, counts)
	floats.Reverse(counts)
	return &DVH{Name: name, Counts: counts}
}

// Volume returns the total structure volume in cm3.
func (d *DVH) Volume() float64 {
	if len(d.Counts) == 0 {
		return 0
	}
	return d.Counts[0]
}

// Differential returns the per-bin volumes.
func (d *DVH) Differential() []float64 {
	diff := make([]float64, len(d.Counts))
	for i := range d.Counts {
		next := 0.0
		if i+1 < len(d.Counts) {
			next = d.Counts[i+1]
		}
		diff[i] = d.Counts[i] - next
	}
	return diff
}

// binDose is the lower dose edge of bin i.
func binDose(i int) float64 {
	return float64(i) * BinWidth
}

// binIndex maps a dose to its bin, absorbing floating point noise.
func binIndex(dose float64) int {
	return int(math.Floor(dose/BinWidth + 1e-9))
}

// Max returns the highest dose received by any part of the structure.
func (d *DVH) Max() float64 {
	diff := d.Differential()
	for i := len(diff) - 1; i >= 0; i-- {
		if diff[i] > 0 {
			return binDose(i)
		}
	}
	return 0
}

// Min returns the lowest dose received by the structure.
func (d *DVH) Min() float64 {
	for i, v := range d.Differential() {
		if v > 0 {
			return binDose(i)
		}
	}
	return 0
}

// Mean returns the volume-weighted mean dose.
func (d *DVH) Mean() float64 {
	if d.Volume() <= 0 {
		return 0
	}
	diff := d.Differential()
	doses := make([]float64, len(diff))
	for i := range doses {
		doses[i] = binDose(i)
	}
	return stat.Mean(doses, diff)
}

// DoseToVolume returns the minimum dose (Gy) received by the hottest volume
// cc of the structure.
func (d *DVH) DoseToVolume(cc float64) float64 {
	if d.Volume() <= 0 || cc > d.Volume()*(1+1e-9) {
		return 0
	}
	target := cc * (1 - 1e-9)
	for i := len(d.Counts) - 1; i >= 0; i-- {
		if d.Counts[i] >= target {
			return binDose(i)
		}
	}
	return 0
}

// VolumeAtDose returns the volume (cm3) receiving at least dose Gy.
func (d *DVH) VolumeAtDose(dose float64) float64 {
	if dose <= 0 {
		return d.Volume()
	}
	i := int(math.Ceil(dose/BinWidth - 1e-9))
	if i >= len(d.Counts) {
		return 0
	}
	return d.Counts[i]
}

// Statistic evaluates a statistic code:
//
//	D<x>, D<x>%   minimum dose to the hottest x percent of the volume (Gy)
//	D<x>cc        minimum dose to the hottest x cm3 (Gy)
//	V<x>, V<x>%   volume receiving x percent of RxDose (cm3)
//	V<x>Gy/cGy    volume receiving x Gy or cGy (cm3)
//	Dmax, Dmin, Dmean
func (d *DVH) Statistic(code string) (Value, error) {
	switch strings.ToLower(code) {
	case "dmax":
		return Value{d.Max(), UnitGy}, nil
	case "dmin":
		return Value{d.Min(), UnitGy}, nil
	case "dmean":
		return Value{d.Mean(), UnitGy}, nil
	}

	m := statisticPattern.FindStringSubmatch(code)
	if m == nil {
		return Value{}, fmt.Errorf("%w: %q", ErrUnknownStatistic, code)
	}
	x, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %q", ErrUnknownStatistic, code)
	}
	kind, unit := m[1], m[3]

	if kind == "D" {
		switch unit {
		case "", "%":
			return Value{d.DoseToVolume(d.Volume() * x / 100), UnitGy}, nil
		case "cc":
			return Value{d.DoseToVolume(x), UnitGy}, nil
		}
		return Value{}, fmt.Errorf("%w: %q (dose statistics take %% or cc)", ErrUnknownStatistic, code)
	}

	switch unit {
	case "Gy":
		return Value{d.VolumeAtDose(x), UnitCC}, nil
	case "cGy":
		return Value{d.VolumeAtDose(x / 100), UnitCC}, nil
	case "", "%":
		if d.RxDose <= 0 {
			return Value{}, fmt.Errorf("%s: %w", code, ErrPrescriptionRequired)
		}
		return Value{d.VolumeAtDose(d.RxDose * x / 100), UnitCC}, nil
	}
	return Value{}, fmt.Errorf("%w: %q (volume statistics take %%, Gy or cGy)", ErrUnknownStatistic, code)
}
