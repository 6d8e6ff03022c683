// Package metric derives reported values from a DVH under absolute or
// relative reporting.
package metric

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mrsinham/dvhgrab/internal/dvh"
)

// VolumeCode is the metric code for the structure volume.
const VolumeCode = "VOL"

var (
	// ErrDivisionUndefined is returned for relative volume metrics on a
	// structure of zero volume.
	ErrDivisionUndefined = errors.New("structure volume is zero")
	// ErrUnsupportedMetricCode is returned for relative metrics that are
	// neither VOL, V* nor D*.
	ErrUnsupportedMetricCode = errors.New("unsupported metric code")
	// ErrPrescriptionRequired is returned for relative dose metrics without
	// a positive prescription.
	ErrPrescriptionRequired = dvh.ErrPrescriptionRequired
)

// Histogram is the part of a DVH the engine needs.
type Histogram interface {
	Volume() float64
	Statistic(code string) (dvh.Value, error)
}

// Settings selects the reporting mode.
type Settings struct {
	Relative bool
	// Prescription is the prescription dose in Gy; zero or negative is unset.
	Prescription float64
}

// Compute returns the value and unit of code for h.
//
// VOL is always reported in cm3. In absolute mode the statistic is passed
// through unchanged. In relative mode V codes are reported as a percentage of
// the structure volume and D codes as a percentage of the prescription.
func Compute(h Histogram, code string, s Settings) (dvh.Value, error) {
	if code == VolumeCode {
		return dvh.Value{Value: h.Volume(), Unit: dvh.UnitCC}, nil
	}
	if !s.Relative {
		return h.Statistic(code)
	}

	switch {
	case strings.HasPrefix(code, "V"):
		vol := h.Volume()
		if vol == 0 {
			return dvh.Value{}, fmt.Errorf("%s: %w", code, ErrDivisionUndefined)
		}
		stat, err := h.Statistic(code)
		if err != nil {
			return dvh.Value{}, err
		}
		return dvh.Value{Value: 100 * stat.Value / vol, Unit: dvh.UnitPct}, nil

	case strings.HasPrefix(code, "D"):
		if s.Prescription <= 0 {
			return dvh.Value{}, fmt.Errorf("%s: %w", code, ErrPrescriptionRequired)
		}
		stat, err := h.Statistic(code)
		if err != nil {
			return dvh.Value{}, err
		}
		return dvh.Value{Value: 100 * stat.Value / s.Prescription, Unit: dvh.UnitPct}, nil
	}

	return dvh.Value{}, fmt.Errorf("%w: %q in relative mode", ErrUnsupportedMetricCode, code)
}
