package aerosol

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownSensor is returned when a retrieval names a sensor the
	// engine has no band configuration for.
	ErrUnknownSensor = errors.New("unknown sensor")
	// ErrNoActiveBands is returned when no band contributes to the
	// residual (all ratio coefficients disabled), which would make the
	// band-consistency metric undefined.
	ErrNoActiveBands = errors.New("no active bands")
	// ErrStartIndex is returned when the warm-start index lies outside
	// the AOT grid.
	ErrStartIndex = errors.New("warm-start index out of range")
)

// Corrector is the atmospheric correction backend consumed by the
// retrieval. Correct returns the lambertian surface reflectance of one
// band of the current pixel, corrected for a candidate aerosol optical
// thickness. Implementations bind the per-pixel state (measured TOA
// reflectances, geometry or fitted coefficients) at construction.
//
// The coefficient-driven backend never fails; the table-driven backend
// returns an EvaluationError when an interpolation falls outside its
// fitted range.
type Corrector interface {
	Correct(band int, aot float64) (float64, error)
}

// EvaluationError reports that the atmospheric correction for one band
// could not be evaluated at a candidate AOT.
type EvaluationError struct {
	Band int
	AOT  float64
	Err  error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("atmospheric correction failed for band %d at aot %g: %v", e.Band, e.AOT, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }
