package aerosol

import "fmt"

// Request describes one pixel's AOT retrieval.
type Request struct {
	Sensor  Sensor
	Policy  BandPolicy
	Surface Surface

	// RefBand is the reference band index anchoring the land ratio model.
	RefBand int
	// Ratios holds one ratio coefficient per band; a value <= 0 removes
	// the band from the retrieval.
	Ratios []float64

	// Corrector is the atmospheric correction backend bound to this
	// pixel's measured reflectances and geometry.
	Corrector Corrector

	// StartIndex seeds the coarse search. It is normally the NextStart
	// of the previously processed pixel; any value in [0, NumAOTValues)
	// is valid and only affects which local minimum the search lands on.
	StartIndex int
}

// Result is the outcome of one pixel's retrieval.
type Result struct {
	// AOT is the selected aerosol optical thickness at 550 nm.
	AOT float64
	// Residual is the band-consistency metric at the selected AOT.
	Residual float64
	// NextStart is the warm-start index to seed the next pixel's search.
	NextStart int
	// Samples is the number of grid points the coarse search evaluated.
	Samples int
}

// sample is one (AOT, residual) evaluation of the coarse search.
type sample struct {
	aot float64
	res float64
}

// Retrieve estimates a pixel's aerosol optical thickness by walking the
// AOT grid from the warm-start index until the band-consistency residual
// stops improving or a band threshold is violated, then refining the
// bracketed minimum with a parabolic fit.
//
// The error return is only exercised by correctors that can fail; with
// the coefficient-driven backend every valid request produces a result.
func Retrieve(req Request) (Result, error) {
	bands, err := bandConfigFor(req.Sensor, req.Policy)
	if err != nil {
		return Result{}, err
	}
	thresh, err := thresholdsFor(req.Sensor, req.Surface, req.Policy)
	if err != nil {
		return Result{}, err
	}
	if req.StartIndex < 0 || req.StartIndex >= NumAOTValues {
		return Result{}, fmt.Errorf("start index %d: %w", req.StartIndex, ErrStartIndex)
	}
	if req.RefBand < bands.StartBand || req.RefBand > bands.EndBand {
		return Result{}, fmt.Errorf("reference band %d outside active range [%d,%d]",
			req.RefBand, bands.StartBand, bands.EndBand)
	}
	if len(req.Ratios) < bands.NumBands {
		return Result{}, fmt.Errorf("got %d ratio coefficients, sensor %q needs %d",
			len(req.Ratios), req.Sensor.String(), bands.NumBands)
	}
	if req.Corrector == nil {
		return Result{}, fmt.Errorf("request has no corrector")
	}

	r := &retrieval{
		corrector: req.Corrector,
		surface:   req.Surface,
		refBand:   req.RefBand,
		ratios:    req.Ratios,
		thresh:    thresh,
		bands:     bands,
	}
	if !r.hasActiveBands() {
		return Result{}, ErrNoActiveBands
	}

	// Coarse search. prev1/prev2 seed a 3-point history with sentinel
	// residuals large enough that the first real sample always improves.
	prev1 := sample{aot: 1.0e-04, res: 2000.0}
	prev2 := sample{aot: 1.0e-06, res: 1000.0}
	idx1, idx2 := 0, 0

	cur := sample{aot: aotGrid[req.StartIndex]}
	var violated bool
	cur.res, violated, err = r.residualAt(cur.aot)
	if err != nil {
		return Result{}, err
	}
	samples := 1

	next := req.StartIndex + 1
	for next < NumAOTValues && cur.res < prev1.res && !violated {
		prev2, idx2 = prev1, idx1
		prev1, idx1 = cur, next
		cur = sample{aot: aotGrid[next]}
		cur.res, violated, err = r.residualAt(cur.aot)
		if err != nil {
			return Result{}, err
		}
		samples++
		next++
	}

	// Single-sample termination: nothing brackets a minimum, so take the
	// seed sample as-is and restart the next search from the bottom of
	// the grid.
	if samples == 1 {
		return Result{AOT: cur.aot, Residual: cur.res, NextStart: 0, Samples: samples}, nil
	}

	aot, residual, err := r.refine(prev2, prev1, cur)
	if err != nil {
		return Result{}, err
	}

	return Result{
		AOT:       aot,
		Residual:  residual,
		NextStart: max(idx2-3, 0),
		Samples:   samples,
	}, nil
}

// refine fits the parabola through the last three coarse samples, solves
// for its vertex, and re-evaluates the residual there. The vertex is
// only trusted inside [RefineMinAOT, RefineMaxAOT]; outside that range
// the last grid sample stands in. Whichever of the four candidates
// (refined point, then the three grid samples newest first) carries the
// smallest residual wins, so an overshooting fit can never make the
// answer worse than the grid.
func (r *retrieval) refine(prev2, prev1, cur sample) (aot, residual float64, err error) {
	// Closed form for the vertex -b/2a of res = a*x^2 + b*x + c through
	// the three samples, with c eliminated:
	//   r1 - r = a(x1^2 - x^2) + b(x1 - x)
	//   r2 - r = a(x2^2 - x^2) + b(x2 - x)
	xa := (prev1.res - cur.res) * (prev2.aot - cur.aot)
	xb := (prev2.res - cur.res) * (prev1.aot - cur.aot)

	vertex := cur.aot
	if xa != xb {
		vertex = 0.5 * (xa*(prev2.aot+cur.aot) - xb*(prev1.aot+cur.aot)) / (xa - xb)
	}
	if vertex < RefineMinAOT || vertex > RefineMaxAOT {
		vertex = cur.aot
	}

	// Threshold violations at the refined point do not matter here; the
	// residual comparison below already rejects a bad refinement.
	refined, _, err := r.residualAt(vertex)
	if err != nil {
		return 0, 0, err
	}

	aot, residual = vertex, refined
	if residual > cur.res {
		aot, residual = cur.aot, cur.res
	}
	if residual > prev1.res {
		aot, residual = prev1.aot, prev1.res
	}
	if residual > prev2.res {
		aot, residual = prev2.aot, prev2.res
	}
	return aot, residual, nil
}
