package aerosol

import (
	"errors"
	"math"
	"testing"
)

// funcCorrector adapts a closure into a Corrector.
type funcCorrector func(band int, aot float64) (float64, error)

func (f funcCorrector) Correct(band int, aot float64) (float64, error) { return f(band, aot) }

// linearCorrector models corrected = toa - k*aot per band.
type linearCorrector struct {
	toa []float64
	k   []float64
}

func (c *linearCorrector) Correct(band int, aot float64) (float64, error) {
	return c.toa[band] - c.k[band]*aot, nil
}

func constCorrector(v float64) funcCorrector {
	return func(int, float64) (float64, error) { return v, nil }
}

func TestRetrieveWarmStartIndexWithinGrid(t *testing.T) {
	sensors := []Sensor{SensorLandsat8, SensorLandsat9, SensorSentinel2}
	surfaces := []Surface{Land, Water}
	starts := []int{0, 5, 11, NumAOTValues - 1}

	for _, sensor := range sensors {
		for _, surface := range surfaces {
			for _, start := range starts {
				ratios := make([]float64, 13)
				for i := range ratios {
					ratios[i] = 1.0
				}
				res, err := Retrieve(Request{
					Sensor:  sensor,
					Surface: surface,
					RefBand: 0,
					Ratios:  ratios,
					// Residual shrinks with AOT, so the search walks the
					// grid until it runs out of improvement.
					Corrector: funcCorrector(func(band int, aot float64) (float64, error) {
						return 0.5 / (1 + aot), nil
					}),
					StartIndex: start,
				})
				if err != nil {
					t.Fatalf("Retrieve(%v, %v, start=%d): %v", sensor, surface, start, err)
				}
				if res.NextStart < 0 || res.NextStart >= NumAOTValues {
					t.Errorf("Retrieve(%v, %v, start=%d): NextStart = %d, want in [0, %d]",
						sensor, surface, start, res.NextStart, NumAOTValues-1)
				}
				if res.Residual < 0 {
					t.Errorf("Retrieve(%v, %v, start=%d): residual = %v, want >= 0",
						sensor, surface, start, res.Residual)
				}
			}
		}
	}
}

func TestRetrieveZeroReflectanceStub(t *testing.T) {
	ratios := []float64{0, 1, 1, 1, 0, 0, 0, 0}
	res, err := Retrieve(Request{
		Sensor:     SensorLandsat8,
		Surface:    Land,
		RefBand:    0,
		Ratios:     ratios,
		Corrector:  constCorrector(0),
		StartIndex: 0,
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if res.Residual != 0 {
		t.Errorf("residual = %v, want 0 for all-zero corrected reflectances", res.Residual)
	}
	// Zero reflectance sits below the reference-band threshold, so the
	// search must stop at the seed sample.
	if res.Samples != 1 {
		t.Errorf("samples = %d, want 1 (threshold violation at seed)", res.Samples)
	}
}

func TestRefineRecoversExactVertex(t *testing.T) {
	// One active land band whose mismatch against the reference is
	// exactly (aot - 0.5)^2, so the three samples lie on a known
	// parabola and the vertex must come back exactly.
	r := &retrieval{
		corrector: funcCorrector(func(band int, aot float64) (float64, error) {
			if band == 0 {
				return 0, nil
			}
			return (aot - 0.5) * (aot - 0.5), nil
		}),
		surface: Land,
		refBand: 0,
		ratios:  []float64{0, 1, 0, 0, 0, 0, 0, 0},
		thresh:  landsatThresh,
		bands:   BandConfig{NumBands: 8, StartBand: 0, EndBand: 6},
	}

	samples := make([]sample, 3)
	for i, x := range []float64{0.2, 0.4, 0.6} {
		res, _, err := r.residualAt(x)
		if err != nil {
			t.Fatalf("residualAt(%v): %v", x, err)
		}
		samples[i] = sample{aot: x, res: res}
	}

	aot, residual, err := r.refine(samples[0], samples[1], samples[2])
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	if math.Abs(aot-0.5) > 1e-9 {
		t.Errorf("refined AOT = %v, want 0.5", aot)
	}
	if residual > 1e-12 {
		t.Errorf("refined residual = %v, want ~0", residual)
	}
}

func TestRefineRejectsVertexOutsideBounds(t *testing.T) {
	// Samples taken on (aot - 10)^2 put the fitted vertex at 10, far
	// outside the accepted range; the best grid sample must stand.
	r := &retrieval{
		corrector: funcCorrector(func(band int, aot float64) (float64, error) {
			if band == 0 {
				return 0, nil
			}
			return (aot - 10) * (aot - 10), nil
		}),
		surface: Land,
		refBand: 0,
		ratios:  []float64{0, 1, 0, 0, 0, 0, 0, 0},
		thresh:  landsatThresh,
		bands:   BandConfig{NumBands: 8, StartBand: 0, EndBand: 6},
	}

	samples := make([]sample, 3)
	for i, x := range []float64{2.0, 2.3, 2.6} {
		res, _, err := r.residualAt(x)
		if err != nil {
			t.Fatalf("residualAt(%v): %v", x, err)
		}
		samples[i] = sample{aot: x, res: res}
	}

	aot, _, err := r.refine(samples[0], samples[1], samples[2])
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	// 2.6 is the newest (lowest-residual) sample on this descending slope.
	if aot != 2.6 {
		t.Errorf("refined AOT = %v, want fallback to best grid sample 2.6", aot)
	}
}

func TestResidualWaterIncludesReferenceBand(t *testing.T) {
	calls := make(map[int]int)
	corrector := funcCorrector(func(band int, aot float64) (float64, error) {
		calls[band]++
		return []float64{0.5, 0.8, 0, 0, 0, 0, 0, 0}[band], nil
	})

	r := &retrieval{
		corrector: corrector,
		surface:   Water,
		refBand:   0,
		ratios:    []float64{1, 1, 0, 0, 0, 0, 0, 0},
		thresh:    landsatThreshWater,
		bands:     BandConfig{NumBands: 8, StartBand: 0, EndBand: 6},
	}
	res, _, err := r.residualAt(0.1)
	if err != nil {
		t.Fatalf("residualAt: %v", err)
	}

	want := math.Sqrt(0.5*0.5+0.8*0.8) / 2
	if math.Abs(res-want) > 1e-12 {
		t.Errorf("water residual = %v, want %v (reference band included)", res, want)
	}
}

func TestResidualLandExcludesReferenceBand(t *testing.T) {
	r := &retrieval{
		corrector: funcCorrector(func(band int, aot float64) (float64, error) {
			return []float64{0.5, 0.8, 0, 0, 0, 0, 0, 0}[band], nil
		}),
		surface: Land,
		refBand: 0,
		ratios:  []float64{1, 0.5, 0, 0, 0, 0, 0, 0},
		thresh:  landsatThresh,
		bands:   BandConfig{NumBands: 8, StartBand: 0, EndBand: 6},
	}
	res, _, err := r.residualAt(0.1)
	if err != nil {
		t.Fatalf("residualAt: %v", err)
	}

	// Only band 1 contributes: |0.8 - 0.5*0.5| over one band. A positive
	// ratio on the reference band itself must not add a term.
	want := 0.8 - 0.5*0.5
	if math.Abs(res-want) > 1e-12 {
		t.Errorf("land residual = %v, want %v (reference band excluded)", res, want)
	}
}

func TestRetrieveThresholdViolationAtSeedStopsSearch(t *testing.T) {
	const start = 7
	evals := 0
	res, err := Retrieve(Request{
		Sensor:  SensorLandsat8,
		Surface: Land,
		RefBand: 0,
		Ratios:  []float64{0, 1, 0, 0, 0, 0, 0, 0},
		Corrector: funcCorrector(func(band int, aot float64) (float64, error) {
			if band == 0 {
				evals++
			}
			// Below every band threshold from the first sample on.
			return -0.01, nil
		}),
		StartIndex: start,
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if res.Samples != 1 {
		t.Errorf("samples = %d, want 1", res.Samples)
	}
	if evals != 1 {
		t.Errorf("reference band evaluated %d times, want 1 (no refinement pass)", evals)
	}
	if res.AOT != AOTValue(start) {
		t.Errorf("AOT = %v, want seed grid value %v", res.AOT, AOTValue(start))
	}
	if res.NextStart != 0 {
		t.Errorf("NextStart = %d, want 0 after single-sample termination", res.NextStart)
	}
}

func TestRetrieveConvergesToAnalyticMinimum(t *testing.T) {
	// corrected = toa - k*aot, with every band's mismatch against the
	// ratio model vanishing at aot = 1.9 (midway between the 1.8 and 2.0
	// grid points). The least-squares minimizer of
	//   sum_b (toa_b - k_b*x - ratio_b*(toa_0 - k_0*x))^2
	// is x = 1.9 by construction.
	corrector := &linearCorrector{
		toa: []float64{0.15, 0.169, 0.158, 0.1185, 0, 0, 0, 0},
		k:   []float64{0.02, 0.03, 0.036, 0.027, 0, 0, 0, 0},
	}

	res, err := Retrieve(Request{
		Sensor:     SensorLandsat8,
		Surface:    Land,
		RefBand:    0,
		Ratios:     []float64{0, 1.0, 0.8, 0.6, 0, 0, 0, 0},
		Corrector:  corrector,
		StartIndex: 0,
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if math.Abs(res.AOT-1.9) > 1e-4 {
		t.Errorf("AOT = %v, want 1.9 within 1e-4", res.AOT)
	}
	if res.Residual > 1e-8 {
		t.Errorf("residual = %v, want ~0 at the consistent AOT", res.Residual)
	}
	// The search must walk well up the grid (1.8 is index 13) before the
	// residual stops improving.
	if res.Samples < 15 {
		t.Errorf("samples = %d, want the search to reach the bracket around 1.9", res.Samples)
	}
	if res.NextStart < 10 || res.NextStart > 11 {
		t.Errorf("NextStart = %d, want three grid points below the bracket", res.NextStart)
	}
}

func TestRetrieveNoActiveBands(t *testing.T) {
	// Land with only the reference band enabled has nothing to compare
	// against; the residual would be 0/0.
	_, err := Retrieve(Request{
		Sensor:     SensorLandsat8,
		Surface:    Land,
		RefBand:    0,
		Ratios:     []float64{1, 0, 0, 0, 0, 0, 0, 0},
		Corrector:  constCorrector(0.1),
		StartIndex: 0,
	})
	if !errors.Is(err, ErrNoActiveBands) {
		t.Fatalf("err = %v, want ErrNoActiveBands", err)
	}

	// The same ratios are fine on water, where the reference band counts.
	if _, err := Retrieve(Request{
		Sensor:     SensorLandsat8,
		Surface:    Water,
		RefBand:    0,
		Ratios:     []float64{1, 0, 0, 0, 0, 0, 0, 0},
		Corrector:  constCorrector(0.1),
		StartIndex: 0,
	}); err != nil {
		t.Fatalf("water with reference-band-only ratios: %v", err)
	}
}

func TestRetrieveValidatesRequest(t *testing.T) {
	base := Request{
		Sensor:     SensorLandsat8,
		Surface:    Land,
		RefBand:    0,
		Ratios:     []float64{0, 1, 0, 0, 0, 0, 0, 0},
		Corrector:  constCorrector(0.1),
		StartIndex: 0,
	}

	bad := base
	bad.StartIndex = NumAOTValues
	if _, err := Retrieve(bad); !errors.Is(err, ErrStartIndex) {
		t.Errorf("start index %d: err = %v, want ErrStartIndex", bad.StartIndex, err)
	}

	bad = base
	bad.StartIndex = -1
	if _, err := Retrieve(bad); !errors.Is(err, ErrStartIndex) {
		t.Errorf("start index -1: err = %v, want ErrStartIndex", err)
	}

	bad = base
	bad.Sensor = SensorUnknown
	if _, err := Retrieve(bad); !errors.Is(err, ErrUnknownSensor) {
		t.Errorf("unknown sensor: err = %v, want ErrUnknownSensor", err)
	}

	bad = base
	bad.Ratios = []float64{0, 1}
	if _, err := Retrieve(bad); err == nil {
		t.Errorf("short ratio slice accepted")
	}

	bad = base
	bad.RefBand = 7
	if _, err := Retrieve(bad); err == nil {
		t.Errorf("reference band outside active range accepted")
	}
}

func TestRetrievePropagatesEvaluationError(t *testing.T) {
	evalErr := &EvaluationError{Band: 2, AOT: 0.05, Err: errors.New("pressure outside table")}
	_, err := Retrieve(Request{
		Sensor:  SensorLandsat8,
		Surface: Land,
		RefBand: 0,
		Ratios:  []float64{0, 1, 1, 0, 0, 0, 0, 0},
		Corrector: funcCorrector(func(band int, aot float64) (float64, error) {
			if band == 2 {
				return 0, evalErr
			}
			return 0.1, nil
		}),
		StartIndex: 0,
	})

	var ee *EvaluationError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want an EvaluationError", err)
	}
	if ee.Band != 2 {
		t.Errorf("EvaluationError.Band = %d, want 2", ee.Band)
	}
}
