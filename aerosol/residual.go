package aerosol

import "math"

// retrieval bundles the fixed per-pixel state shared by every residual
// evaluation of one search.
type retrieval struct {
	corrector Corrector
	surface   Surface
	refBand   int
	ratios    []float64
	thresh    []float64
	bands     BandConfig
}

// hasActiveBands reports whether at least one band would contribute to
// the residual sum. Land pixels never count the reference band; water
// pixels do.
func (r *retrieval) hasActiveBands() bool {
	for ib := r.bands.StartBand; ib <= r.bands.EndBand; ib++ {
		if r.ratios[ib] <= 0 {
			continue
		}
		if r.surface != Water && ib == r.refBand {
			continue
		}
		return true
	}
	return false
}

// residualAt corrects every active band at the candidate AOT and returns
// the band-consistency residual together with a flag set when any
// corrected reflectance fell below its band threshold.
//
// Water pixels measure how close the corrected reflectances sit to zero
// across all active bands including the reference band. Land pixels
// measure how well each band tracks the reference band through its ratio
// coefficient, excluding the reference band itself.
func (r *retrieval) residualAt(aot float64) (residual float64, violated bool, err error) {
	ros1, err := r.corrector.Correct(r.refBand, aot)
	if err != nil {
		return 0, false, err
	}
	violated = ros1 < r.thresh[r.refBand]

	var sum float64
	nbval := 0
	for ib := r.bands.StartBand; ib <= r.bands.EndBand; ib++ {
		if r.ratios[ib] <= 0 {
			continue
		}

		if r.surface == Water {
			ros := ros1
			if ib != r.refBand {
				ros, err = r.corrector.Correct(ib, aot)
				if err != nil {
					return 0, false, err
				}
			}
			if ros < r.thresh[ib] {
				violated = true
			}
			sum += ros * ros
			nbval++
			continue
		}

		if ib == r.refBand {
			continue
		}
		ros, err := r.corrector.Correct(ib, aot)
		if err != nil {
			return 0, false, err
		}
		if ros < r.thresh[ib] {
			violated = true
		}
		diff := ros - r.ratios[ib]*ros1
		sum += diff * diff
		nbval++
	}

	return math.Sqrt(sum) / float64(nbval), violated, nil
}
