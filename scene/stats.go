package scene

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates a scene's retrieval outputs.
type Summary struct {
	Pixels    int
	Retrieved int
	Failed    int

	MeanAOT   float64
	MedianAOT float64
	P90AOT    float64
	MinAOT    float64
	MaxAOT    float64

	MaxResidual float64
}

// Summarize computes aggregate statistics over the retrieved pixels of a
// result. Unretrievable pixels only contribute to the failure count.
func Summarize(res *Result) Summary {
	s := Summary{Pixels: len(res.AOT)}
	if len(res.AOT) == 0 {
		return s
	}

	aots := make([]float64, 0, len(res.AOT))
	residuals := make([]float64, 0, len(res.AOT))
	for i, ok := range res.Retrieved {
		if !ok {
			continue
		}
		aots = append(aots, res.AOT[i])
		residuals = append(residuals, res.Residual[i])
	}
	s.Retrieved = len(aots)
	s.Failed = s.Pixels - s.Retrieved
	if s.Retrieved == 0 {
		return s
	}

	sort.Float64s(aots)
	s.MeanAOT = stat.Mean(aots, nil)
	s.MedianAOT = stat.Quantile(0.5, stat.Empirical, aots, nil)
	s.P90AOT = stat.Quantile(0.9, stat.Empirical, aots, nil)
	s.MinAOT = aots[0]
	s.MaxAOT = aots[len(aots)-1]
	s.MaxResidual = floats.Max(residuals)

	return s
}
