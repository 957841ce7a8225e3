package aerosol

// NumAOTValues is the length of the discrete AOT search grid.
const NumAOTValues = 22

// aotGrid is the discrete grid of aerosol optical thickness values at
// 550 nm that the coarse search walks. The spacing widens toward high
// loadings, where the correction is less sensitive to the exact value.
// Shared by every pixel and band; never mutated.
var aotGrid = [NumAOTValues]float64{
	0.01, 0.05, 0.1, 0.15, 0.2, 0.3, 0.4, 0.6,
	0.8, 1.0, 1.2, 1.4, 1.6, 1.8, 2.0, 2.3, 2.6,
	3.0, 3.5, 4.0, 4.5, 5.0,
}

// AOTValue returns the grid value at index i.
func AOTValue(i int) float64 { return aotGrid[i] }

// Bounds accepted for a refined (continuous-valued) AOT. A parabolic
// vertex outside this range is discarded in favour of the best grid point.
const (
	RefineMinAOT = 0.01
	RefineMaxAOT = 4.0
)
