package atmcor

import (
	"errors"
	"fmt"
	"math"

	"github.com/signalsfoundry/surface-reflectance/aerosol"
)

// ErrOutOfRange is wrapped into an aerosol.EvaluationError when a lookup
// falls outside the tabulated grid.
var ErrOutOfRange = errors.New("value outside lookup table range")

// Geometry is the per-pixel viewing and atmospheric state consumed by the
// table-driven backend. Angles in degrees, pressure in millibars, ozone
// in cm-atm, water vapour in g/cm^2.
type Geometry struct {
	SolarZenith     float64
	ViewZenith      float64
	RelativeAzimuth float64
	Pressure        float64
	Ozone           float64
	WaterVapor      float64
}

// BandLUT holds one band's correction functions sampled on a
// pressure x AOT grid. Axis slices are strictly ascending; the value
// grids are indexed [pressure][aot].
type BandLUT struct {
	Pressures []float64
	AOTs      []float64

	PathReflectance [][]float64
	Transmittance   [][]float64
	SphericalAlbedo [][]float64

	TGO     float64
	NormExt float64
}

// LUTSet bundles the per-band tables for one sensor.
type LUTSet struct {
	Bands []BandLUT
}

// LUTCorrector is the table-driven correction backend, bound to one
// pixel's geometry and TOA reflectances. Lookups outside the tabulated
// pressure or AOT range fail with an aerosol.EvaluationError.
type LUTCorrector struct {
	set  *LUTSet
	geom Geometry
	toa  []float64
	eps  float64
}

// NewLUTCorrector binds a lookup table set, pixel geometry and measured
// TOA reflectances into a corrector.
func NewLUTCorrector(set *LUTSet, geom Geometry, toa []float64, eps float64) (*LUTCorrector, error) {
	if set == nil {
		return nil, fmt.Errorf("nil lookup table set")
	}
	if len(set.Bands) != len(toa) {
		return nil, fmt.Errorf("got %d band tables for %d TOA reflectances", len(set.Bands), len(toa))
	}
	return &LUTCorrector{set: set, geom: geom, toa: toa, eps: eps}, nil
}

// Correct returns the lambertian surface reflectance of band at the
// candidate 550 nm AOT, interpolating the band's tables at the pixel's
// surface pressure.
func (l *LUTCorrector) Correct(band int, aot float64) (float64, error) {
	b := &l.set.Bands[band]

	tau := aot
	if b.NormExt > 0 {
		tau = aot * math.Pow(b.NormExt, l.eps)
	}

	roatm, err := interp2(b.Pressures, b.AOTs, b.PathReflectance, l.geom.Pressure, tau)
	if err != nil {
		return 0, &aerosol.EvaluationError{Band: band, AOT: aot, Err: fmt.Errorf("path reflectance: %w", err)}
	}
	ttatmg, err := interp2(b.Pressures, b.AOTs, b.Transmittance, l.geom.Pressure, tau)
	if err != nil {
		return 0, &aerosol.EvaluationError{Band: band, AOT: aot, Err: fmt.Errorf("transmittance: %w", err)}
	}
	satm, err := interp2(b.Pressures, b.AOTs, b.SphericalAlbedo, l.geom.Pressure, tau)
	if err != nil {
		return 0, &aerosol.EvaluationError{Band: band, AOT: aot, Err: fmt.Errorf("spherical albedo: %w", err)}
	}

	return lambertian(l.toa[band], b.TGO, roatm, ttatmg, satm), nil
}

// interp2 bilinearly interpolates grid at (x, y), where xs and ys are the
// strictly ascending axis samples of the grid's two dimensions.
func interp2(xs, ys []float64, grid [][]float64, x, y float64) (float64, error) {
	i, fx, err := bracket(xs, x)
	if err != nil {
		return 0, err
	}
	j, fy, err := bracket(ys, y)
	if err != nil {
		return 0, err
	}

	v00 := grid[i][j]
	v10 := grid[i+1][j]
	v01 := grid[i][j+1]
	v11 := grid[i+1][j+1]
	return v00*(1-fx)*(1-fy) + v10*fx*(1-fy) + v01*(1-fx)*fy + v11*fx*fy, nil
}

// bracket locates x within the ascending axis and returns the lower cell
// index plus the fractional offset into the cell.
func bracket(axis []float64, x float64) (int, float64, error) {
	n := len(axis)
	if n < 2 {
		return 0, 0, fmt.Errorf("axis has %d samples: %w", n, ErrOutOfRange)
	}
	if x < axis[0] || x > axis[n-1] {
		return 0, 0, fmt.Errorf("%g outside [%g, %g]: %w", x, axis[0], axis[n-1], ErrOutOfRange)
	}
	if x == axis[n-1] {
		return n - 2, 1, nil
	}

	lo := 0
	for lo+1 < n-1 && axis[lo+1] <= x {
		lo++
	}
	return lo, (x - axis[lo]) / (axis[lo+1] - axis[lo]), nil
}
