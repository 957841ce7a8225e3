// Package atmcor provides the atmospheric correction backends consumed by
// the aerosol retrieval: a coefficient-driven backend using per-band
// semi-empirical polynomial fits, and a table-driven backend interpolating
// full radiative-transfer lookup tables.
package atmcor

import (
	"fmt"
	"math"
)

// NumCoef is the number of polynomial coefficients fitted per atmospheric
// function (cubic in the band aerosol optical thickness).
const NumCoef = 4

// BandCoefficients holds the fitted correction functions for one band
// under one pixel's geometry. The three polynomials map band AOT onto
// intrinsic path reflectance, total two-way transmittance and spherical
// albedo; TGO is the AOT-independent other-gas transmittance.
type BandCoefficients struct {
	TGO             float64
	PathReflectance [NumCoef]float64
	Transmittance   [NumCoef]float64
	SphericalAlbedo [NumCoef]float64

	// NormExt is the band extinction coefficient normalised at 550 nm;
	// it converts the 550 nm AOT candidate into this band's optical
	// thickness under the angstrom law.
	NormExt float64

	// MaxAOT is the largest 550 nm AOT the path-reflectance polynomial
	// was fitted to. Beyond it the fit is extended linearly. 0 disables
	// the cutoff.
	MaxAOT float64
}

// PolyCorrector is the coefficient-driven correction backend. It is bound
// to one pixel: per-band fitted coefficients plus the measured TOA
// reflectances. Correct never returns an error; degenerate inputs yield
// degenerate (but numeric) reflectances.
type PolyCorrector struct {
	bands []BandCoefficients
	toa   []float64
	eps   float64
}

// NewPolyCorrector binds fitted band coefficients and measured TOA
// reflectances into a corrector. eps is the angstrom exponent governing
// the spectral dependency of the AOT.
func NewPolyCorrector(bands []BandCoefficients, toa []float64, eps float64) (*PolyCorrector, error) {
	if len(bands) != len(toa) {
		return nil, fmt.Errorf("got %d band coefficient sets for %d TOA reflectances", len(bands), len(toa))
	}
	return &PolyCorrector{bands: bands, toa: toa, eps: eps}, nil
}

// Correct returns the lambertian surface reflectance of band at the
// candidate 550 nm AOT.
func (p *PolyCorrector) Correct(band int, aot float64) (float64, error) {
	b := &p.bands[band]

	tau := aot
	tauMax := b.MaxAOT
	if b.NormExt > 0 {
		scale := math.Pow(b.NormExt, p.eps)
		tau = aot * scale
		tauMax = b.MaxAOT * scale
	}

	roatm := evalPolyExtended(b.PathReflectance, tau, tauMax)
	ttatmg := evalPoly(b.Transmittance, tau)
	satm := evalPoly(b.SphericalAlbedo, tau)

	return lambertian(p.toa[band], b.TGO, roatm, ttatmg, satm), nil
}

// lambertian inverts the standard correction chain: scale out the gaseous
// transmittance, remove the atmospheric path reflectance, divide by the
// total transmittance, and undo the spherical-albedo coupling.
func lambertian(toa, tgo, roatm, ttatmg, satm float64) float64 {
	ros := toa
	if tgo > 0 {
		ros /= tgo
	}
	ros = (ros - roatm) / ttatmg
	return ros / (1.0 + satm*ros)
}

func evalPoly(c [NumCoef]float64, x float64) float64 {
	return c[0] + x*(c[1]+x*(c[2]+x*c[3]))
}

// evalPolyExtended continues the cubic linearly past xmax, where the fit
// is no longer trusted.
func evalPolyExtended(c [NumCoef]float64, x, xmax float64) float64 {
	if xmax <= 0 || x <= xmax {
		return evalPoly(c, x)
	}
	slope := c[1] + xmax*(2*c[2]+3*xmax*c[3])
	return evalPoly(c, xmax) + slope*(x-xmax)
}
