package aerosol

import "fmt"

// Sensor identifies the instrument family a pixel was acquired by.
type Sensor int

const (
	SensorUnknown Sensor = iota
	SensorLandsat8
	SensorLandsat9
	SensorSentinel2
)

func (s Sensor) String() string {
	switch s {
	case SensorLandsat8:
		return "landsat-8"
	case SensorLandsat9:
		return "landsat-9"
	case SensorSentinel2:
		return "sentinel-2"
	default:
		return "unknown"
	}
}

// BandPolicy selects which Sentinel-2 bands participate in a retrieval.
// The reduced set drops bands 9 and 10 (cirrus/water-vapour bands that
// carry no surface signal). Landsat retrievals ignore the policy.
type BandPolicy int

const (
	// ReducedBands excludes Sentinel-2 bands 9 and 10. This is the
	// production default.
	ReducedBands BandPolicy = iota
	// AllBands processes the full 13-band Sentinel-2 set.
	AllBands
)

func (p BandPolicy) String() string {
	if p == AllBands {
		return "all-bands"
	}
	return "reduced-bands"
}

// Surface tags a pixel as land or water; the two use different
// band-consistency models.
type Surface int

const (
	Land Surface = iota
	Water
)

func (s Surface) String() string {
	if s == Water {
		return "water"
	}
	return "land"
}

// BandConfig describes which spectral bands of a sensor participate in
// the retrieval. EndBand is inclusive.
type BandConfig struct {
	NumBands  int
	StartBand int
	EndBand   int
}

// bandConfigFor maps a sensor and band policy onto the active band range.
func bandConfigFor(sensor Sensor, policy BandPolicy) (BandConfig, error) {
	switch sensor {
	case SensorLandsat8, SensorLandsat9:
		// Bands 1-7 participate; the cirrus band is carried in the
		// array but never corrected.
		return BandConfig{NumBands: 8, StartBand: 0, EndBand: 6}, nil
	case SensorSentinel2:
		if policy == AllBands {
			return BandConfig{NumBands: 13, StartBand: 0, EndBand: 12}, nil
		}
		return BandConfig{NumBands: 11, StartBand: 0, EndBand: 10}, nil
	default:
		return BandConfig{}, fmt.Errorf("sensor %q: %w", sensor.String(), ErrUnknownSensor)
	}
}
