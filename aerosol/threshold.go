package aerosol

import "fmt"

// Minimum-reflectance thresholds per band. A corrected reflectance below
// its band's threshold means the candidate AOT over-corrected the pixel,
// which terminates the search. Values are carried over unchanged from the
// legacy reference tables.
var (
	landsatThresh = []float64{
		1.0e-03, 1.0e-03, 0.0, 1.0e-03, 0.0, 0.0, 1.0e-04, 0.0,
	}
	landsatThreshWater = []float64{
		1.0e-03, 1.0e-03, 0.0, 1.0e-03, 1.0e-03, 0.0, 1.0e-04, 0.0,
	}

	sentinelThreshAll = []float64{
		1.0e-03, 1.0e-03, 0.0, 1.0e-03, 0.0, 0.0, 0.0,
		0.0, 0.0, 0.0, 0.0, 0.0, 1.0e-04,
	}
	sentinelThreshWaterAll = []float64{
		1.0e-03, 0.0, 0.0, 1.0e-03, 0.0, 0.0, 0.0,
		0.0, 1.0e-03, 0.0, 0.0, 0.0, 1.0e-04,
	}

	// Reduced-set tables with Sentinel-2 bands 9 and 10 removed.
	sentinelThresh = []float64{
		1.0e-03, 1.0e-03, 0.0, 1.0e-03, 0.0, 0.0, 0.0,
		0.0, 0.0, 0.0, 1.0e-04,
	}
	// The water assignments here duplicate the legacy FORTRAN array and
	// are suspected of being shifted onto the wrong bands (1, 4, 8a, 12
	// was probably intended). Kept verbatim for compatibility until the
	// physics is re-verified against the reference.
	sentinelThreshWater = []float64{
		1.0e-03, 0.0, 0.0, 1.0e-03, 0.0, 0.0, 0.0,
		0.0, 1.0e-03, 0.0, 1.0e-04,
	}
)

// thresholdsFor selects the per-band minimum-reflectance table for a
// sensor, surface type and band policy.
func thresholdsFor(sensor Sensor, surface Surface, policy BandPolicy) ([]float64, error) {
	switch sensor {
	case SensorLandsat8, SensorLandsat9:
		if surface == Water {
			return landsatThreshWater, nil
		}
		return landsatThresh, nil
	case SensorSentinel2:
		if policy == AllBands {
			if surface == Water {
				return sentinelThreshWaterAll, nil
			}
			return sentinelThreshAll, nil
		}
		if surface == Water {
			return sentinelThreshWater, nil
		}
		return sentinelThresh, nil
	default:
		return nil, fmt.Errorf("sensor %q: %w", sensor.String(), ErrUnknownSensor)
	}
}
