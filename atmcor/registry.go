package atmcor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/surface-reflectance/aerosol"
)

var (
	// ErrAlreadyRegistered is returned when correction data for a sensor
	// is added twice.
	ErrAlreadyRegistered = errors.New("sensor already registered")
	// ErrNotRegistered is returned when no correction data exists for a
	// sensor.
	ErrNotRegistered = errors.New("sensor not registered")
)

// Registry is an in-memory, thread-safe store for per-sensor correction
// data. A scene loader populates it once at startup; pixel workers then
// read from it concurrently.
type Registry struct {
	mu sync.RWMutex

	luts   map[aerosol.Sensor]*LUTSet
	coeffs map[aerosol.Sensor][]BandCoefficients
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		luts:   make(map[aerosol.Sensor]*LUTSet),
		coeffs: make(map[aerosol.Sensor][]BandCoefficients),
	}
}

// AddLUTSet stores a sensor's lookup tables. It returns an error if the
// sensor already has tables registered.
func (r *Registry) AddLUTSet(sensor aerosol.Sensor, set *LUTSet) error {
	if set == nil {
		return fmt.Errorf("nil lookup table set for sensor %q", sensor.String())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.luts[sensor]; exists {
		return fmt.Errorf("lookup tables for sensor %q: %w", sensor.String(), ErrAlreadyRegistered)
	}
	r.luts[sensor] = set
	return nil
}

// LUTSet returns the lookup tables registered for a sensor.
func (r *Registry) LUTSet(sensor aerosol.Sensor) (*LUTSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.luts[sensor]
	if !ok {
		return nil, fmt.Errorf("lookup tables for sensor %q: %w", sensor.String(), ErrNotRegistered)
	}
	return set, nil
}

// AddCoefficients stores a sensor's fitted band coefficients. It returns
// an error if the sensor already has coefficients registered.
func (r *Registry) AddCoefficients(sensor aerosol.Sensor, bands []BandCoefficients) error {
	if len(bands) == 0 {
		return fmt.Errorf("empty coefficient set for sensor %q", sensor.String())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.coeffs[sensor]; exists {
		return fmt.Errorf("coefficients for sensor %q: %w", sensor.String(), ErrAlreadyRegistered)
	}
	r.coeffs[sensor] = bands
	return nil
}

// Coefficients returns the fitted band coefficients registered for a
// sensor.
func (r *Registry) Coefficients(sensor aerosol.Sensor) ([]BandCoefficients, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bands, ok := r.coeffs[sensor]
	if !ok {
		return nil, fmt.Errorf("coefficients for sensor %q: %w", sensor.String(), ErrNotRegistered)
	}
	return bands, nil
}
