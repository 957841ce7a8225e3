package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RetrievalCollector bundles Prometheus metrics for the per-pixel aerosol
// retrieval and provides a scrape handler for long-running processors.
type RetrievalCollector struct {
	gatherer prometheus.Gatherer

	PixelsRetrieved *prometheus.CounterVec
	PixelsFailed    *prometheus.CounterVec
	Residuals       *prometheus.HistogramVec
	SearchSamples   prometheus.Histogram

	ScenesProcessed prometheus.Counter
}

// NewRetrievalCollector registers retrieval metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewRetrievalCollector(reg prometheus.Registerer) (*RetrievalCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	retrieved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aerosol_pixels_retrieved_total",
		Help: "Total number of pixels with a successful AOT retrieval, labeled by sensor and surface type.",
	}, []string{"sensor", "surface"})
	retrieved, err := registerCounterVec(reg, retrieved, "aerosol_pixels_retrieved_total")
	if err != nil {
		return nil, err
	}

	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aerosol_pixels_failed_total",
		Help: "Total number of pixels marked unretrievable, labeled by sensor and surface type.",
	}, []string{"sensor", "surface"})
	failed, err = registerCounterVec(reg, failed, "aerosol_pixels_failed_total")
	if err != nil {
		return nil, err
	}

	residuals := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aerosol_retrieval_residual",
		Help:    "Band-consistency residual at the selected AOT.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"sensor", "surface"})
	residuals, err = registerHistogramVec(reg, residuals, "aerosol_retrieval_residual")
	if err != nil {
		return nil, err
	}

	samples, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "aerosol_search_samples",
		Help:    "Grid points evaluated by the coarse AOT search per pixel.",
		Buckets: prometheus.LinearBuckets(1, 2, 11),
	}), "aerosol_search_samples")
	if err != nil {
		return nil, err
	}

	scenes, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aerosol_scenes_processed_total",
		Help: "Total number of scenes run through the processor.",
	}), "aerosol_scenes_processed_total")
	if err != nil {
		return nil, err
	}

	return &RetrievalCollector{
		gatherer:        gatherer,
		PixelsRetrieved: retrieved,
		PixelsFailed:    failed,
		Residuals:       residuals,
		SearchSamples:   samples,
		ScenesProcessed: scenes,
	}, nil
}

// ObserveRetrieval records a successful pixel retrieval.
func (c *RetrievalCollector) ObserveRetrieval(sensor, surface string, residual float64, samples int) {
	if c == nil {
		return
	}
	if c.PixelsRetrieved != nil {
		c.PixelsRetrieved.WithLabelValues(sensor, surface).Inc()
	}
	if c.Residuals != nil {
		c.Residuals.WithLabelValues(sensor, surface).Observe(residual)
	}
	if c.SearchSamples != nil {
		c.SearchSamples.Observe(float64(samples))
	}
}

// ObserveFailure records a pixel that could not be retrieved.
func (c *RetrievalCollector) ObserveFailure(sensor, surface string) {
	if c == nil {
		return
	}
	if c.PixelsFailed != nil {
		c.PixelsFailed.WithLabelValues(sensor, surface).Inc()
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RetrievalCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
