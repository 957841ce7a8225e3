package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"

	"github.com/signalsfoundry/surface-reflectance/aerosol"
	"github.com/signalsfoundry/surface-reflectance/atmcor"
	"github.com/signalsfoundry/surface-reflectance/internal/logging"
	"github.com/signalsfoundry/surface-reflectance/internal/observability"
	"github.com/signalsfoundry/surface-reflectance/scene"
)

func main() {
	sensorName := flag.String("sensor", "landsat-8", "sensor family (landsat-8, landsat-9, sentinel-2)")
	allBands := flag.Bool("all-bands", false, "process the full Sentinel-2 band set instead of the reduced set")
	width := flag.Int("width", 256, "synthetic scene width in pixels")
	height := flag.Int("height", 256, "synthetic scene height in pixels")
	waterFraction := flag.Float64("water-fraction", 0.2, "fraction of pixels flagged as water")
	eps := flag.Float64("eps", 1.0, "angstrom exponent")
	tileRows := flag.Int("tile-rows", 0, "rows per parallel tile (0 = sequential scan order)")
	seed := flag.Int64("seed", 1, "random seed for the synthetic scene")
	metricsListen := flag.String("metrics-listen", "", "address to serve /metrics on (empty = disabled)")

	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	sensor, err := parseSensor(*sensorName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	policy := aerosol.ReducedBands
	if *allBands {
		policy = aerosol.AllBands
	}

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		panic(fmt.Errorf("failed to init tracing: %w", err))
	}
	defer observability.ShutdownWithTimeout(ctx, shutdown, log)

	collector, err := observability.NewRetrievalCollector(nil)
	if err != nil {
		panic(fmt.Errorf("failed to register metrics: %w", err))
	}
	if *metricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsListen, mux); err != nil {
				fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
			}
		}()
		fmt.Printf("Serving metrics on %s/metrics\n", *metricsListen)
	}

	sc := buildSyntheticScene(sensor, policy, *width, *height, *waterFraction, *eps, *seed)

	processor := scene.NewProcessor(scene.Config{
		Sensor:    sensor,
		Policy:    policy,
		RefBand:   0,
		TileRows:  *tileRows,
		Logger:    log,
		Collector: collector,
	})

	result, err := processor.Run(ctx, sc)
	if err != nil {
		panic(fmt.Errorf("scene processing failed: %w", err))
	}

	s := scene.Summarize(result)
	fmt.Printf("Scene %q (%s, %s): %d pixels, %d retrieved, %d failed\n",
		sc.ID, sensor, policy, s.Pixels, s.Retrieved, s.Failed)
	fmt.Printf("AOT mean=%.4f median=%.4f p90=%.4f range=[%.4f, %.4f] max residual=%.6f\n",
		s.MeanAOT, s.MedianAOT, s.P90AOT, s.MinAOT, s.MaxAOT, s.MaxResidual)
}

func parseSensor(name string) (aerosol.Sensor, error) {
	switch name {
	case "landsat-8", "l8":
		return aerosol.SensorLandsat8, nil
	case "landsat-9", "l9":
		return aerosol.SensorLandsat9, nil
	case "sentinel-2", "s2":
		return aerosol.SensorSentinel2, nil
	default:
		return aerosol.SensorUnknown, fmt.Errorf("unknown sensor %q", name)
	}
}

// buildSyntheticScene fabricates a scene whose pixels carry plausible
// coefficient sets and TOA reflectances, with a "true" aerosol loading
// that drifts smoothly across the raster so warm starts stay useful.
func buildSyntheticScene(sensor aerosol.Sensor, policy aerosol.BandPolicy, width, height int, waterFraction, eps float64, seed int64) *scene.Scene {
	rng := rand.New(rand.NewSource(seed))

	numBands := 8
	if sensor == aerosol.SensorSentinel2 {
		numBands = 11
		if policy == aerosol.AllBands {
			numBands = 13
		}
	}

	sc := &scene.Scene{
		ID:     fmt.Sprintf("synthetic-%s-%dx%d", sensor, width, height),
		Width:  width,
		Height: height,
		Pixels: make([]scene.Pixel, width*height),
	}

	// Land ratio model: visible bands track the reference band.
	ratios := make([]float64, numBands)
	ratios[1] = 1.0
	if numBands > 2 {
		ratios[2] = 0.8
	}
	if numBands > 3 {
		ratios[3] = 0.6
	}
	waterRatios := make([]float64, numBands)
	for ib := 0; ib < min(4, numBands); ib++ {
		waterRatios[ib] = 1.0
	}

	for i := range sc.Pixels {
		row := i / width
		trueAOT := 0.05 + 0.6*float64(row)/float64(height)

		bands := make([]atmcor.BandCoefficients, numBands)
		toa := make([]float64, numBands)
		surface := aerosol.Land
		pixRatios := ratios
		if rng.Float64() < waterFraction {
			surface = aerosol.Water
			pixRatios = waterRatios
		}

		baseRef := 0.08 + 0.02*rng.Float64()
		for ib := range bands {
			// Path reflectance grows roughly linearly with AOT at
			// these loadings; transmittance decays slowly.
			pathSlope := 0.05 + 0.01*float64(ib)
			bands[ib] = atmcor.BandCoefficients{
				TGO:             0.95,
				PathReflectance: [atmcor.NumCoef]float64{0.01, pathSlope, 0, 0},
				Transmittance:   [atmcor.NumCoef]float64{0.9, -0.05, 0, 0},
				SphericalAlbedo: [atmcor.NumCoef]float64{0.05, 0.01, 0, 0},
				NormExt:         1.0,
				MaxAOT:          5.0,
			}

			// Spectrally consistent land surfaces: active bands follow
			// the reference band through the ratio model, so the
			// residual minimum sits at the pixel's true loading.
			surfRef := baseRef
			if ib > 0 && pixRatios[ib] > 0 {
				surfRef = pixRatios[ib] * baseRef
			}
			if surface == aerosol.Water {
				surfRef = 0.002 * rng.Float64()
			}
			// Forward model matching the corrector's inversion.
			path := 0.01 + pathSlope*trueAOT
			trans := 0.9 - 0.05*trueAOT
			salb := 0.05 + 0.01*trueAOT
			coupled := surfRef / (1 - salb*surfRef)
			toa[ib] = 0.95 * (path + trans*coupled)
		}

		corrector, err := atmcor.NewPolyCorrector(bands, toa, eps)
		if err != nil {
			panic(err)
		}
		sc.Pixels[i] = scene.Pixel{
			Surface:   surface,
			Ratios:    pixRatios,
			Corrector: corrector,
		}
	}

	return sc
}
