// Package scene runs the per-pixel aerosol retrieval over whole scenes,
// threading the warm-start index between successive pixels the way the
// scan-order reference processing does, with an optional tiled mode that
// trades bit-identical warm-start trajectories for row-chunk parallelism.
package scene

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/signalsfoundry/surface-reflectance/aerosol"
	"github.com/signalsfoundry/surface-reflectance/internal/logging"
	"github.com/signalsfoundry/surface-reflectance/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Pixel carries the per-pixel retrieval inputs: the surface flag, the
// reference-band ratio coefficients, and a correction backend bound to
// the pixel's measured reflectances.
type Pixel struct {
	Surface   aerosol.Surface
	Ratios    []float64
	Corrector aerosol.Corrector
}

// Scene is a Width x Height raster of retrievable pixels in row-major
// scan order.
type Scene struct {
	ID     string
	Width  int
	Height int
	Pixels []Pixel
}

// Config controls a Processor.
type Config struct {
	Sensor  aerosol.Sensor
	Policy  aerosol.BandPolicy
	RefBand int

	// TileRows > 0 splits the scene into chunks of that many rows and
	// processes them in parallel. Each chunk seeds its warm start from
	// the bottom of the AOT grid, so results near search boundaries can
	// differ from a sequential run; every pixel still converges to a
	// local residual minimum.
	TileRows int
	// Workers bounds chunk parallelism in tiled mode. Defaults to
	// runtime.NumCPU().
	Workers int

	Logger    logging.Logger
	Collector *observability.RetrievalCollector
}

// ApplyDefaults fills zero-valued config fields.
func (c Config) ApplyDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Logger == nil {
		c.Logger = logging.Noop()
	}
	return c
}

// Result holds the per-pixel retrieval outputs in scene scan order.
// Unretrievable pixels carry NaN and a false Retrieved flag.
type Result struct {
	AOT       []float64
	Residual  []float64
	Retrieved []bool
}

// Processor runs retrievals over scenes.
type Processor struct {
	cfg Config
}

// NewProcessor constructs a Processor from the config, applying defaults.
func NewProcessor(cfg Config) *Processor {
	return &Processor{cfg: cfg.ApplyDefaults()}
}

// Run retrieves the AOT for every pixel of the scene. Pixels whose
// retrieval fails (evaluator error or no active bands) are marked
// unretrievable; they never abort the scene.
func (p *Processor) Run(ctx context.Context, sc *Scene) (*Result, error) {
	if sc == nil {
		return nil, fmt.Errorf("nil scene")
	}
	if len(sc.Pixels) != sc.Width*sc.Height {
		return nil, fmt.Errorf("scene %q has %d pixels for %dx%d raster",
			sc.ID, len(sc.Pixels), sc.Width, sc.Height)
	}

	ctx, log := logging.WithSceneLogger(ctx, p.cfg.Logger, sc.ID)

	tracer := otel.Tracer("surface-reflectance/scene")
	ctx, span := tracer.Start(ctx, "scene.process", trace.WithAttributes(
		attribute.String("scene.id", sc.ID),
		attribute.String("sensor", p.cfg.Sensor.String()),
		attribute.Int("scene.width", sc.Width),
		attribute.Int("scene.height", sc.Height),
		attribute.Bool("tiled", p.cfg.TileRows > 0),
	))
	defer span.End()

	out := &Result{
		AOT:       make([]float64, len(sc.Pixels)),
		Residual:  make([]float64, len(sc.Pixels)),
		Retrieved: make([]bool, len(sc.Pixels)),
	}

	if p.cfg.TileRows > 0 {
		p.runTiled(ctx, sc, out)
	} else {
		p.runRows(ctx, sc, out, 0, sc.Height)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	retrieved := 0
	for _, ok := range out.Retrieved {
		if ok {
			retrieved++
		}
	}
	if p.cfg.Collector != nil && p.cfg.Collector.ScenesProcessed != nil {
		p.cfg.Collector.ScenesProcessed.Inc()
	}
	log.Info(ctx, "scene processed",
		logging.String("sensor", p.cfg.Sensor.String()),
		logging.Int("pixels", len(sc.Pixels)),
		logging.Int("retrieved", retrieved),
		logging.Int("failed", len(sc.Pixels)-retrieved),
	)

	return out, nil
}

// runRows processes rows [startRow, endRow) in scan order, carrying the
// warm-start index from each retrieval into the next. A failed pixel
// leaves the warm start untouched.
func (p *Processor) runRows(ctx context.Context, sc *Scene, out *Result, startRow, endRow int) {
	log := p.cfg.Logger
	warmStart := 0
	for row := startRow; row < endRow; row++ {
		if ctx.Err() != nil {
			return
		}
		for col := 0; col < sc.Width; col++ {
			i := row*sc.Width + col
			px := &sc.Pixels[i]

			res, err := aerosol.Retrieve(aerosol.Request{
				Sensor:     p.cfg.Sensor,
				Policy:     p.cfg.Policy,
				Surface:    px.Surface,
				RefBand:    p.cfg.RefBand,
				Ratios:     px.Ratios,
				Corrector:  px.Corrector,
				StartIndex: warmStart,
			})
			if err != nil {
				out.AOT[i] = math.NaN()
				out.Residual[i] = math.NaN()
				p.cfg.Collector.ObserveFailure(p.cfg.Sensor.String(), px.Surface.String())
				log.Debug(ctx, "pixel unretrievable",
					logging.Int("row", row),
					logging.Int("col", col),
					logging.String("error", err.Error()),
				)
				continue
			}

			out.AOT[i] = res.AOT
			out.Residual[i] = res.Residual
			out.Retrieved[i] = true
			warmStart = res.NextStart
			p.cfg.Collector.ObserveRetrieval(p.cfg.Sensor.String(), px.Surface.String(), res.Residual, res.Samples)
		}
	}
}

// runTiled fans row chunks out over a bounded worker pool. Chunks share
// nothing: each owns a disjoint slice range of the output and its own
// warm-start trajectory.
func (p *Processor) runTiled(ctx context.Context, sc *Scene, out *Result) {
	type chunk struct{ start, end int }

	chunks := make(chan chunk)
	var wg sync.WaitGroup
	for w := 0; w < p.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range chunks {
				p.runRows(ctx, sc, out, c.start, c.end)
			}
		}()
	}

	for start := 0; start < sc.Height; start += p.cfg.TileRows {
		end := start + p.cfg.TileRows
		if end > sc.Height {
			end = sc.Height
		}
		chunks <- chunk{start: start, end: end}
	}
	close(chunks)
	wg.Wait()
}
