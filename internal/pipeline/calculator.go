package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/weatherforhumans/thermal-etl/internal/domain"
	"github.com/weatherforhumans/thermal-etl/internal/observability"
)

// FieldFetcher loads one raw model field for a source snapshot over the
// configured region and forecast range.
type FieldFetcher interface {
	FetchField(ctx context.Context, source, field string) (*domain.ParamGrid, error)
}

// Formula is the pluggable numeric capability for one derived parameter.
// Inputs declares the raw model fields the formula needs; Compute derives
// the parameter for a single grid point and timestamp.
type Formula interface {
	Inputs() []string
	Compute(c domain.Coordinate, t time.Time, inputs map[string]float64) (float64, error)
}

// Calculator runs staged per-parameter computations. Each ComputeParameter
// call fetches only the raw fields its formula declares and releases them
// when it returns, so peak memory stays bounded by one parameter's inputs
// no matter how many parameters exist.
type Calculator struct {
	fields   FieldFetcher
	formulas map[string]Formula
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewCalculator creates a Calculator over the given formula set.
func NewCalculator(fields FieldFetcher, formulas map[string]Formula, logger *slog.Logger, metrics *observability.Metrics) *Calculator {
	return &Calculator{
		fields:   fields,
		formulas: formulas,
		logger:   logger,
		metrics:  metrics,
	}
}

// ComputeParameter derives one named parameter from the source snapshot.
// Calls for different parameters are independent: a failure here never
// affects a parameter already computed, and the call can simply be repeated.
func (c *Calculator) ComputeParameter(ctx context.Context, name, source string) (*domain.ParamGrid, error) {
	formula, ok := c.formulas[name]
	if !ok {
		return nil, fmt.Errorf("no formula registered for parameter %q", name)
	}

	start := time.Now()

	// Raw inputs live only inside this call.
	inputs := make(map[string]*domain.ParamGrid, len(formula.Inputs()))
	var shape *domain.ParamGrid
	for _, field := range formula.Inputs() {
		grid, err := c.fields.FetchField(ctx, source, field)
		if err != nil {
			return nil, fmt.Errorf("fetch field %s for %s: %w", field, name, err)
		}
		if shape == nil {
			shape = grid
		} else if err := sameShape(shape, grid); err != nil {
			return nil, fmt.Errorf("field %s for %s: %w", field, name, err)
		}
		inputs[field] = grid
	}
	if shape == nil {
		return nil, fmt.Errorf("formula for %s declares no inputs", name)
	}

	out := &domain.ParamGrid{
		Grid:   shape.Grid,
		Times:  shape.Times,
		Values: make([]float64, shape.Grid.NumPoints()*len(shape.Times)),
	}

	row := make(map[string]float64, len(inputs))
	for point := 0; point < shape.Grid.NumPoints(); point++ {
		coord := shape.Grid.Point(point)
		for h, t := range shape.Times {
			for field, grid := range inputs {
				row[field] = grid.Value(point, h)
			}
			v, err := formula.Compute(coord, t, row)
			if err != nil {
				return nil, fmt.Errorf("compute %s at %s %s: %w", name, coord.ID(), t.Format(time.RFC3339), err)
			}
			out.Values[point*len(shape.Times)+h] = v
		}
	}

	c.metrics.ParameterComputeDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	c.logger.Info("computed parameter",
		"parameter", name,
		"points", shape.Grid.NumPoints(),
		"hours", len(shape.Times),
	)
	return out, nil
}

func sameShape(a, b *domain.ParamGrid) error {
	if !a.Grid.Equal(b.Grid) {
		return fmt.Errorf("grid differs from previously fetched fields")
	}
	if len(a.Times) != len(b.Times) {
		return fmt.Errorf("time axis has %d hours, expected %d", len(b.Times), len(a.Times))
	}
	return nil
}
