package capture

import (
	"math"

	"github.com/rotisserie/eris"

	"field-service/internal/geometry"
)

// AutoSquare lays a square of the requested size around one location fix.
type AutoSquare struct {
	Fix          *Position
	PlotHectares float64
	Gate         AccuracyGate
}

// Preview returns the square's corners in NE, SE, SW, NW order.
func (a AutoSquare) Preview() (geometry.Ring, error) {
	if a.Fix == nil {
		return nil, ErrNoLocation
	}
	if a.PlotHectares <= 0 || math.IsNaN(a.PlotHectares) || math.IsInf(a.PlotHectares, 0) {
		return nil, ErrInvalidPlotSize
	}
	side := math.Sqrt(geometry.SquareMeters(a.PlotHectares))
	ring, err := geometry.Square(a.Fix.Point, side)
	if err != nil {
		return nil, eris.Wrap(err, "capture: build square")
	}
	return ring, nil
}

func (a AutoSquare) Complete() (Result, error) {
	ring, err := a.Preview()
	if err != nil {
		return Result{}, err
	}
	if err := a.Gate.Check(a.Fix.accuracy()); err != nil {
		return Result{}, err
	}

	res, err := newResult(MethodAutoLocation, ring)
	if err != nil {
		return Result{}, err
	}
	requested := a.PlotHectares
	res.PreviewHectares = &requested
	res.Accuracy = a.Fix.accuracy()
	return res, nil
}
