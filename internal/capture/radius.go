package capture

import (
	"math"

	"github.com/rotisserie/eris"

	"field-service/internal/geometry"
)

const (
	MinRadius = 10.0
	MaxRadius = 500.0
)

// CenterRadius approximates a field by a circle around a marked center.
type CenterRadius struct {
	Center   *geometry.Point
	Radius   float64
	Accuracy *float64
	Gate     AccuracyGate
}

// PreviewHectares is the flat π·r² estimate shown while the radius is adjusted.
func (c CenterRadius) PreviewHectares() float64 {
	return geometry.Hectares(math.Pi * c.Radius * c.Radius)
}

// Complete returns the 64-step geodesic circle. AreaHectares is measured on
// the ring; the flat estimate is kept as PreviewHectares.
func (c CenterRadius) Complete() (Result, error) {
	if c.Center == nil {
		return Result{}, ErrNoLocation
	}
	if c.Radius < MinRadius || c.Radius > MaxRadius {
		return Result{}, ErrInvalidRadius
	}
	if err := c.Gate.Check(c.Accuracy); err != nil {
		return Result{}, err
	}

	ring, err := geometry.Circle(*c.Center, c.Radius, geometry.CircleSteps)
	if err != nil {
		return Result{}, eris.Wrap(err, "capture: build circle")
	}

	res, err := newResult(MethodCenterRadius, ring)
	if err != nil {
		return Result{}, err
	}
	preview := c.PreviewHectares()
	res.PreviewHectares = &preview
	res.Accuracy = c.Accuracy
	return res, nil
}
