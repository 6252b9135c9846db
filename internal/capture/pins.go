package capture

import "field-service/internal/geometry"

// PointSet collects tapped or drawn boundary points.
type PointSet struct {
	method Method
	points geometry.Ring
}

// NewPointSet accepts MethodPointPin or MethodDraw.
func NewPointSet(method Method, points ...geometry.Point) (*PointSet, error) {
	if method != MethodPointPin && method != MethodDraw {
		return nil, ErrUnsupportedInput
	}
	s := &PointSet{method: method}
	for _, p := range points {
		s.Add(p)
	}
	return s, nil
}

// Add appends a point and returns the new count.
func (s *PointSet) Add(p geometry.Point) int {
	s.points = append(s.points, p)
	return len(s.points)
}

// Undo drops the last point. It reports false when there was nothing to drop.
func (s *PointSet) Undo() bool {
	if len(s.points) == 0 {
		return false
	}
	s.points = s.points[:len(s.points)-1]
	return true
}

func (s *PointSet) Clear() {
	s.points = nil
}

func (s *PointSet) Points() geometry.Ring {
	out := make(geometry.Ring, len(s.points))
	copy(out, s.points)
	return out
}

func (s *PointSet) CanComplete() bool {
	return len(s.points) >= 3
}

// AreaHectares is the running area, zero until three points exist.
func (s *PointSet) AreaHectares() float64 {
	if !s.CanComplete() {
		return 0
	}
	ha, err := geometry.RingHectares(s.points)
	if err != nil {
		return 0
	}
	return ha
}

func (s *PointSet) Complete() (Result, error) {
	if !s.CanComplete() {
		return Result{}, ErrTooFewPoints
	}
	return newResult(s.method, s.points)
}
