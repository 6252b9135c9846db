// Package capture turns user input gathered in different ways (walking the
// boundary, pinning or drawing points, a center and radius, a single location
// fix or an uploaded file) into one boundary ring with its area.
package capture

import (
	"github.com/rotisserie/eris"

	"field-service/internal/geometry"
	"field-service/internal/model"
)

type Method string

const (
	MethodWalk         Method = "walk"
	MethodPointPin     Method = "point-pin"
	MethodDraw         Method = "draw"
	MethodImport       Method = "import"
	MethodAutoLocation Method = "auto-location"
	MethodCenterRadius Method = "center-radius"
)

func (m Method) Valid() bool {
	switch m {
	case MethodWalk, MethodPointPin, MethodDraw, MethodImport, MethodAutoLocation, MethodCenterRadius:
		return true
	}
	return false
}

var (
	ErrTooFewPoints     = eris.New("capture: at least 3 boundary points are required")
	ErrPoorAccuracy     = eris.New("capture: GPS accuracy too low, move to an open area")
	ErrNoLocation       = eris.New("capture: no location fix yet")
	ErrInvalidRadius    = eris.New("capture: radius must be between 10 and 500 meters")
	ErrInvalidPlotSize  = eris.New("capture: plot size must be greater than zero")
	ErrUnsupportedInput = eris.New("capture: unsupported capture method")
	ErrSessionNotFound  = eris.New("capture: walk session not found")
	ErrSessionClosed    = eris.New("capture: walk session is closed")
	ErrAlreadyTracking  = eris.New("capture: walk session is already tracking")
	ErrTooManySessions  = eris.New("capture: too many walk sessions are open, try again later")
)

// Result is what every strategy hands to registration. Coordinates are a
// closed ring in [lat, lng] order.
type Result struct {
	Method          Method        `json:"method"`
	Coordinates     geometry.Ring `json:"coordinates"`
	AreaHectares    float64       `json:"areaHectares"`
	PreviewHectares *float64      `json:"previewHectares,omitempty"`
	GPSTrace        geometry.Ring `json:"gpsTrace,omitempty"`
	Accuracy        *float64      `json:"accuracy,omitempty"`
}

type Strategy interface {
	Complete() (Result, error)
}

func newResult(method Method, ring geometry.Ring) (Result, error) {
	if ring.Vertices() < 3 {
		return Result{}, ErrTooFewPoints
	}
	ha, err := geometry.RingHectares(ring)
	if err != nil {
		return Result{}, eris.Wrap(err, "capture: compute area")
	}
	return Result{
		Method:       method,
		Coordinates:  ring.Closed(),
		AreaHectares: ha,
	}, nil
}

// AccuracyGate blocks completion of location based strategies while the
// reported fix is poor, unless the user explicitly accepts it.
type AccuracyGate struct {
	AcceptPoorAccuracy bool `json:"acceptPoorAccuracy"`
}

// Check passes when accuracy is unknown.
func (g AccuracyGate) Check(accuracy *float64) error {
	if accuracy == nil || g.AcceptPoorAccuracy {
		return nil
	}
	if model.ClassifyAccuracy(*accuracy) == model.AccuracyPoor {
		return ErrPoorAccuracy
	}
	return nil
}
