package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"field-service/internal/capture"
	"field-service/internal/geometry"
	"field-service/internal/model"
)

// CaptureService runs the boundary capture strategies for API clients.
type CaptureService struct {
	walks *capture.Registry
	log   zerolog.Logger
	now   func() time.Time
}

func NewCaptureService(walks *capture.Registry, log zerolog.Logger) *CaptureService {
	return &CaptureService{
		walks: walks,
		log:   log.With().Str("component", "capture_service").Logger(),
		now:   time.Now,
	}
}

type PointsInput struct {
	Method capture.Method   `json:"method"`
	Points []geometry.Point `json:"points"`
}

// Points completes a pinned or drawn boundary. An empty method means pins.
func (s *CaptureService) Points(in PointsInput) (*capture.Result, error) {
	method := in.Method
	if method == "" {
		method = capture.MethodPointPin
	}
	set, err := capture.NewPointSet(method, in.Points...)
	if err != nil {
		return nil, captureError(err)
	}
	return complete(set)
}

type CenterRadiusInput struct {
	Center             *geometry.Point `json:"center"`
	Radius             float64         `json:"radius"`
	Accuracy           *float64        `json:"accuracy"`
	AcceptPoorAccuracy bool            `json:"acceptPoorAccuracy"`
}

func (s *CaptureService) CenterRadius(in CenterRadiusInput) (*capture.Result, error) {
	return complete(capture.CenterRadius{
		Center:   in.Center,
		Radius:   in.Radius,
		Accuracy: in.Accuracy,
		Gate:     capture.AccuracyGate{AcceptPoorAccuracy: in.AcceptPoorAccuracy},
	})
}

type SquareInput struct {
	Fix                *capture.Position `json:"fix"`
	PlotHectares       float64           `json:"plotHectares"`
	AcceptPoorAccuracy bool              `json:"acceptPoorAccuracy"`
}

func (s *CaptureService) Square(in SquareInput) (*capture.Result, error) {
	return complete(capture.AutoSquare{
		Fix:          in.Fix,
		PlotHectares: in.PlotHectares,
		Gate:         capture.AccuracyGate{AcceptPoorAccuracy: in.AcceptPoorAccuracy},
	})
}

// ImportOutcome carries the parsed file both as a preview and as a boundary
// ready for registration.
type ImportOutcome struct {
	Preview capture.ImportPreview `json:"preview"`
	Result  capture.Result        `json:"result"`
}

func (s *CaptureService) Import(name string, content []byte) (*ImportOutcome, error) {
	preview, err := capture.ParseBoundaryFile(name, content)
	if err != nil {
		s.log.Debug().Err(err).Str("file", name).Msg("boundary import rejected")
		return nil, captureError(err)
	}
	res, err := preview.Complete()
	if err != nil {
		return nil, captureError(err)
	}
	return &ImportOutcome{Preview: preview, Result: res}, nil
}

type WalkSession struct {
	ID      string `json:"id"`
	Samples int    `json:"samples"`
}

func (s *CaptureService) StartWalk(gate capture.AccuracyGate) (*WalkSession, error) {
	id, err := s.walks.StartPush(gate)
	if err != nil {
		return nil, captureError(err)
	}
	s.log.Debug().Str("session_id", id).Msg("walk session started")
	return &WalkSession{ID: id}, nil
}

// PushSamples feeds positions to a walk session. Samples without a timestamp
// are stamped with the time they arrived.
func (s *CaptureService) PushSamples(ctx context.Context, id string, samples []capture.Position) (*WalkSession, error) {
	now := s.now().UTC()
	for i := range samples {
		if samples[i].At.IsZero() {
			samples[i].At = now
		}
	}
	if _, err := s.walks.Push(ctx, id, samples); err != nil {
		return nil, captureError(err)
	}
	count, err := s.walks.Count(id)
	if err != nil {
		return nil, captureError(err)
	}
	return &WalkSession{ID: id, Samples: count}, nil
}

func (s *CaptureService) FinishWalk(id string) (*capture.Result, error) {
	res, err := s.walks.Finish(id)
	if err != nil {
		return nil, captureError(err)
	}
	return &res, nil
}

func (s *CaptureService) DiscardWalk(id string) error {
	return captureError(s.walks.Discard(id))
}

// Accuracy classifies a reported GPS accuracy in meters.
func (s *CaptureService) Accuracy(meters float64) (model.GPSAccuracy, error) {
	if meters < 0 {
		return model.GPSAccuracy{}, &ValidationError{Reasons: []string{"accuracy cannot be negative"}}
	}
	return model.NewGPSAccuracy(meters, s.now().UTC()), nil
}

func complete(strategy capture.Strategy) (*capture.Result, error) {
	res, err := strategy.Complete()
	if err != nil {
		return nil, captureError(err)
	}
	return &res, nil
}

// captureError maps capture failures onto service errors. Import errors are
// passed through so their kind reaches the client.
func captureError(err error) error {
	if err == nil {
		return nil
	}
	var importErr *capture.ImportError
	if errors.As(err, &importErr) {
		return importErr
	}
	switch {
	case eris.Is(err, capture.ErrSessionNotFound):
		return fmt.Errorf("%w: walk session", ErrNotFound)
	case eris.Is(err, capture.ErrSessionClosed),
		eris.Is(err, capture.ErrAlreadyTracking),
		eris.Is(err, capture.ErrTooManySessions):
		return fmt.Errorf("%w: %s", ErrConflict, userMessage(err))
	case eris.Is(err, capture.ErrTooFewPoints),
		eris.Is(err, capture.ErrPoorAccuracy),
		eris.Is(err, capture.ErrNoLocation),
		eris.Is(err, capture.ErrInvalidRadius),
		eris.Is(err, capture.ErrInvalidPlotSize),
		eris.Is(err, capture.ErrUnsupportedInput):
		return &ValidationError{Reasons: []string{userMessage(err)}}
	}
	return err
}

func userMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, "capture: "); i >= 0 {
		msg = msg[i+len("capture: "):]
	}
	return msg
}
