package capture

import (
	"context"
	"sync"
	"time"

	"field-service/internal/geometry"
)

// Position is one location sample. Accuracy is the reported radius in meters,
// zero when the device did not report one.
type Position struct {
	Point    geometry.Point `json:"point"`
	Accuracy float64        `json:"accuracy,omitempty"`
	At       time.Time      `json:"timestamp"`
}

func (p *Position) accuracy() *float64 {
	if p == nil || p.Accuracy <= 0 {
		return nil
	}
	a := p.Accuracy
	return &a
}

// Geolocator streams positions until ctx is cancelled or the channel closes.
type Geolocator interface {
	Watch(ctx context.Context) (<-chan Position, error)
}

// WalkSession records every sample while the user walks the boundary.
type WalkSession struct {
	gate AccuracyGate

	mu       sync.Mutex
	points   geometry.Ring
	last     *Position
	tracking bool
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewWalkSession(gate AccuracyGate) *WalkSession {
	return &WalkSession{gate: gate}
}

// Start clears previous samples and begins consuming positions from loc.
func (w *WalkSession) Start(ctx context.Context, loc Geolocator) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tracking {
		return ErrAlreadyTracking
	}

	watchCtx, cancel := context.WithCancel(ctx)
	positions, err := loc.Watch(watchCtx)
	if err != nil {
		cancel()
		return err
	}

	w.points = nil
	w.last = nil
	w.tracking = true
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.consume(watchCtx, positions, w.done)
	return nil
}

func (w *WalkSession) consume(ctx context.Context, positions <-chan Position, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-positions:
			if !ok {
				w.mu.Lock()
				w.tracking = false
				w.mu.Unlock()
				return
			}
			w.mu.Lock()
			w.points = append(w.points, p.Point)
			w.last = &p
			w.mu.Unlock()
		}
	}
}

// Stop ends tracking and waits for the consumer to exit. Samples are kept.
func (w *WalkSession) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.tracking = false
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (w *WalkSession) Tracking() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tracking
}

func (w *WalkSession) Points() geometry.Ring {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(geometry.Ring, len(w.points))
	copy(out, w.points)
	return out
}

// Complete stops tracking and closes the walked trace into a boundary. The
// raw trace is returned alongside it.
func (w *WalkSession) Complete() (Result, error) {
	w.Stop()

	w.mu.Lock()
	trace := make(geometry.Ring, len(w.points))
	copy(trace, w.points)
	last := w.last
	w.mu.Unlock()

	if len(trace) < 3 {
		return Result{}, ErrTooFewPoints
	}
	if err := w.gate.Check(last.accuracy()); err != nil {
		return Result{}, err
	}

	res, err := newResult(MethodWalk, trace)
	if err != nil {
		return Result{}, err
	}
	res.GPSTrace = trace
	res.Accuracy = last.accuracy()
	return res, nil
}

// PushLocator is a Geolocator fed by explicit Push calls, used when samples
// arrive over the API instead of from a device.
type PushLocator struct {
	positions chan Position
	closed    chan struct{}
	once      sync.Once
}

func NewPushLocator() *PushLocator {
	return &PushLocator{
		positions: make(chan Position),
		closed:    make(chan struct{}),
	}
}

func (l *PushLocator) Watch(context.Context) (<-chan Position, error) {
	return l.positions, nil
}

// Push hands p to the watching session and blocks until it is taken.
func (l *PushLocator) Push(ctx context.Context, p Position) error {
	select {
	case <-l.closed:
		return ErrSessionClosed
	default:
	}
	select {
	case l.positions <- p:
		return nil
	case <-l.closed:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *PushLocator) Close() {
	l.once.Do(func() { close(l.closed) })
}
