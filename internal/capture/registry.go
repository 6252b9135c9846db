package capture

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type walkEntry struct {
	session    *WalkSession
	locator    *PushLocator
	lastActive time.Time
}

// Registry holds walk sessions fed over the API, keyed by session id.
// Sessions idle for longer than the TTL are discarded in the background.
type Registry struct {
	ctx    context.Context
	cancel context.CancelFunc
	reaped chan struct{}

	ttl         time.Duration
	maxSessions int
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*walkEntry
}

// NewRegistry starts the idle reaper when ttl is positive. maxSessions of
// zero leaves the number of open sessions unbounded.
func NewRegistry(ttl time.Duration, maxSessions int) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		ctx:         ctx,
		cancel:      cancel,
		reaped:      make(chan struct{}),
		ttl:         ttl,
		maxSessions: maxSessions,
		now:         time.Now,
		sessions:    make(map[string]*walkEntry),
	}
	if ttl > 0 {
		go r.reapLoop(reapInterval(ttl))
	} else {
		close(r.reaped)
	}
	return r
}

func reapInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	if interval > time.Minute {
		interval = time.Minute
	}
	return interval
}

func (r *Registry) reapLoop(interval time.Duration) {
	defer close(r.reaped)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.reapIdle()
		}
	}
}

// reapIdle discards every session without activity within the TTL and
// returns how many were dropped.
func (r *Registry) reapIdle() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var idle []*walkEntry
	for id, entry := range r.sessions {
		if entry.lastActive.Before(cutoff) {
			idle = append(idle, entry)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, entry := range idle {
		entry.locator.Close()
		entry.session.Stop()
	}
	return len(idle)
}

// StartPush opens a tracking session and returns its id. The session outlives
// the request that created it.
func (r *Registry) StartPush(gate AccuracyGate) (string, error) {
	r.mu.Lock()
	full := r.maxSessions > 0 && len(r.sessions) >= r.maxSessions
	r.mu.Unlock()
	if full {
		return "", ErrTooManySessions
	}

	entry := &walkEntry{
		session:    NewWalkSession(gate),
		locator:    NewPushLocator(),
		lastActive: r.now(),
	}
	if err := entry.session.Start(r.ctx, entry.locator); err != nil {
		return "", err
	}

	id := uuid.NewString()
	r.mu.Lock()
	if r.maxSessions > 0 && len(r.sessions) >= r.maxSessions {
		r.mu.Unlock()
		entry.locator.Close()
		entry.session.Stop()
		return "", ErrTooManySessions
	}
	r.sessions[id] = entry
	r.mu.Unlock()
	return id, nil
}

// lookup finds a session and marks it active.
func (r *Registry) lookup(id string) (*walkEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	entry.lastActive = r.now()
	return entry, nil
}

func (r *Registry) take(id string) (*walkEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	delete(r.sessions, id)
	return entry, nil
}

// Push feeds samples to a session and returns how many were accepted.
func (r *Registry) Push(ctx context.Context, id string, positions []Position) (int, error) {
	entry, err := r.lookup(id)
	if err != nil {
		return 0, err
	}
	if !entry.session.Tracking() {
		return 0, ErrSessionClosed
	}
	for i, p := range positions {
		if err := entry.locator.Push(ctx, p); err != nil {
			return i, err
		}
	}
	return len(positions), nil
}

// Count returns how many samples a session has recorded so far.
func (r *Registry) Count(id string) (int, error) {
	entry, err := r.lookup(id)
	if err != nil {
		return 0, err
	}
	return len(entry.session.Points()), nil
}

// Finish stops the session, removes it and completes the boundary.
func (r *Registry) Finish(id string) (Result, error) {
	entry, err := r.take(id)
	if err != nil {
		return Result{}, err
	}
	entry.locator.Close()
	return entry.session.Complete()
}

// Discard stops and forgets a session without producing a boundary.
func (r *Registry) Discard(id string) error {
	entry, err := r.take(id)
	if err != nil {
		return err
	}
	entry.locator.Close()
	entry.session.Stop()
	return nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close stops every open session.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.sessions
	r.sessions = make(map[string]*walkEntry)
	r.mu.Unlock()

	for _, entry := range entries {
		entry.locator.Close()
		entry.session.Stop()
	}
	r.cancel()
	<-r.reaped
}
