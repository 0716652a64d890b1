// Package timer manages active countdown timers created by the timer intent.
// Timers outlive the conversation turn that created them; completion is
// announced by publishing a timer_fired event on the bus, which re-enters
// the pipeline as an activation-equivalent signal.
package timer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/clborne/parvis/internal/bus"
)

var (
	// ErrNotFound is returned when cancelling a timer that does not exist
	// or has already fired.
	ErrNotFound = errors.New("timer not found")

	// ErrBadDuration is returned for non-positive durations.
	ErrBadDuration = errors.New("timer duration must be positive")
)

// Timer is one active countdown. Expiry is always creation time plus the
// requested duration.
type Timer struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Duration  time.Duration `json:"duration"`
	ExpiresAt time.Time     `json:"expires_at"`

	cancelled bool
	handle    *time.Timer
}

// Registry owns all active timers. It is the one mutable shared structure
// in the process; create, cancel and expire are serialized behind a single
// mutex so a cancellation can never race a firing.
type Registry struct {
	mu     sync.Mutex
	timers map[string]*Timer
	events *bus.Bus
}

// NewRegistry creates an empty timer registry publishing to the given bus.
func NewRegistry(events *bus.Bus) *Registry {
	return &Registry{
		timers: make(map[string]*Timer),
		events: events,
	}
}

// Create registers a new timer and schedules its completion. The returned
// timer is a snapshot; the registry retains ownership.
func (r *Registry) Create(d time.Duration) (Timer, error) {
	if d <= 0 {
		return Timer{}, ErrBadDuration
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	t := &Timer{
		ID:        uuid.NewString(),
		CreatedAt: now,
		Duration:  d,
		ExpiresAt: now.Add(d),
	}
	t.handle = time.AfterFunc(d, func() { r.fire(t.ID) })
	r.timers[t.ID] = t

	log.Debug().Str("timer_id", t.ID).Dur("duration", d).Msg("timer created")
	r.events.Publish(bus.NewTimerEvent(bus.EventTimerCreated, t.ID, FormatDuration(d)))

	return *t, nil
}

// fire removes an expired timer and publishes the completion announcement.
// A timer cancelled between scheduling and firing is silently discarded.
func (r *Registry) fire(id string) {
	r.mu.Lock()
	t, ok := r.timers[id]
	if !ok || t.cancelled {
		r.mu.Unlock()
		return
	}
	delete(r.timers, id)
	r.mu.Unlock()

	announcement := fmt.Sprintf("Your %s timer is done!", FormatDuration(t.Duration))
	log.Info().Str("timer_id", id).Msg("timer fired")
	r.events.Publish(bus.NewTimerEvent(bus.EventTimerFired, id, announcement))
}

// Cancel stops a timer before it fires. A cancelled timer never publishes
// its completion event.
func (r *Registry) Cancel(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.timers[id]
	if !ok {
		return ErrNotFound
	}
	t.cancelled = true
	t.handle.Stop()
	delete(r.timers, id)

	log.Debug().Str("timer_id", id).Msg("timer cancelled")
	r.events.Publish(bus.NewTimerEvent(bus.EventTimerCancelled, id, ""))
	return nil
}

// Active returns snapshots of all pending timers, unordered.
func (r *Registry) Active() []Timer {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Timer, 0, len(r.timers))
	for _, t := range r.timers {
		out = append(out, *t)
	}
	return out
}

// Len returns the number of pending timers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// FormatDuration renders a duration the way it is spoken: "30 seconds",
// "5 minutes", "2 hours".
func FormatDuration(d time.Duration) string {
	seconds := int(d.Seconds())
	switch {
	case seconds < 60:
		return plural(seconds, "second")
	case seconds < 3600:
		return plural(seconds/60, "minute")
	default:
		return plural(seconds/3600, "hour")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
