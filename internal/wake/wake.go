// Package wake produces activation signals and enforces the single-turn
// discipline: while one conversation turn is in flight, further
// activations are dropped rather than queued.
package wake

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/clborne/parvis/internal/bus"
)

// Source delivers activation signals until the context is cancelled.
type Source interface {
	// Start blocks, calling fire for every activation. It returns when
	// the context is cancelled or the source fails.
	Start(ctx context.Context, fire func()) error

	// Name returns the source identifier.
	Name() string
}

// Gate serializes turns. Fire either admits an activation or drops it;
// the turn runner releases the gate when the turn finishes.
type Gate struct {
	events   *bus.Bus
	inflight atomic.Bool
	dropped  atomic.Uint64
	admit    func()
}

// NewGate creates a gate publishing activation events to the bus.
func NewGate(events *bus.Bus) *Gate {
	return &Gate{events: events}
}

// Bind installs the callback invoked for admitted activations. Must be
// called before any source starts firing.
func (g *Gate) Bind(admit func()) {
	g.admit = admit
}

// TryAcquire claims the gate for one turn. A refused acquisition counts
// and publishes the drop.
func (g *Gate) TryAcquire() bool {
	if !g.inflight.CompareAndSwap(false, true) {
		g.dropped.Add(1)
		log.Debug().Msg("activation dropped, turn in flight")
		g.events.Publish(bus.NewEvent(bus.EventActivationDropped))
		return false
	}
	g.events.Publish(bus.NewEvent(bus.EventActivation))
	return true
}

// Fire admits the activation if no turn is in flight, otherwise drops
// it. The admitted callback runs on the caller's goroutine; the caller
// owns the gate until Release.
func (g *Gate) Fire() {
	if !g.TryAcquire() {
		return
	}
	if g.admit != nil {
		g.admit()
	} else {
		g.Release()
	}
}

// Release re-arms the gate after a turn finishes.
func (g *Gate) Release() {
	g.inflight.Store(false)
}

// InFlight reports whether a turn currently holds the gate.
func (g *Gate) InFlight() bool {
	return g.inflight.Load()
}

// Dropped returns how many activations were discarded mid-turn.
func (g *Gate) Dropped() uint64 {
	return g.dropped.Load()
}
