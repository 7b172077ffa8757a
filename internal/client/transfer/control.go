package transfer

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/drivekeeper/internal/common"
)

// gate carries the pause/resume/stop state of one transfer. Pausing swaps in
// a fresh resume channel; resuming closes it, waking every chunk task
// blocked in Wait. Stop closes the stopped channel once and wins over
// everything else.
type gate struct {
	mu      sync.Mutex
	paused  bool
	resume  chan struct{}
	stopped chan struct{}
}

// Controller tracks the control gates of in-flight transfers, addressable by
// the item UUID.
type Controller struct {
	mu    sync.Mutex
	gates map[string]*gate
}

func NewController() *Controller {
	return &Controller{gates: make(map[string]*gate)}
}

// Register creates the gate for a starting transfer. Registering an already
// registered UUID returns the existing gate's handle.
func (c *Controller) Register(uuid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.gates[uuid]; !ok {
		c.gates[uuid] = &gate{stopped: make(chan struct{})}
	}
}

// Unregister drops the gate once the transfer finished.
func (c *Controller) Unregister(uuid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.gates, uuid)
}

// Pause suspends chunk dispatch for the transfer. No-op for unknown UUIDs.
func (c *Controller) Pause(uuid string) {
	g := c.gate(uuid)
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		g.paused = true
		g.resume = make(chan struct{})
	}
}

// Resume releases all chunk tasks waiting on a paused transfer.
func (c *Controller) Resume(uuid string) {
	g := c.gate(uuid)
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		g.paused = false
		close(g.resume)
	}
}

// Stop aborts the transfer. Every pending and future Wait returns
// common.ErrStopped.
func (c *Controller) Stop(uuid string) {
	g := c.gate(uuid)
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.stopped:
		// already stopped
	default:
		close(g.stopped)
	}
}

// Paused reports whether the transfer is currently paused.
func (c *Controller) Paused(uuid string) bool {
	g := c.gate(uuid)
	if g == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Wait blocks while the transfer is paused and returns common.ErrStopped
// once the transfer was stopped, or the context error on cancellation.
// Chunk tasks call it before every suspension point.
func (c *Controller) Wait(ctx context.Context, uuid string) error {
	g := c.gate(uuid)
	if g == nil {
		return nil
	}
	for {
		g.mu.Lock()
		stopped := g.stopped
		paused := g.paused
		resume := g.resume
		g.mu.Unlock()

		select {
		case <-stopped:
			return common.ErrStopped
		default:
		}

		if !paused {
			return nil
		}

		select {
		case <-resume:
			// re-check: a second pause may have followed
		case <-stopped:
			return common.ErrStopped
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stopped exposes the stop signal for select loops. Returns nil for unknown
// UUIDs.
func (c *Controller) Stopped(uuid string) <-chan struct{} {
	g := c.gate(uuid)
	if g == nil {
		return nil
	}
	return g.stopped
}

func (c *Controller) gate(uuid string) *gate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gates[uuid]
}
