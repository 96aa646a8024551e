package dynamic

import (
	"sync"
	"sync/atomic"

	"github.com/A-Cloud-Ninja/ironbar/pkg/telemetry"
)

// RenderFunc receives each render on the MainLoop. Returning false detaches
// the callback and tears the subscription down.
type RenderFunc func(render string) bool

// renderChannel is an unbounded multi-producer channel whose values are
// delivered to a single RenderFunc on a MainLoop. Send never blocks, and no
// render is dropped while the channel is open.
type renderChannel struct {
	loop     *MainLoop
	fn       RenderFunc
	onDetach func()
	metrics  *telemetry.Metrics

	mu      sync.Mutex
	closed  bool
	pending int

	delivered atomic.Int64
}

func newRenderChannel(loop *MainLoop, fn RenderFunc, onDetach func(), metrics *telemetry.Metrics) *renderChannel {
	return &renderChannel{
		loop:     loop,
		fn:       fn,
		onDetach: onDetach,
		metrics:  metrics,
	}
}

// Send queues render for delivery. It returns ErrChannelClosed once the
// consumer has detached or the channel was closed.
func (c *renderChannel) Send(render string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrChannelClosed
	}
	if !c.loop.Post(func() { c.deliver(render) }) {
		c.closed = true
		return ErrChannelClosed
	}
	c.pending++
	return nil
}

// deliver runs on the loop.
func (c *renderChannel) deliver(render string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.pending--
	c.mu.Unlock()

	timer := telemetry.NewTimer()
	keep := c.fn(render)
	c.metrics.RecordRender(timer.Duration())
	c.delivered.Add(1)

	if !keep {
		c.detach()
	}
}

func (c *renderChannel) detach() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	if c.onDetach != nil {
		c.onDetach()
	}
}

// close stops delivery. Renders still queued on the loop are discarded.
func (c *renderChannel) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Pending returns the number of renders queued but not yet delivered.
func (c *renderChannel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Delivered returns the number of renders passed to the callback.
func (c *renderChannel) Delivered() int64 {
	return c.delivered.Load()
}
