// Package calculator exposes the remote add operation through asynchronous
// proxies: Client mirrors a generated service proxy with Begin/End and
// event-based calls, and Calculator is a helper that turns completions into
// an Added event.
package calculator

import (
	"context"

	"github.com/oriys/asynccalc/internal/async"
	"github.com/oriys/asynccalc/internal/event"
	"github.com/oriys/asynccalc/internal/metrics"
)

// MathOperationEvent carries the outcome of a Calculator operation.
type MathOperationEvent struct {
	X, Y   int32
	Result int32
	Err    error
}

// Calculator starts add calls and announces their results on Added.
type Calculator struct {
	client *Client

	// Added fires once per Add call with its outcome. With no handlers the
	// outcome is discarded.
	Added event.Event[MathOperationEvent]
}

// New creates a Calculator issuing calls through client.
func New(client *Client) *Calculator {
	return &Calculator{client: client}
}

// Add starts x + y and returns without waiting. The proxy travels as the
// invocation's correlation state and is recovered on completion to finish
// the call.
func (c *Calculator) Add(ctx context.Context, x, y int32) {
	c.client.BeginAdd(ctx, x, y, c.onAdded, c.client)
}

func (c *Calculator) onAdded(r *async.Result) {
	proxy, ok := r.State().(*Client)
	if !ok {
		return
	}
	v, err := proxy.EndAdd(context.Background(), r)
	x, y := r.Operands()
	if n := c.Added.Fire(MathOperationEvent{X: x, Y: y, Result: v, Err: err}); n > 0 {
		metrics.Global().RecordNotification()
		metrics.RecordNotification("Added")
	}
}
