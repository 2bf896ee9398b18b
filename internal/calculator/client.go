package calculator

import (
	"context"

	"github.com/oriys/asynccalc/internal/async"
	"github.com/oriys/asynccalc/internal/domain"
	"github.com/oriys/asynccalc/internal/event"
	"github.com/oriys/asynccalc/internal/logging"
	"github.com/oriys/asynccalc/internal/metrics"
	"github.com/oriys/asynccalc/internal/notify"
)

// AddCompletedEvent is fired by Client.AddAsync once the call completes.
type AddCompletedEvent struct {
	ID     string
	X, Y   int32
	Result int32
	Err    error
	State  any
}

// Client is the asynchronous proxy for a Calculator service. It offers two
// equivalent completion styles: BeginAdd with an explicit continuation, and
// AddAsync with completion delivered through the AddCompleted event.
type Client struct {
	remote  Adder
	invoker *async.Invoker

	// AddCompleted fires once per AddAsync call, on the completing goroutine,
	// to every handler subscribed at that moment.
	AddCompleted event.Event[AddCompletedEvent]
}

// NewClient creates a proxy over remote.
func NewClient(remote Adder, opts ...async.Option) *Client {
	return &Client{
		remote:  remote,
		invoker: async.NewInvoker(domain.OperationAdd, remote.Add, opts...),
	}
}

// Add calls the service synchronously.
func (c *Client) Add(ctx context.Context, x, y int32) (int32, error) {
	return c.remote.Add(ctx, x, y)
}

// BeginAdd starts an add call and returns its handle immediately. cb runs
// once on completion with the handle; state is returned by its State method.
func (c *Client) BeginAdd(ctx context.Context, x, y int32, cb async.Continuation, state any) *async.Result {
	return c.invoker.Begin(ctx, x, y, cb, state)
}

// EndAdd waits for a call started by BeginAdd and returns its outcome.
func (c *Client) EndAdd(ctx context.Context, r *async.Result) (int32, error) {
	return c.invoker.End(ctx, r)
}

// AddAsync starts an add call whose completion is reported via AddCompleted.
func (c *Client) AddAsync(ctx context.Context, x, y int32, state any) *async.Result {
	return c.invoker.Begin(ctx, x, y, c.onAddCompleted, state)
}

func (c *Client) onAddCompleted(r *async.Result) {
	v, err := r.Value()
	x, y := r.Operands()
	if n := c.AddCompleted.Fire(AddCompletedEvent{
		ID:     r.ID(),
		X:      x,
		Y:      y,
		Result: v,
		Err:    err,
		State:  r.State(),
	}); n > 0 {
		metrics.Global().RecordNotification()
		metrics.RecordNotification("AddCompleted")
	}
}

// Completed exposes the completion event of every call made through this
// client, whichever style started it.
func (c *Client) Completed() *event.Event[*async.Result] {
	return c.invoker.Completed()
}

// Pending returns the number of calls in flight.
func (c *Client) Pending() int64 {
	return c.invoker.Pending()
}

// PublishTo relays every completion of this client to n on topic. Publish
// failures are logged and do not affect the completed call.
func (c *Client) PublishTo(n notify.Notifier, topic notify.Topic) {
	c.invoker.Completed().Subscribe(func(r *async.Result) {
		if err := n.Publish(context.Background(), topic, r.Notification()); err != nil {
			logging.Op().Warn("publish completion failed", "id", r.ID(), "topic", topic, "error", err)
		}
	})
}
