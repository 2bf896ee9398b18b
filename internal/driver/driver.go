// Package driver runs the client-side demonstrations: it starts calls,
// registers handlers that print their results, and keeps "doing some stuff"
// until a handler reports completion.
package driver

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oriys/asynccalc/internal/async"
	"github.com/oriys/asynccalc/internal/calculator"
	"github.com/oriys/asynccalc/internal/domain"
	"github.com/oriys/asynccalc/internal/logging"
	"golang.org/x/sync/errgroup"
)

// DefaultPollInterval is the pause between completion checks.
const DefaultPollInterval = 250 * time.Millisecond

const busyLine = "The client is doing some stuff..."

// Outcome is one completed call as seen by a completion handler.
type Outcome struct {
	X, Y   int32
	Result int32
	Err    error
	State  any
}

func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%d + %d failed: %v", o.X, o.Y, o.Err)
	}
	return fmt.Sprintf("%d + %d = %d", o.X, o.Y, o.Result)
}

// Driver prints progress and results to Out.
type Driver struct {
	Out          io.Writer
	PollInterval time.Duration

	mu sync.Mutex
}

// New creates a driver writing to out.
func New(out io.Writer, pollInterval time.Duration) *Driver {
	return &Driver{Out: out, PollInterval: pollInterval}
}

func (d *Driver) printf(format string, args ...any) {
	if d.Out == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.Out, format+"\n", args...)
}

func (d *Driver) wait(ctx context.Context, done *Flag) error {
	return done.Poll(ctx, d.PollInterval, func() { d.printf(busyLine) })
}

// RunHelper adds x and y through a Calculator helper and waits for its Added
// event.
func (d *Driver) RunHelper(ctx context.Context, client *calculator.Client, x, y int32) (Outcome, error) {
	var (
		done Flag
		out  Outcome
	)
	calc := calculator.New(client)
	calc.Added.Subscribe(func(e calculator.MathOperationEvent) {
		out = Outcome{X: e.X, Y: e.Y, Result: e.Result, Err: e.Err}
		d.printf("Added: %s", out)
		done.Set()
	})

	calc.Add(ctx, x, y)
	if err := d.wait(ctx, &done); err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// RunShortcut adds x and y with Client.AddAsync and waits for AddCompleted.
func (d *Driver) RunShortcut(ctx context.Context, client *calculator.Client, x, y int32) (Outcome, error) {
	var (
		done Flag
		out  Outcome
	)
	token := new(int)
	stop := client.AddCompleted.Listen(func(e calculator.AddCompletedEvent) {
		if e.State != token {
			return
		}
		out = Outcome{X: e.X, Y: e.Y, Result: e.Result, Err: e.Err}
		d.printf("AddCompleted: %s", out)
		done.Set()
	})
	defer stop()

	client.AddAsync(ctx, x, y, token)
	if err := d.wait(ctx, &done); err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// RunDelegate calls op synchronously with (x, y), then starts it again with
// (ax, ay) on another goroutine and finishes it from the continuation.
func (d *Driver) RunDelegate(ctx context.Context, op domain.Operation, x, y, ax, ay int32) (direct, deferred Outcome, err error) {
	v, opErr := op(ctx, x, y)
	direct = Outcome{X: x, Y: y, Result: v, Err: opErr}
	d.printf("Synchronous: %s", direct)

	var done Flag
	async.Invoke(ctx, op, ax, ay, func(r *async.Result) {
		v, err := r.Invoker().End(context.Background(), r)
		deferred = Outcome{X: ax, Y: ay, Result: v, Err: err}
		d.printf("Asynchronous: %s", deferred)
		done.Set()
	}, nil)

	if err := d.wait(ctx, &done); err != nil {
		return direct, Outcome{}, err
	}
	return direct, deferred, nil
}

// RunOverlapped starts one call per request back to back, each tagged with
// its index as correlation state, and returns the outcomes indexed the same
// way regardless of completion order.
func (d *Driver) RunOverlapped(ctx context.Context, client *calculator.Client, reqs []domain.AddRequest) ([]Outcome, error) {
	outcomes := make([]Outcome, len(reqs))
	if len(reqs) == 0 {
		return outcomes, nil
	}

	var (
		mu        sync.Mutex
		remaining = len(reqs)
		done      Flag
	)
	record := func(r *async.Result) {
		v, err := client.EndAdd(context.Background(), r)
		i, ok := r.State().(int)
		if !ok || i < 0 || i >= len(outcomes) {
			logging.Op().Warn("completion with unknown correlation state", "id", r.ID(), "state", r.State())
			return
		}
		x, y := r.Operands()
		o := Outcome{X: x, Y: y, Result: v, Err: err, State: i}
		d.printf("Call #%d: %s", i, o)

		mu.Lock()
		outcomes[i] = o
		remaining--
		last := remaining == 0
		mu.Unlock()
		if last {
			done.Set()
		}
	}

	handles := make([]*async.Result, len(reqs))
	for i, req := range reqs {
		handles[i] = client.BeginAdd(ctx, req.X, req.Y, record, i)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, h := range handles {
		h := h
		g.Go(func() error {
			select {
			case <-h.Done():
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	g.Go(func() error {
		return d.wait(gctx, &done)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	return outcomes, nil
}
