package async

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/asynccalc/internal/domain"
)

// Continuation is caller-supplied code run once an invocation completes. It
// runs on the goroutine that completed the invocation, never on the goroutine
// that started it.
type Continuation func(*Result)

// Result is the handle of one asynchronous invocation. It is returned before
// the operation has necessarily run and completes exactly once.
//
// The value and error are written before the done channel is closed, so any
// goroutine that observes completion (IsCompleted, Done, Wait) also observes
// the final value.
type Result struct {
	id           string
	operation    string
	x, y         int32
	state        any
	continuation Continuation
	owner        *Invoker
	startedAt    time.Time

	once        sync.Once
	done        chan struct{}
	value       int32
	err         error
	completedAt time.Time
}

func newResult(owner *Invoker, x, y int32, cb Continuation, state any) *Result {
	return &Result{
		id:           uuid.New().String(),
		operation:    owner.name,
		x:            x,
		y:            y,
		state:        state,
		continuation: cb,
		owner:        owner,
		startedAt:    time.Now(),
		done:         make(chan struct{}),
	}
}

// ID returns the unique invocation identifier.
func (r *Result) ID() string { return r.id }

// Operation returns the name of the invoked operation.
func (r *Result) Operation() string { return r.operation }

// Operands returns the invocation arguments.
func (r *Result) Operands() (x, y int32) { return r.x, r.y }

// Invoker returns the invoker that started the invocation, so a
// continuation can finish the call with End.
func (r *Result) Invoker() *Invoker { return r.owner }

// State returns the correlation state supplied when the invocation started.
func (r *Result) State() any { return r.state }

// Done returns a channel closed on completion.
func (r *Result) Done() <-chan struct{} { return r.done }

// IsCompleted reports whether the invocation has completed.
func (r *Result) IsCompleted() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Value returns the invocation outcome. Before completion it returns
// domain.ErrNotCompleted rather than a zero value.
func (r *Result) Value() (int32, error) {
	if !r.IsCompleted() {
		return 0, domain.ErrNotCompleted
	}
	return r.value, r.err
}

// Wait blocks until the invocation completes or ctx is done.
func (r *Result) Wait(ctx context.Context) (int32, error) {
	select {
	case <-r.done:
		return r.value, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Duration returns the time from start to completion, or zero while the
// invocation is in flight.
func (r *Result) Duration() time.Duration {
	if !r.IsCompleted() {
		return 0
	}
	return r.completedAt.Sub(r.startedAt)
}

// Notification renders the completed invocation as a notification value.
func (r *Result) Notification() domain.Notification {
	n := domain.Notification{
		ID:        r.id,
		Operation: r.operation,
		X:         r.x,
		Y:         r.y,
		State:     stateString(r.state),
	}
	if !r.IsCompleted() {
		n.Error = domain.ErrNotCompleted.Error()
		return n
	}
	n.Result = r.value
	n.DurationMs = r.completedAt.Sub(r.startedAt).Milliseconds()
	n.CompletedAt = r.completedAt
	if r.err != nil {
		n.Error = r.err.Error()
	}
	return n
}

// complete performs the single completion transition. It reports false if
// the result had already completed; the stored outcome is then unchanged.
func (r *Result) complete(v int32, err error) bool {
	first := false
	r.once.Do(func() {
		r.value = v
		r.err = err
		r.completedAt = time.Now()
		close(r.done)
		first = true
	})
	return first
}

func stateString(state any) string {
	switch s := state.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprint(s)
	default:
		return ""
	}
}
