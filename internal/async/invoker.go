// Package async implements the begin/complete invocation protocol: an
// Invoker starts an operation off the caller's goroutine, hands back a Result
// immediately, and later completes that Result exactly once before running
// the caller's continuation and notifying Completed subscribers.
package async

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/oriys/asynccalc/internal/domain"
	"github.com/oriys/asynccalc/internal/event"
	"github.com/oriys/asynccalc/internal/logging"
	"github.com/oriys/asynccalc/internal/metrics"
	"github.com/oriys/asynccalc/internal/observability"
)

// ErrForeignResult is returned by End for a result started by another invoker.
var ErrForeignResult = errors.New("result was not started by this invoker")

// Invoker runs one Operation asynchronously.
type Invoker struct {
	name      string
	op        domain.Operation
	scheduler Scheduler
	pending   atomic.Int64
	completed event.Event[*Result]
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithScheduler sets where operations run. The default starts a goroutine
// per invocation.
func WithScheduler(s Scheduler) Option {
	return func(inv *Invoker) {
		if s != nil {
			inv.scheduler = s
		}
	}
}

// NewInvoker creates an invoker for op, reported under name.
func NewInvoker(name string, op domain.Operation, opts ...Option) *Invoker {
	inv := &Invoker{
		name:      name,
		op:        op,
		scheduler: GoScheduler{},
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Name returns the operation name.
func (inv *Invoker) Name() string { return inv.name }

// Completed is fired once per invocation, after the continuation, with the
// completed result.
func (inv *Invoker) Completed() *event.Event[*Result] { return &inv.completed }

// Pending returns the number of invocations started but not yet completed.
func (inv *Invoker) Pending() int64 { return inv.pending.Load() }

// Begin starts op(x, y) and returns its handle without waiting for it. Errors
// never surface here: operation failures, panics and scheduler refusals are
// all delivered through the handle and the continuation.
//
// ctx contributes values such as the trace span; its cancellation does not
// stop the operation once started.
func (inv *Invoker) Begin(ctx context.Context, x, y int32, cb Continuation, state any) *Result {
	r := newResult(inv, x, y, cb, state)
	inv.pending.Add(1)
	metrics.IncInFlight()

	ctx = context.WithoutCancel(ctx)
	if err := inv.scheduler.Schedule(func() { inv.run(ctx, r) }); err != nil {
		go inv.finish(ctx, r, 0, err)
	}
	return r
}

// End waits for r to complete and returns its outcome.
func (inv *Invoker) End(ctx context.Context, r *Result) (int32, error) {
	if r == nil {
		return 0, fmt.Errorf("%s: nil result", inv.name)
	}
	if r.owner != inv {
		return 0, ErrForeignResult
	}
	return r.Wait(ctx)
}

func (inv *Invoker) run(ctx context.Context, r *Result) {
	ctx, span := observability.StartSpan(ctx, "invoke "+inv.name,
		observability.AttrInvocationID.String(r.id),
		observability.AttrOperation.String(inv.name),
		observability.AttrOperandX.Int(int(r.x)),
		observability.AttrOperandY.Int(int(r.y)),
	)
	defer span.End()

	v, err := inv.call(ctx, r.x, r.y)
	if err != nil {
		observability.SetSpanError(span, err)
	} else {
		span.SetAttributes(observability.AttrResult.Int(int(v)))
		observability.SetSpanOK(span)
	}
	span.SetAttributes(observability.AttrDurationMs.Int64(time.Since(r.startedAt).Milliseconds()))
	inv.finish(ctx, r, v, err)
}

func (inv *Invoker) call(ctx context.Context, x, y int32) (v int32, err error) {
	defer func() {
		if p := recover(); p != nil {
			v = 0
			err = &domain.ComputationError{Op: inv.name, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	return inv.op(ctx, x, y)
}

func (inv *Invoker) finish(ctx context.Context, r *Result, v int32, err error) {
	if !r.complete(v, err) {
		return
	}
	inv.pending.Add(-1)
	metrics.DecInFlight()

	durationMs := r.Duration().Milliseconds()
	metrics.Global().RecordInvocation(inv.name, durationMs, err == nil)
	metrics.RecordPrometheusInvocation(inv.name, durationMs, err == nil)

	log := logging.OpWithTrace(observability.GetTraceID(ctx), observability.GetSpanID(ctx))
	if err != nil {
		log.Debug("invocation failed", "id", r.id, "operation", inv.name, "duration_ms", durationMs, "error", err)
	} else {
		log.Debug("invocation completed", "id", r.id, "operation", inv.name, "duration_ms", durationMs)
	}

	entry := &logging.InvocationLog{
		ID:         r.id,
		TraceID:    observability.GetTraceID(ctx),
		Operation:  inv.name,
		X:          r.x,
		Y:          r.y,
		Result:     v,
		DurationMs: durationMs,
		Success:    err == nil,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	logging.Default().Log(entry)

	inv.deliver(r)
}

func (inv *Invoker) deliver(r *Result) {
	if r.continuation != nil {
		inv.guard("continuation", r, func() { r.continuation(r) })
	}
	inv.guard("completed handler", r, func() {
		if n := inv.completed.Fire(r); n > 0 {
			metrics.Global().RecordNotification()
			metrics.RecordNotification("Completed")
		}
	})
}

// guard runs fn and turns a panic into a log line; the result has already
// completed and stays completed.
func (inv *Invoker) guard(what string, r *Result, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			metrics.Global().RecordContinuationPanic()
			metrics.RecordContinuationPanic()
			logging.Op().Error(what+" panicked", "id", r.id, "operation", inv.name, "panic", p)
		}
	}()
	fn()
}

// Invoke starts op(x, y) on a new goroutine. It is the function-value form of
// Invoker.Begin for one-off calls.
func Invoke(ctx context.Context, op domain.Operation, x, y int32, cb Continuation, state any) *Result {
	return NewInvoker("func", op).Begin(ctx, x, y, cb, state)
}
