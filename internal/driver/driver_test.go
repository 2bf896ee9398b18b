package driver

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oriys/asynccalc/internal/calculator"
	"github.com/oriys/asynccalc/internal/domain"
)

func slowAdd(d time.Duration) calculator.AdderFunc {
	return func(ctx context.Context, x, y int32) (int32, error) {
		time.Sleep(d)
		return domain.Add(ctx, x, y)
	}
}

// syncBuffer guards a bytes.Buffer for concurrent printing.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestFlagPoll(t *testing.T) {
	var f Flag
	ticks := 0
	go func() {
		time.Sleep(30 * time.Millisecond)
		f.Set()
	}()

	if err := f.Poll(testContext(t), 5*time.Millisecond, func() { ticks++ }); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !f.IsSet() {
		t.Fatal("flag should be set")
	}
	if ticks == 0 {
		t.Fatal("tick should run while waiting")
	}
}

func TestFlagPollAlreadySet(t *testing.T) {
	var f Flag
	f.Set()
	called := false
	if err := f.Poll(context.Background(), time.Hour, func() { called = true }); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if called {
		t.Fatal("tick should not run when the flag is already set")
	}
}

func TestFlagPollContextDone(t *testing.T) {
	var f Flag
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := f.Poll(ctx, 5*time.Millisecond, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want DeadlineExceeded", err)
	}
}

func TestRunHelper(t *testing.T) {
	out := &syncBuffer{}
	d := New(out, 5*time.Millisecond)

	got, err := d.RunHelper(testContext(t), calculator.NewClient(slowAdd(30*time.Millisecond)), 2, 3)
	if err != nil {
		t.Fatalf("RunHelper: %v", err)
	}
	if got.Result != 5 || got.Err != nil {
		t.Fatalf("got %+v, want 5", got)
	}
	if !strings.Contains(out.String(), busyLine) {
		t.Fatalf("expected busy output, got %q", out.String())
	}
	if !strings.Contains(out.String(), "2 + 3 = 5") {
		t.Fatalf("expected result line, got %q", out.String())
	}
}

func TestRunShortcut(t *testing.T) {
	d := New(nil, 5*time.Millisecond)

	got, err := d.RunShortcut(testContext(t), calculator.NewClient(slowAdd(10*time.Millisecond)), 4, 2)
	if err != nil {
		t.Fatalf("RunShortcut: %v", err)
	}
	if got.Result != 6 {
		t.Fatalf("got %+v, want 6", got)
	}
}

func TestRunShortcutReleasesHandler(t *testing.T) {
	d := New(nil, 5*time.Millisecond)
	client := calculator.NewClient(slowAdd(0))

	for i := int32(0); i < 5; i++ {
		got, err := d.RunShortcut(testContext(t), client, i, i)
		if err != nil {
			t.Fatalf("RunShortcut: %v", err)
		}
		if got.Result != 2*i {
			t.Fatalf("call %d = %+v, want %d", i, got, 2*i)
		}
	}
	if n := client.AddCompleted.Len(); n != 0 {
		t.Fatalf("AddCompleted has %d handlers left, want 0", n)
	}
}

func TestRunDelegate(t *testing.T) {
	d := New(nil, 5*time.Millisecond)

	direct, deferred, err := d.RunDelegate(testContext(t), domain.Add, 3, 2, 3, 2)
	if err != nil {
		t.Fatalf("RunDelegate: %v", err)
	}
	if direct.Result != 5 || deferred.Result != 5 {
		t.Fatalf("got direct=%+v deferred=%+v", direct, deferred)
	}
}

func TestRunDelegateError(t *testing.T) {
	d := New(nil, 5*time.Millisecond)
	boom := errors.New("boom")
	op := func(ctx context.Context, x, y int32) (int32, error) { return 0, boom }

	direct, deferred, err := d.RunDelegate(testContext(t), op, 1, 1, 1, 1)
	if err != nil {
		t.Fatalf("RunDelegate: %v", err)
	}
	if !errors.Is(direct.Err, boom) || !errors.Is(deferred.Err, boom) {
		t.Fatalf("errors not delivered: %v / %v", direct.Err, deferred.Err)
	}
}

func TestRunOverlappedMatchesByState(t *testing.T) {
	// the first call is slower, so completions arrive out of call order
	adder := calculator.AdderFunc(func(ctx context.Context, x, y int32) (int32, error) {
		if x == 1 {
			time.Sleep(40 * time.Millisecond)
		}
		return domain.Add(ctx, x, y)
	})
	d := New(nil, 5*time.Millisecond)

	got, err := d.RunOverlapped(testContext(t), calculator.NewClient(adder), []domain.AddRequest{
		{X: 1, Y: 1},
		{X: 2, Y: 2},
	})
	if err != nil {
		t.Fatalf("RunOverlapped: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d outcomes", len(got))
	}
	if got[0].Result != 2 || got[0].State != 0 {
		t.Fatalf("call 0 = %+v, want 2", got[0])
	}
	if got[1].Result != 4 || got[1].State != 1 {
		t.Fatalf("call 1 = %+v, want 4", got[1])
	}
}

func TestRunOverlappedEmpty(t *testing.T) {
	got, err := New(nil, 0).RunOverlapped(context.Background(), calculator.NewClient(slowAdd(0)), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("got (%v, %v)", got, err)
	}
}
