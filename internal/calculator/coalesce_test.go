package calculator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oriys/asynccalc/internal/domain"
)

func TestCoalesceSharesInFlightCall(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	slow := AdderFunc(func(ctx context.Context, x, y int32) (int32, error) {
		calls.Add(1)
		<-release
		return domain.Add(ctx, x, y)
	})
	adder := Coalesce(slow)

	var wg sync.WaitGroup
	results := make([]int32, 5)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := adder.Add(context.Background(), 2, 3)
			if err != nil {
				t.Errorf("Add: %v", err)
			}
			results[i] = v
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, v := range results {
		if v != 5 {
			t.Fatalf("result %d = %d, want 5", i, v)
		}
	}
	if n := calls.Load(); n < 1 || n > 5 {
		t.Fatalf("calls = %d", n)
	}
}

func TestCoalesceDistinctOperands(t *testing.T) {
	adder := Coalesce(NewService(0))
	a, _ := adder.Add(context.Background(), 1, 1)
	b, _ := adder.Add(context.Background(), 2, 2)
	if a != 2 || b != 4 {
		t.Fatalf("got %d, %d", a, b)
	}
}

func TestCoalesceCallerContext(t *testing.T) {
	adder := Coalesce(NewService(time.Minute))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := adder.Add(ctx, 1, 2); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want DeadlineExceeded", err)
	}
}
