package calculator

import (
	"context"
	"time"

	"github.com/oriys/asynccalc/internal/domain"
)

// DefaultLatency is the simulated processing time of the hosted service.
const DefaultLatency = 3 * time.Second

// Adder is the remote add collaborator: a synchronous call that the client
// wraps with the asynchronous completion protocol.
type Adder interface {
	Add(ctx context.Context, x, y int32) (int32, error)
}

// AdderFunc adapts a plain function to Adder.
type AdderFunc func(ctx context.Context, x, y int32) (int32, error)

func (f AdderFunc) Add(ctx context.Context, x, y int32) (int32, error) { return f(ctx, x, y) }

// Service is the hosted Calculator implementation. It waits for a fixed
// latency before answering, standing in for an operation of unbounded
// duration; the delay is not a timing contract.
type Service struct {
	latency time.Duration
}

// NewService creates a Service with the given latency. Zero answers
// immediately.
func NewService(latency time.Duration) *Service {
	if latency < 0 {
		latency = 0
	}
	return &Service{latency: latency}
}

// Latency returns the configured processing delay.
func (s *Service) Latency() time.Duration { return s.latency }

// Add returns x + y after the configured latency. The request's context
// aborts the wait.
func (s *Service) Add(ctx context.Context, x, y int32) (int32, error) {
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return domain.Add(ctx, x, y)
}
