package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/oriys/asynccalc/internal/domain"
	"github.com/oriys/asynccalc/internal/observability"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// RemoteAdder calls a Calculator service over gRPC. It is the synchronous
// collaborator that calculator.Client wraps asynchronously.
type RemoteAdder struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

// Dial creates a client for the Calculator service at addr. timeout bounds
// each call; zero means no per-call deadline.
func Dial(addr string, timeout time.Duration, opts ...grpc.DialOption) (*RemoteAdder, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to calculator %s: %w", addr, err)
	}
	return &RemoteAdder{conn: conn, timeout: timeout}, nil
}

// Add sends x and y to the service and returns the sum. Transport failures
// wrap domain.ErrUnavailable; failures reported by the service are
// ComputationErrors.
func (r *RemoteAdder) Add(ctx context.Context, x, y int32) (int32, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	ctx, span := observability.StartClientSpan(ctx, AddMethod,
		observability.AttrOperandX.Int(int(x)),
		observability.AttrOperandY.Int(int(y)),
	)
	defer span.End()
	ctx = observability.InjectOutgoing(ctx)

	out := new(wrapperspb.Int32Value)
	if err := r.conn.Invoke(ctx, AddMethod, newAddRequest(x, y), out); err != nil {
		err = translateError(err)
		observability.SetSpanError(span, err)
		return 0, err
	}
	observability.SetSpanOK(span)
	return out.GetValue(), nil
}

// Close shuts down the underlying gRPC connection.
func (r *RemoteAdder) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func translateError(err error) error {
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return fmt.Errorf("%w: %s", domain.ErrUnavailable, st.Message())
	default:
		return &domain.ComputationError{
			Op:  domain.OperationAdd,
			Err: fmt.Errorf("%s: %s", st.Code(), st.Message()),
		}
	}
}
