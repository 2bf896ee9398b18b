package domain

import "context"

// Operation is a unit of work that can be invoked asynchronously: a
// computation over two operands producing one result.
type Operation func(ctx context.Context, x, y int32) (int32, error)

// OperationAdd is the name the add operation is registered and reported under.
const OperationAdd = "add"

// Add returns x + y. Overflow wraps using two's-complement int32 arithmetic;
// callers that need wider sums must widen the operands themselves.
func Add(_ context.Context, x, y int32) (int32, error) {
	return x + y, nil
}

// AddRequest carries the operands of a single add invocation.
type AddRequest struct {
	X int32 `json:"x" yaml:"x"`
	Y int32 `json:"y" yaml:"y"`
}
