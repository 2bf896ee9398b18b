package grpc

import (
	"context"
	"fmt"
	"math"

	"github.com/oriys/asynccalc/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The Calculator service is declared by hand over protobuf well-known types:
// a request is a Struct with numeric "x" and "y" fields and the reply is an
// Int32Value.
const (
	ServiceName = "asynccalc.Calculator"
	AddMethod   = "/" + ServiceName + "/Add"
)

// CalculatorServer is the server API for the Calculator service.
type CalculatorServer interface {
	Add(context.Context, *structpb.Struct) (*wrapperspb.Int32Value, error)
}

// RegisterCalculatorServer registers srv on s.
func RegisterCalculatorServer(s grpc.ServiceRegistrar, srv CalculatorServer) {
	s.RegisterService(&calculatorServiceDesc, srv)
}

var calculatorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CalculatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Add",
			Handler:    addHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "asynccalc/calculator",
}

func addHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CalculatorServer).Add(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: AddMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CalculatorServer).Add(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func newAddRequest(x, y int32) *structpb.Struct {
	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			"x": structpb.NewNumberValue(float64(x)),
			"y": structpb.NewNumberValue(float64(y)),
		},
	}
}

func parseAddRequest(req *structpb.Struct) (domain.AddRequest, error) {
	x, err := int32Field(req, "x")
	if err != nil {
		return domain.AddRequest{}, err
	}
	y, err := int32Field(req, "y")
	if err != nil {
		return domain.AddRequest{}, err
	}
	return domain.AddRequest{X: x, Y: y}, nil
}

func int32Field(req *structpb.Struct, name string) (int32, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return 0, fmt.Errorf("operand %q is required", name)
	}
	num, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("operand %q must be a number", name)
	}
	f := num.NumberValue
	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, fmt.Errorf("operand %q must be a 32-bit integer, got %v", name, f)
	}
	return int32(f), nil
}
