package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "econometrics.v1.DiagnosticsService"

// AnalyzeMethod is the full method path of the Analyze RPC.
const AnalyzeMethod = "/" + ServiceName + "/Analyze"

// DiagnosticsServer is the server API of DiagnosticsService. Requests and responses
// are google.protobuf.Struct documents.
type DiagnosticsServer interface {
	Analyze(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// DiagnosticsServiceDesc describes DiagnosticsService for grpc.Server registration.
var DiagnosticsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DiagnosticsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Analyze", Handler: analyzeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "econometrics/v1/diagnostics.proto",
}

// RegisterDiagnosticsServer registers srv on s.
func RegisterDiagnosticsServer(s grpc.ServiceRegistrar, srv DiagnosticsServer) {
	s.RegisterService(&DiagnosticsServiceDesc, srv)
}

func analyzeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DiagnosticsServer).Analyze(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AnalyzeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DiagnosticsServer).Analyze(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// DiagnosticsClient calls DiagnosticsService over an established connection.
type DiagnosticsClient struct {
	cc grpc.ClientConnInterface
}

// NewDiagnosticsClient wraps cc.
func NewDiagnosticsClient(cc grpc.ClientConnInterface) *DiagnosticsClient {
	return &DiagnosticsClient{cc: cc}
}

// Analyze invokes the Analyze RPC.
func (c *DiagnosticsClient) Analyze(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, AnalyzeMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
