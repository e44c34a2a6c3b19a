package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/GriffinCanCode/tracectx/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tracectx/internal/tracing"
)

// RPCComponent is the class.name tag of server spans.
const RPCComponent = "grpc"

// Span tags set by the server interceptors.
const (
	TagRPCCode      = "rpc.code"
	TagRPCStreaming = "rpc.streaming"
)

// UnaryServerInterceptor continues the caller's trace for each unary call.
// The boundary store is cleared when the call returns. metrics may be nil.
func UnaryServerInterceptor(manager *tracing.Manager, metrics *monitoring.Metrics) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		ctx, boundary := incoming(ctx)
		defer boundary.Clear()

		timer := monitoring.NewTimer(metrics, info.FullMethod)

		var resp interface{}
		err := manager.WithTracing(ctx, tracing.Descriptor{Component: RPCComponent, Operation: info.FullMethod, Transport: true},
			func(ctx context.Context) error {
				var err error
				resp, err = handler(ctx, req)
				tagCode(ctx, err)
				return err
			})

		timer.Stop(status.Code(err).String())
		return resp, err
	}
}

// StreamServerInterceptor continues the caller's trace for each stream.
// The span covers the whole stream.
func StreamServerInterceptor(manager *tracing.Manager, metrics *monitoring.Metrics) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, boundary := incoming(ss.Context())
		defer boundary.Clear()

		timer := monitoring.NewTimer(metrics, info.FullMethod)

		err := manager.WithTracing(ctx, tracing.Descriptor{Component: RPCComponent, Operation: info.FullMethod, Transport: true},
			func(ctx context.Context) error {
				if span := tracing.ActiveFrom(ctx); span != nil {
					span.SetTag(TagRPCStreaming, "true")
				}
				err := handler(srv, &tracedServerStream{ServerStream: ss, ctx: ctx})
				tagCode(ctx, err)
				return err
			})

		timer.Stop(status.Code(err).String())
		return err
	}
}

// UnaryClientInterceptor sends the trace context of the call's context as
// B3 metadata.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		return invoker(outgoing(ctx), method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor sends the trace context of the stream's context
// as B3 metadata.
func StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		return streamer(outgoing(ctx), desc, cc, method, opts...)
	}
}

func tagCode(ctx context.Context, err error) {
	if span := tracing.ActiveFrom(ctx); span != nil {
		span.SetTag(TagRPCCode, status.Code(err).String())
	}
}

// tracedServerStream wraps grpc.ServerStream with the unit's context
type tracedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracedServerStream) Context() context.Context {
	return s.ctx
}
