package middleware

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/lumenwork/telemetry/trace"
)

// remoteParent extracts a traceparent from incoming gRPC metadata.
func remoteParent(ctx context.Context) []trace.SpanOption {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil
	}
	vals := md.Get(trace.TraceparentHeader)
	if len(vals) == 0 {
		return nil
	}
	traceID, parentID, err := trace.ParseTraceparent(vals[0])
	if err != nil {
		return nil
	}
	return []trace.SpanOption{trace.WithRemoteParent(traceID, parentID)}
}

// GRPCUnary returns a server interceptor opening a server span per
// unary call. A nil tracer passes calls through untraced.
func GRPCUnary(tracer *trace.Tracer) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if tracer == nil {
			return handler(ctx, req)
		}
		ctx, span := tracer.Start(ctx, info.FullMethod, trace.KindServer, remoteParent(ctx)...)
		span.SetTag("rpc.system", "grpc")
		span.SetTag("rpc.method", info.FullMethod)

		resp, err := handler(ctx, req)
		if err != nil {
			span.RecordError(err)
		}
		span.End()
		return resp, err
	}
}

// GRPCStream returns a server interceptor opening a server span per
// stream, visible to the handler through the stream context. A nil
// tracer passes streams through untraced.
func GRPCStream(tracer *trace.Tracer) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if tracer == nil {
			return handler(srv, ss)
		}
		ctx, span := tracer.Start(ss.Context(), info.FullMethod, trace.KindServer, remoteParent(ss.Context())...)
		span.SetTag("rpc.system", "grpc")
		span.SetTag("rpc.method", info.FullMethod)
		span.SetTag("rpc.streaming", "true")

		err := handler(srv, &tracedServerStream{ServerStream: ss, ctx: ctx})
		if err != nil {
			span.RecordError(err)
		}
		span.End()
		return err
	}
}

// tracedServerStream carries the span context to stream handlers.
type tracedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracedServerStream) Context() context.Context {
	return s.ctx
}

// GRPCClient returns a client interceptor opening a client span per
// outbound call and propagating the traceparent in metadata. A nil
// tracer passes calls through untraced.
func GRPCClient(tracer *trace.Tracer) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		if tracer == nil {
			return invoker(ctx, method, req, reply, cc, opts...)
		}
		ctx, span := tracer.Start(ctx, method, trace.KindClient)
		span.SetTag("rpc.system", "grpc")
		span.SetTag("rpc.method", method)

		ctx = metadata.AppendToOutgoingContext(ctx,
			trace.TraceparentHeader, trace.FormatTraceparent(span.TraceID(), span.SpanID()),
		)

		err := invoker(ctx, method, req, reply, cc, opts...)
		if err != nil {
			span.RecordError(err)
		}
		span.End()
		return err
	}
}
