package trace

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// UnaryServerInterceptor continues the caller's trace from incoming metadata, or starts one,
// and logs each call with its status.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		tc := FromMap(incoming(ctx))
		ctx = WithContext(ctx, tc)

		ctx, span := StartSpan(ctx, info.FullMethod)
		resp, err := handler(ctx, req)
		span.End()

		log := Logger(ctx)
		if err != nil {
			log.Warn("grpc call failed", "method", info.FullMethod, "duration", span.Duration(), "error", err)
		} else {
			log.Debug("grpc call", "method", info.FullMethod, "duration", span.Duration())
		}
		return resp, err
	}
}

func incoming(ctx context.Context) map[string]string {
	m := make(map[string]string, 2)
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return m
	}
	for _, key := range []string{TraceIDKey, SpanIDKey} {
		if v := md.Get(key); len(v) > 0 {
			m[key] = v[0]
		}
	}
	return m
}
