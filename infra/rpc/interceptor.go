package rpc

import (
	"context"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/kilianp07/ctramp/core/logger"
)

// RequestIDHeader carries the id a client stamps on every call.
const RequestIDHeader = "X-Request-Id"

// RequestIDInterceptor stamps outgoing calls with a fresh request id unless
// one is already set.
func RequestIDInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient && req.Header().Get(RequestIDHeader) == "" {
				req.Header().Set(RequestIDHeader, uuid.NewString())
			}
			return next(ctx, req)
		}
	}
}

// LoggingInterceptor logs failed server-side calls with their request id.
func LoggingInterceptor(log logger.Logger) connect.UnaryInterceptorFunc {
	log = logger.OrNop(log)
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			res, err := next(ctx, req)
			if err != nil && !req.Spec().IsClient {
				log.Warnf("%s [%s] failed: %v", req.Spec().Procedure, req.Header().Get(RequestIDHeader), err)
			}
			return res, err
		}
	}
}
