package grpcx

import (
	"context"

	"github.com/agendly/agendly/libs/httpx"
	"github.com/google/uuid"
)

// RequestIDMetadataKey carries the request id in gRPC metadata. It is the
// lowercase form of httpx.RequestIDHeader.
const RequestIDMetadataKey = "x-request-id"

// RequestIDFromContext shares storage with httpx, so an id set by either
// transport is visible to both.
func RequestIDFromContext(ctx context.Context) string {
	return httpx.RequestIDFromContext(ctx)
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return httpx.ContextWithRequestID(ctx, id)
}

func NewRequestID() string {
	return uuid.NewString()
}
