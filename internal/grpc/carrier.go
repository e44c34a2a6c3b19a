package grpc

import (
	"context"

	"google.golang.org/grpc/metadata"

	"github.com/GriffinCanCode/tracectx/internal/propagation"
)

// MetadataCarrier adapts gRPC metadata. Keys are lower-cased by metadata
// itself, so lookups ignore case.
type MetadataCarrier metadata.MD

// Get returns the first value for key.
func (c MetadataCarrier) Get(key string) string {
	if vals := metadata.MD(c).Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// Set replaces the values for key.
func (c MetadataCarrier) Set(key, value string) {
	metadata.MD(c).Set(key, value)
}

// Keys lists the metadata keys.
func (c MetadataCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// incoming attaches a boundary store filled from the incoming metadata.
func incoming(ctx context.Context) (context.Context, *propagation.Store) {
	boundary := propagation.NewStore()
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if tc, ok := propagation.ExtractFrom(MetadataCarrier(md)); ok {
			boundary.SetContext(tc)
		}
	}
	return propagation.WithStore(ctx, boundary), boundary
}

// outgoing copies the trace context stored in ctx into the outgoing
// metadata. Metadata already set by the caller is kept.
func outgoing(ctx context.Context) context.Context {
	tc, ok := propagation.FromContext(ctx)
	if !ok {
		return ctx
	}
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	propagation.InjectInto(tc, MetadataCarrier(md))
	return metadata.NewOutgoingContext(ctx, md)
}
