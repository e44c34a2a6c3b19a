// Package grpc carries trace context across gRPC calls.
//
// Server interceptors read B3 metadata (x-b3-traceid, x-b3-spanid,
// x-b3-parentspanid) into a per-call store, run the handler as a traced
// unit and clear the store when the call returns. Client interceptors
// write the trace context of the call's context.Context into outgoing
// metadata.
//
// Example Usage:
//
//	srv, hs := grpc.NewServer(manager, metrics)
//	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
//
//	conn, err := grpc.NewClient("localhost:50051")
package grpc
