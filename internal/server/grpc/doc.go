// Package grpcserver hosts a gRPC endpoint exposing the standard
// grpc.health.v1 service, kept current by periodically pinging the store's
// backend, plus server reflection.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Config: config.Default()})
//	s := grpcserver.New(rt, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":50051")
package grpcserver
