package server

import (
	"context"

	apperrors "github.com/finalProject2025/TP-sub000/internal/platform/errors"
	"google.golang.org/grpc"
)

// errorUnaryInterceptor converts handler errors into gRPC statuses.
func errorUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		return resp, apperrors.HandleError(err)
	}
}

// errorStreamInterceptor converts stream handler errors into gRPC statuses.
func errorStreamInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return apperrors.HandleError(handler(srv, ss))
	}
}
