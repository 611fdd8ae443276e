package server

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/finalProject2025/TP-sub000/internal/platform/errors"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorUnaryInterceptor_MapsCollabErrors(t *testing.T) {
	t.Parallel()

	srv, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(srv.Close)

	interceptor := errorUnaryInterceptor()
	_, err = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/collab.v1.CollaborationEngine/OfferHelp"},
		func(ctx context.Context, _ any) (any, error) {
			return srv.Service().OfferHelp(ctx, "helper", "missing-post", "")
		})
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected grpc status, got %T", err)
	}
	if st.Code() != codes.NotFound {
		t.Fatalf("code = %s, want NotFound", st.Code())
	}
	var reason string
	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok {
			reason = info.GetReason()
		}
	}
	if reason != string(apperrors.CodePostNotFound) {
		t.Fatalf("reason = %q, want %s", reason, apperrors.CodePostNotFound)
	}
}

func TestErrorStreamInterceptor_HidesForeignErrors(t *testing.T) {
	t.Parallel()

	interceptor := errorStreamInterceptor()
	err := interceptor(nil, nil, &grpc.StreamServerInfo{}, func(any, grpc.ServerStream) error {
		return errors.New("disk on fire")
	})
	if got := status.Code(err); got != codes.Internal {
		t.Fatalf("code = %s, want Internal", got)
	}
	err = interceptor(nil, nil, &grpc.StreamServerInfo{}, func(any, grpc.ServerStream) error {
		return nil
	})
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
}
