package grpcx

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func startServer(t *testing.T) (string, func(string, healthpb.HealthCheckResponse_ServingStatus)) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv, hs := NewServer(nil)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return lis.Addr().String(), hs.SetServingStatus
}

func TestHealthReadyCheck(t *testing.T) {
	addr, setStatus := startServer(t)
	setStatus("agendly.booking", healthpb.HealthCheckResponse_SERVING)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := Dial(ctx, addr, DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	check := HealthReadyCheck(conn, "agendly.booking")
	if err := check(ctx); err != nil {
		t.Fatalf("expected serving, got %v", err)
	}

	setStatus("agendly.booking", healthpb.HealthCheckResponse_NOT_SERVING)
	if err := check(ctx); err == nil {
		t.Fatal("expected error for NOT_SERVING")
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	addr, _ := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := Dial(ctx, addr, DialOptions{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var header metadata.MD
	_, err = healthpb.NewHealthClient(conn).Check(WithRequestID(ctx, "req-99"), &healthpb.HealthCheckRequest{}, grpc.Header(&header))
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if got := header.Get(RequestIDMetadataKey); len(got) != 1 || got[0] != "req-99" {
		t.Fatalf("expected request id echo, got %v", got)
	}
}

func TestUnaryServerRecoverInterceptor(t *testing.T) {
	intercept := UnaryServerRecoverInterceptor(nil)
	info := &grpc.UnaryServerInfo{FullMethod: "/agendly.Booking/Check"}
	resp, err := intercept(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		panic("boom")
	})
	if resp != nil {
		t.Fatalf("expected nil response, got %v", resp)
	}
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}
}
