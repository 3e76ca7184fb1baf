package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: NewRouter("claims-service", nil)}

	done := make(chan error, 1)
	go func() { done <- Run(ctx, srv, time.Second, discardLogger()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected a clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRunReportsListenFailure(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:-1"}
	if err := Run(context.Background(), srv, time.Second, discardLogger()); err == nil {
		t.Fatalf("expected an error for an unusable address")
	}
}
