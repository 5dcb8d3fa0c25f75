package api

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, provider Provider) *Client {
	t.Helper()
	ts := httptest.NewServer(NewServer("", provider, nil).Handler())
	t.Cleanup(ts.Close)
	client, err := NewClient(ts.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestClientRoundTrip(t *testing.T) {
	run := newFakeRun()
	client := newTestClient(t, fakeProvider{run: run})
	ctx := context.Background()

	status, err := client.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status.RunID != "run-42" || status.State != "scheduling" {
		t.Fatalf("unexpected status %+v", status)
	}

	timeouts, err := client.Results(ctx, "timeout")
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(timeouts) != 1 || timeouts[0].Path != "/in/b.odex" {
		t.Fatalf("unexpected results %+v", timeouts)
	}

	cancelled, err := client.Cancelled(ctx)
	if err != nil {
		t.Fatalf("Cancelled: %v", err)
	}
	if len(cancelled) != 1 {
		t.Fatalf("unexpected cancelled %+v", cancelled)
	}

	resp, err := client.Cancel(ctx)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !resp.Requested || !run.cancelled {
		t.Fatalf("cancel not forwarded: %+v", resp)
	}
}

func TestClientErrors(t *testing.T) {
	client := newTestClient(t, fakeProvider{})
	if _, err := client.Run(context.Background()); !errors.Is(err, ErrNoRun) {
		t.Fatalf("expected ErrNoRun, got %v", err)
	}

	busy := newTestClient(t, fakeProvider{run: newFakeRun()})
	if _, err := busy.Results(context.Background(), "bogus"); err == nil {
		t.Fatal("expected error for unknown status filter")
	}
}

func TestClientUnavailable(t *testing.T) {
	ts := httptest.NewServer(NewServer("", fakeProvider{}, nil).Handler())
	addr := ts.Listener.Addr().String()
	ts.Close()

	client, err := NewClient(addr)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Run(context.Background())
	if !errors.Is(err, ErrUnavailable) || !IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestNewClientEmptyBind(t *testing.T) {
	client, err := NewClient("  ")
	if err != nil || client != nil {
		t.Fatalf("expected nil client, got %v %v", client, err)
	}
}
