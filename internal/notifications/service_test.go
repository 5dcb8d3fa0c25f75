package notifications_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"deodexer/internal/config"
	"deodexer/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventRunCompleted, notifications.Payload{"succeeded": 1}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "run started",
			event:         notifications.EventRunStarted,
			payload:       notifications.Payload{"files": 12, "input": "/sys/framework"},
			expectTitle:   "Deodexer - Run Started",
			expectMessage: "▶️ Deodexing 12 files from /sys/framework",
			expectTags:    "deodexer,run,started",
		},
		{
			name:  "run completed with cancellations",
			event: notifications.EventRunCompleted,
			payload: notifications.Payload{
				"succeeded": 10,
				"failed":    1,
				"cancelled": 1,
				"duration":  "42s",
			},
			expectTitle:   "Deodexer - Run Complete",
			expectMessage: "✅ Run complete: 10 succeeded, 1 failed in 42s (1 cancelled)",
			expectTags:    "deodexer,run,completed",
		},
		{
			name:           "run failed",
			event:          notifications.EventRunFailed,
			payload:        notifications.Payload{"error": "framework directory missing"},
			expectTitle:    "Deodexer - Run Failed",
			expectMessage:  "❌ Run failed: framework directory missing",
			expectTags:     "deodexer,run,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceIgnoresFileEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for per-file event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventFileCompleted, notifications.Payload{"path": "/a.odex"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic disabled", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTest, nil)
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
}

type recorder struct {
	events []notifications.Event
	err    error
}

func (r *recorder) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.events = append(r.events, event)
	return r.err
}

func TestMultiFansOutAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	a := &recorder{}
	b := &recorder{err: boom}
	svc := notifications.Multi(a, nil, b)

	err := svc.Publish(context.Background(), notifications.EventRunStarted, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("expected both services to receive the event")
	}

	if single := notifications.Multi(a); single != notifications.Service(a) {
		t.Fatal("single service should be returned as-is")
	}
}

func TestEncodeEnvelope(t *testing.T) {
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	body, err := notifications.EncodeEnvelope(notifications.EventFileCompleted, notifications.Payload{"status": "success"}, at)
	if err != nil {
		t.Fatal(err)
	}
	var env notifications.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatal(err)
	}
	if env.Event != notifications.EventFileCompleted || !env.Time.Equal(at) || env.Payload["status"] != "success" {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if got := notifications.SubjectFor("deodexer.runs", notifications.EventRunCompleted); got != "deodexer.runs.run_completed" {
		t.Fatalf("unexpected subject %q", got)
	}
}

func TestConnectNATSFailsFast(t *testing.T) {
	if _, err := notifications.ConnectNATS("nats://127.0.0.1:1", "deodexer.runs"); err == nil {
		t.Fatal("expected connection error")
	}
}
