package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"deodexer/internal/config"
)

const userAgent = "deodexer/0.1.0"

// Event names a notification type.
type Event string

const (
	EventRunStarted    Event = "run_started"
	EventRunCompleted  Event = "run_completed"
	EventRunFailed     Event = "run_failed"
	EventFileCompleted Event = "file_completed"
	EventTest          Event = "test"
)

// Payload carries event fields.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, p Payload) error {
	data, ok := format(event, p)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

// format renders the human message for event. Per-file events are not sent
// to ntfy.
func format(event Event, p Payload) (payload, bool) {
	switch event {
	case EventRunStarted:
		return payload{
			title:   "Deodexer - Run Started",
			message: fmt.Sprintf("▶️ Deodexing %s files from %s", p.str("files"), p.str("input")),
			tags:    []string{"deodexer", "run", "started"},
		}, true
	case EventRunCompleted:
		msg := fmt.Sprintf("✅ Run complete: %s succeeded, %s failed in %s",
			p.str("succeeded"), p.str("failed"), p.str("duration"))
		if c := p.str("cancelled"); c != "" && c != "0" {
			msg += fmt.Sprintf(" (%s cancelled)", c)
		}
		return payload{
			title:   "Deodexer - Run Complete",
			message: msg,
			tags:    []string{"deodexer", "run", "completed"},
		}, true
	case EventRunFailed:
		return payload{
			title:    "Deodexer - Run Failed",
			message:  fmt.Sprintf("❌ Run failed: %s", p.str("error")),
			tags:     []string{"deodexer", "run", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:   "Deodexer - Test",
			message: "🔔 Test notification from deodexer",
			tags:    []string{"deodexer", "test"},
		}, true
	default:
		return payload{}, false
	}
}

func (p Payload) str(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

// Multi fans an event out to every service and joins their errors.
func Multi(services ...Service) Service {
	out := make(multiService, 0, len(services))
	for _, svc := range services {
		if svc == nil {
			continue
		}
		if _, ok := svc.(noopService); ok {
			continue
		}
		out = append(out, svc)
	}
	switch len(out) {
	case 0:
		return noopService{}
	case 1:
		return out[0]
	default:
		return out
	}
}

type multiService []Service

func (m multiService) Publish(ctx context.Context, event Event, p Payload) error {
	var errs []error
	for _, svc := range m {
		if err := svc.Publish(ctx, event, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
