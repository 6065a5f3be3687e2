package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"uploadr/internal/config"
)

const userAgent = "uploadr/1.0"

// Event identifies a notification type.
type Event string

const (
	EventRunCompleted Event = "run_completed"
	EventRunFailed    Event = "run_failed"
	EventStaleRun     Event = "stale_run"
	EventTest         Event = "test"
)

// Payload carries event fields keyed by name.
type Payload map[string]any

// Service publishes events. Implementations must be safe to call when
// notifications are disabled.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed Service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := cfg.NotifyTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventRunCompleted:
		uploaded := intValue(payload, "uploaded")
		failed := intValue(payload, "failed")
		albums := intValue(payload, "albumsCreated")
		duration := durationText(payload["duration"])
		if uploaded == 0 && failed == 0 {
			return message{}, false
		}
		msg := message{
			title: "uploadr - Run Complete",
			body:  fmt.Sprintf("Uploaded %d files in %s", uploaded, duration),
			tags:  []string{"uploadr", "run", "completed"},
		}
		if albums > 0 {
			msg.body += fmt.Sprintf("\nAlbums created: %d", albums)
		}
		if failed > 0 {
			msg.title = "uploadr - Run Complete (with errors)"
			msg.body = fmt.Sprintf("Uploaded %d files, %d failed in %s", uploaded, failed, duration)
			msg.tags = []string{"uploadr", "run", "warning"}
		}
		return msg, true
	case EventRunFailed:
		label := strings.TrimSpace(stringValue(payload, "context"))
		errText := strings.TrimSpace(stringValue(payload, "error"))
		if errText == "" {
			errText = "unknown"
		}
		body := "Error: " + errText
		if label != "" {
			body = fmt.Sprintf("Error during %s: %s", label, errText)
		}
		return message{
			title:    "uploadr - Error",
			body:     body,
			tags:     []string{"uploadr", "error", "alert"},
			priority: "high",
		}, true
	case EventStaleRun:
		inflight := strings.TrimSpace(stringValue(payload, "inflight"))
		if inflight == "" {
			return message{}, false
		}
		return message{
			title:    "uploadr - Possible Orphan Upload",
			body:     fmt.Sprintf("Previous run %s stopped while uploading:\n%s\nCheck the photostream for a duplicate.", stringValue(payload, "runID"), inflight),
			tags:     []string{"uploadr", "stale", "review"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "uploadr - Test",
			body:     "Notification system test",
			tags:     []string{"uploadr", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
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

func stringValue(payload Payload, key string) string {
	switch v := payload[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func intValue(payload Payload, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func durationText(value any) string {
	d, _ := value.(time.Duration)
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
