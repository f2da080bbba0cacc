// Package notify contains best-effort notification listeners for engine
// lifecycle events.
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/example/dlqwatch/internal/models"
)

// DesktopNotifier sends lifecycle events to the local notification center
// (osascript on darwin, notify-send elsewhere). Subscribed to the event
// emitter; failures are logged by the emitter and never block the loop.
type DesktopNotifier struct {
	logger *zap.Logger

	// goos and run are swappable for tests.
	goos string
	run  func(ctx context.Context, name string, args ...string) error
}

// NewDesktopNotifier creates a desktop notification listener.
func NewDesktopNotifier(logger *zap.Logger) *DesktopNotifier {
	return &DesktopNotifier{
		logger: logger,
		goos:   runtime.GOOS,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

// HandleEvent delivers one event as a desktop notification.
func (n *DesktopNotifier) HandleEvent(ctx context.Context, event models.Event) error {
	title, body := formatEvent(event)
	if title == "" {
		return nil
	}

	switch n.goos {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		return n.run(ctx, "osascript", "-e", script)
	default:
		return n.run(ctx, "notify-send", title, body)
	}
}

// formatEvent maps an event to notification title and body. An empty
// title means the event is not worth a desktop banner.
func formatEvent(e models.Event) (title, body string) {
	switch e.Kind {
	case models.EventMessagesDetected:
		return fmt.Sprintf("DLQ alert: %s", e.QueueName),
			fmt.Sprintf("%d messages in dead-letter queue %s", e.MessageCount, e.QueueName)
	case models.EventSessionStarted:
		return fmt.Sprintf("Investigation started: %s", e.QueueName),
			fmt.Sprintf("Automated investigation launched for %s", e.QueueName)
	case models.EventSessionCompleted:
		return fmt.Sprintf("Investigation completed: %s", e.QueueName),
			fmt.Sprintf("Finished in %s", e.Duration.Round(time.Second))
	case models.EventSessionFailed:
		body := "Investigation failed"
		if e.Detail != "" {
			body = fmt.Sprintf("Investigation failed: %s", e.Detail)
		}
		return fmt.Sprintf("Investigation failed: %s", e.QueueName), body
	case models.EventSessionTimedOut:
		return fmt.Sprintf("Investigation timed out: %s", e.QueueName),
			fmt.Sprintf("Cancelled after %s", e.Duration.Round(time.Second))
	}
	return "", ""
}
