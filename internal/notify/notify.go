// Package notify defines the notification system the pipeline talks to.
package notify

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/mixelka/smsfirewall/pkg/models"
)

// Notifier shows notifications and dismisses them by id
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) (string, error)
	Dismiss(ctx context.Context, id string) error
}

// LogNotifier writes notifications to the log. Used when no chat is configured.
type LogNotifier struct {
	logger *slog.Logger
	seq    atomic.Int64
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notify")}
}

// Notify implements Notifier
func (n *LogNotifier) Notify(ctx context.Context, notification models.Notification) (string, error) {
	id := strconv.FormatInt(n.seq.Add(1), 10)
	n.logger.Info("notification",
		"id", id,
		"title", notification.Title,
		"sender", notification.Sender,
		"actions", len(notification.Actions),
	)
	return id, nil
}

// Dismiss implements Notifier
func (n *LogNotifier) Dismiss(ctx context.Context, id string) error {
	n.logger.Info("notification dismissed", "id", id)
	return nil
}
