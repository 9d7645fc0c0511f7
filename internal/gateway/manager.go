package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mixelka/smsfirewall/pkg/models"
)

// Source yields gateway emails above a UID
type Source interface {
	Mailbox() string
	Fetch(ctx context.Context, sinceUID uint32) ([]Fetched, error)
}

// Cursor persists the last handed-off UID per mailbox
type Cursor interface {
	GetGatewayCursor(ctx context.Context, mailbox string) (uint32, error)
	SetGatewayCursor(ctx context.Context, mailbox string, uid uint32) error
}

// EventHandler receives parsed delivery events. An error leaves the event
// unacknowledged so the next poll fetches it again.
type EventHandler func(event models.DeliveryEvent) error

// Manager polls the gateway and hands events to the pipeline
type Manager struct {
	source  Source
	cursor  Cursor
	onEvent EventHandler
	logger  *slog.Logger
	mu      sync.Mutex
}

// NewManager creates a gateway manager
func NewManager(source Source, cursor Cursor, onEvent EventHandler, logger *slog.Logger) *Manager {
	return &Manager{
		source:  source,
		cursor:  cursor,
		onEvent: onEvent,
		logger:  logger.With("component", "gateway"),
	}
}

// Poll fetches new gateway emails and returns how many events were handed
// off. The cursor advances after each message the handler accepted, so a
// failure mid-batch resumes at the first unhandled UID.
func (m *Manager) Poll(ctx context.Context) (int, error) {
	// Overlapping polls would hand off the same UID twice
	m.mu.Lock()
	defer m.mu.Unlock()

	mailbox := m.source.Mailbox()
	since, err := m.cursor.GetGatewayCursor(ctx, mailbox)
	if err != nil {
		return 0, err
	}

	fetched, fetchErr := m.source.Fetch(ctx, since)

	handed := 0
	for _, f := range fetched {
		if f.UID <= since {
			continue
		}
		if f.Err != nil {
			m.logger.Warn("skipping unreadable gateway message", "uid", f.UID, "error", f.Err)
		} else {
			if err := m.onEvent(f.Event); err != nil {
				return handed, fmt.Errorf("failed to hand off gateway message %d: %w", f.UID, err)
			}
			handed++
		}

		if err := m.cursor.SetGatewayCursor(ctx, mailbox, f.UID); err != nil {
			return handed, fmt.Errorf("failed to advance gateway cursor: %w", err)
		}
		since = f.UID
	}

	if fetchErr != nil {
		return handed, fetchErr
	}
	if handed > 0 {
		m.logger.Info("gateway messages received", "count", handed, "last_uid", since)
	}
	return handed, nil
}
