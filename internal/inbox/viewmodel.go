package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mixelka/smsfirewall/internal/platform"
	"github.com/mixelka/smsfirewall/pkg/models"
)

// Preferences is what the view model reads from settings
type Preferences interface {
	Overlay
	ShowUnreadBadges() bool
}

// ViewModel keeps a conversation list in sync with the message store
type ViewModel struct {
	messages platform.MessageStore
	prefs    Preferences
	logger   *slog.Logger

	mu       sync.RWMutex
	snapshot []models.ConversationSummary

	changes     chan struct{}
	cancel      context.CancelFunc
	done        chan struct{}
	unsubscribe func()
}

// NewViewModel creates a view model
func NewViewModel(messages platform.MessageStore, prefs Preferences, logger *slog.Logger) *ViewModel {
	return &ViewModel{
		messages: messages,
		prefs:    prefs,
		logger:   logger.With("component", "inbox"),
		changes:  make(chan struct{}, 1),
	}
}

// Start loads the list and recomputes it on every store change until ctx
// is done or Stop is called.
func (v *ViewModel) Start(ctx context.Context) error {
	if err := v.Refresh(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.done = make(chan struct{})
	v.unsubscribe = v.messages.Subscribe(func() {
		select {
		case v.changes <- struct{}{}:
		default:
		}
	})

	go func() {
		defer close(v.done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-v.changes:
				if err := v.Refresh(ctx); err != nil && ctx.Err() == nil {
					v.logger.Warn("failed to refresh conversations", "error", err)
				}
			}
		}
	}()
	return nil
}

// Stop detaches the view model from the store
func (v *ViewModel) Stop() {
	if v.cancel == nil {
		return
	}
	v.unsubscribe()
	v.cancel()
	<-v.done
	v.cancel = nil
}

// Refresh recomputes the list from scratch
func (v *ViewModel) Refresh(ctx context.Context) error {
	msgs, err := v.messages.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}
	summaries := Build(msgs, v.prefs)

	v.mu.Lock()
	v.snapshot = summaries
	v.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current list
func (v *ViewModel) Snapshot() []models.ConversationSummary {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]models.ConversationSummary, len(v.snapshot))
	copy(out, v.snapshot)
	return out
}

// Conversations returns the current list narrowed by f
func (v *ViewModel) Conversations(f Filter) []models.ConversationSummary {
	return f.Apply(v.Snapshot(), v.prefs.ShowUnreadBadges())
}

// UnreadTotal returns the badge count, 0 when badges are disabled
func (v *ViewModel) UnreadTotal() int {
	if !v.prefs.ShowUnreadBadges() {
		return 0
	}
	return UnreadTotal(v.Snapshot())
}

// Thread returns a conversation oldest first and marks it read
func (v *ViewModel) Thread(ctx context.Context, threadID int64) ([]models.Message, error) {
	msgs, err := v.messages.FindByThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	unread := false
	for i := range msgs {
		if msgs[i].Inbound() && !msgs[i].Read {
			unread = true
			msgs[i].Read = true
		}
	}
	if unread {
		if _, err := v.messages.MarkThreadRead(ctx, threadID); err != nil {
			v.logger.Warn("failed to mark thread read", "thread_id", threadID, "error", err)
		}
	}
	return msgs, nil
}
