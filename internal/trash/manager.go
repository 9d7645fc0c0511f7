// Package trash moves messages between the active store and the trash archive.
package trash

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mixelka/smsfirewall/internal/platform"
	"github.com/mixelka/smsfirewall/internal/worker"
	"github.com/mixelka/smsfirewall/pkg/models"
)

// Store is the trash archive
type Store interface {
	InsertTrashMessages(ctx context.Context, msgs []models.TrashedMessage) error
	ListTrash(ctx context.Context) ([]models.TrashedMessage, error)
	GetTrashByThread(ctx context.Context, threadID int64) ([]models.TrashedMessage, error)
	DeleteTrashByIDs(ctx context.Context, ids []int64) (int64, error)
	DeleteTrashByThread(ctx context.Context, threadID int64) (int64, error)
	DeleteAllTrash(ctx context.Context) (int64, error)
	DeleteTrashOlderThan(ctx context.Context, deletedBefore int64) (int64, error)
}

// Manager implements soft delete, restore and purge
type Manager struct {
	store    Store
	messages platform.MessageStore
	roles    platform.RoleChecker
	pool     *worker.Pool
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager creates a trash manager. With a nil pool operations run on the caller goroutine.
func NewManager(store Store, messages platform.MessageStore, roles platform.RoleChecker, pool *worker.Pool, logger *slog.Logger) *Manager {
	return &Manager{
		store:    store,
		messages: messages,
		roles:    roles,
		pool:     pool,
		logger:   logger.With("component", "trash"),
		now:      time.Now,
	}
}

// SoftDeleteMessage archives a single message and removes it from the
// active store. It returns nil when the platform removed nothing.
func (m *Manager) SoftDeleteMessage(ctx context.Context, msg models.Message) (*models.TrashedMessage, error) {
	if err := platform.RequireDefaultHandler(ctx, m.roles); err != nil {
		return nil, err
	}

	return worker.CallValue(ctx, m.pool, worker.QueueArchive, "soft_delete_message", func(ctx context.Context) (*models.TrashedMessage, error) {
		archived, err := m.archive(ctx, []models.Message{msg})
		if err != nil || len(archived) == 0 {
			return nil, err
		}
		return &archived[0], nil
	})
}

// SoftDeleteConversation archives every message of a thread and removes
// them from the active store in one pass. An empty result means nothing
// was deleted.
func (m *Manager) SoftDeleteConversation(ctx context.Context, threadID int64) ([]models.TrashedMessage, error) {
	if err := platform.RequireDefaultHandler(ctx, m.roles); err != nil {
		return nil, err
	}

	trashed, err := worker.CallValue(ctx, m.pool, worker.QueueArchive, "soft_delete_conversation", func(ctx context.Context) ([]models.TrashedMessage, error) {
		msgs, err := m.messages.FindByThread(ctx, threadID)
		if err != nil {
			return nil, fmt.Errorf("failed to read thread: %w", err)
		}
		if len(msgs) == 0 {
			return []models.TrashedMessage{}, nil
		}
		return m.archive(ctx, msgs)
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("conversation moved to trash", "thread_id", threadID, "count", len(trashed))
	return trashed, nil
}

// archive writes trash rows first, then deletes the originals by id. The
// fresh trash rows are removed again for anything that is still active.
// Once the trash rows exist, everything runs to completion even if ctx is
// cancelled.
func (m *Manager) archive(ctx context.Context, msgs []models.Message) ([]models.TrashedMessage, error) {
	deletedAt := m.now().UnixMilli()
	records := make([]models.TrashedMessage, len(msgs))
	ids := make([]int64, len(msgs))
	for i, msg := range msgs {
		records[i] = models.Archive(msg, deletedAt)
		ids[i] = msg.ID
	}

	if err := m.store.InsertTrashMessages(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to archive messages: %w", err)
	}

	ctx = context.WithoutCancel(ctx)
	removed, err := m.messages.DeleteByIDs(ctx, ids)
	if err != nil {
		m.compensate(ctx, records)
		return nil, fmt.Errorf("failed to delete active messages: %w", err)
	}
	if removed == 0 {
		m.compensate(ctx, records)
		return []models.TrashedMessage{}, nil
	}
	if removed == int64(len(records)) {
		return records, nil
	}

	// Partial delete: keep archive rows only for originals that are gone
	var kept, stale []models.TrashedMessage
	for _, rec := range records {
		_, err := m.messages.FindByID(ctx, rec.OriginalMessageID)
		switch {
		case err == nil:
			stale = append(stale, rec)
		case errors.Is(err, platform.ErrNotFound):
			kept = append(kept, rec)
		default:
			m.logger.Warn("failed to check archived message, keeping it", "trash_id", rec.ID, "error", err)
			kept = append(kept, rec)
		}
	}
	m.compensate(ctx, stale)
	return kept, nil
}

func (m *Manager) compensate(ctx context.Context, records []models.TrashedMessage) {
	if len(records) == 0 {
		return
	}
	ids := make([]int64, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	if _, err := m.store.DeleteTrashByIDs(ctx, ids); err != nil {
		m.logger.Error("failed to roll back trash rows", "count", len(ids), "error", err)
	}
}

// RestoreConversation re-inserts every archived message of a thread into
// its direction's collection and returns how many were restored. Each
// archive row is removed right after its insert, so a cancelled or failed
// restore can be retried without duplicating what already came back.
func (m *Manager) RestoreConversation(ctx context.Context, threadID int64) (int, error) {
	if err := platform.RequireDefaultHandler(ctx, m.roles); err != nil {
		return 0, err
	}

	restored, err := worker.CallValue(ctx, m.pool, worker.QueueRestore, "restore_conversation", func(ctx context.Context) (int, error) {
		records, err := m.store.GetTrashByThread(ctx, threadID)
		if err != nil {
			return 0, fmt.Errorf("failed to read trash: %w", err)
		}

		restored := 0
		for _, rec := range records {
			if err := ctx.Err(); err != nil {
				return restored, err
			}
			ok, err := m.restoreOne(ctx, rec)
			if err != nil {
				return restored, err
			}
			if ok {
				restored++
			}
		}
		return restored, nil
	})

	m.logger.Info("conversation restored", "thread_id", threadID, "count", restored)
	return restored, err
}

// restoreOne moves one archive row back. It reports false when the platform
// did not take the insert; the row then stays in the archive.
func (m *Manager) restoreOne(ctx context.Context, rec models.TrashedMessage) (bool, error) {
	id, err := m.messages.Insert(ctx, models.BoxFor(rec.Direction), rec.Restored())
	if err != nil || id == 0 {
		m.logger.Warn("failed to restore message", "thread_id", rec.ThreadID, "trash_id", rec.ID, "error", err)
		return false, nil
	}

	// The insert is committed, the archive row has to go with it
	detached := context.WithoutCancel(ctx)
	if _, err := m.store.DeleteTrashByIDs(detached, []int64{rec.ID}); err != nil {
		if _, undoErr := m.messages.DeleteByID(detached, id); undoErr != nil {
			m.logger.Error("failed to undo restored message", "message_id", id, "trash_id", rec.ID, "error", undoErr)
		}
		return false, fmt.Errorf("failed to clear restored trash row: %w", err)
	}
	return true, nil
}

// PurgeThread permanently removes the archive of one thread
func (m *Manager) PurgeThread(ctx context.Context, threadID int64) (int64, error) {
	n, err := m.store.DeleteTrashByThread(ctx, threadID)
	if err != nil {
		return 0, err
	}
	m.logger.Info("trash thread purged", "thread_id", threadID, "count", n)
	return n, nil
}

// PurgeAll permanently empties the archive
func (m *Manager) PurgeAll(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteAllTrash(ctx)
	if err != nil {
		return 0, err
	}
	m.logger.Info("trash emptied", "count", n)
	return n, nil
}

// PurgeOlderThan removes archive rows deleted more than age ago
func (m *Manager) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := m.now().Add(-age).UnixMilli()
	n, err := m.store.DeleteTrashOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Info("expired trash purged", "count", n)
	}
	return n, nil
}

// Conversations groups the archive by thread, most recently deleted first
func (m *Manager) Conversations(ctx context.Context) ([]models.TrashConversation, error) {
	records, err := m.store.ListTrash(ctx)
	if err != nil {
		return nil, err
	}

	index := make(map[int64]int)
	var out []models.TrashConversation
	for _, rec := range records {
		i, ok := index[rec.ThreadID]
		if !ok {
			// Records are newest first, so the first sender seen names the thread
			index[rec.ThreadID] = len(out)
			out = append(out, models.TrashConversation{
				ThreadID:      rec.ThreadID,
				DisplayName:   rec.Sender,
				MessageCount:  1,
				LastDeletedAt: rec.DeletedAt,
			})
			continue
		}
		out[i].MessageCount++
		if rec.DeletedAt > out[i].LastDeletedAt {
			out[i].LastDeletedAt = rec.DeletedAt
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].LastDeletedAt > out[b].LastDeletedAt
	})
	return out, nil
}
