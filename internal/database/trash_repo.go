package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mixelka/smsfirewall/pkg/models"
)

// InsertTrashMessages archives messages in one transaction and fills their ids
func (db *DB) InsertTrashMessages(ctx context.Context, msgs []models.TrashedMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO trash_messages (original_message_id, sender, body, date, type, thread_id, read, deleted_at)
		VALUES (:original_message_id, :sender, :body, :date, :type, :thread_id, :read, :deleted_at)
	`
	for i := range msgs {
		result, err := tx.NamedExecContext(ctx, query, msgs[i])
		if err != nil {
			return fmt.Errorf("failed to insert trash message: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		msgs[i].ID = id
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trash messages: %w", err)
	}
	return nil
}

// ListTrash returns every archived message, newest first
func (db *DB) ListTrash(ctx context.Context) ([]models.TrashedMessage, error) {
	var msgs []models.TrashedMessage
	if err := db.SelectContext(ctx, &msgs, `SELECT * FROM trash_messages ORDER BY date DESC, id DESC`); err != nil {
		return nil, fmt.Errorf("failed to list trash: %w", err)
	}
	return msgs, nil
}

// GetTrashByThread returns the archived messages of a thread, oldest first
func (db *DB) GetTrashByThread(ctx context.Context, threadID int64) ([]models.TrashedMessage, error) {
	var msgs []models.TrashedMessage
	err := db.SelectContext(ctx, &msgs,
		`SELECT * FROM trash_messages WHERE thread_id = ? ORDER BY date ASC, id ASC`, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trash by thread: %w", err)
	}
	return msgs, nil
}

// DeleteTrashByIDs removes specific archive rows and returns how many were removed
func (db *DB) DeleteTrashByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(`DELETE FROM trash_messages WHERE id IN (?)`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to build delete query: %w", err)
	}

	return db.execCount(ctx, "failed to delete trash messages", db.Rebind(query), args...)
}

// DeleteTrashByThread removes the whole archive of a thread
func (db *DB) DeleteTrashByThread(ctx context.Context, threadID int64) (int64, error) {
	return db.execCount(ctx, "failed to delete trash thread", `DELETE FROM trash_messages WHERE thread_id = ?`, threadID)
}

// DeleteAllTrash empties the archive
func (db *DB) DeleteAllTrash(ctx context.Context) (int64, error) {
	return db.execCount(ctx, "failed to empty trash", `DELETE FROM trash_messages`)
}

// DeleteTrashOlderThan removes rows deleted before the cutoff (epoch millis)
func (db *DB) DeleteTrashOlderThan(ctx context.Context, deletedBefore int64) (int64, error) {
	return db.execCount(ctx, "failed to delete old trash", `DELETE FROM trash_messages WHERE deleted_at < ?`, deletedBefore)
}

func (db *DB) execCount(ctx context.Context, msg, query string, args ...any) (int64, error) {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", msg, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}
