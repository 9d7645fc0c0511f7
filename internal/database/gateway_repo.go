package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetGatewayCursor returns the last processed UID for a gateway mailbox
func (db *DB) GetGatewayCursor(ctx context.Context, mailbox string) (uint32, error) {
	var uid uint32
	err := db.GetContext(ctx, &uid, `SELECT value FROM gateway_state WHERE key = ?`, mailbox)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get gateway cursor: %w", err)
	}
	return uid, nil
}

// SetGatewayCursor updates the last processed UID
func (db *DB) SetGatewayCursor(ctx context.Context, mailbox string, uid uint32) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO gateway_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, mailbox, uid)
	if err != nil {
		return fmt.Errorf("failed to set gateway cursor: %w", err)
	}
	return nil
}
