package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mixelka/smsfirewall/pkg/models"
)

// CreateSpamMessage stores a diverted message and fills its id
func (db *DB) CreateSpamMessage(ctx context.Context, msg *models.SpamMessage) error {
	result, err := db.ExecContext(ctx,
		`INSERT INTO spam_messages (sender, body, date) VALUES (?, ?, ?)`,
		msg.Sender, msg.Body, msg.Date,
	)
	if err != nil {
		return fmt.Errorf("failed to create spam message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	msg.ID = id
	return nil
}

// ListSpamMessages returns the spam box, newest first
func (db *DB) ListSpamMessages(ctx context.Context) ([]models.SpamMessage, error) {
	var msgs []models.SpamMessage
	if err := db.SelectContext(ctx, &msgs, `SELECT * FROM spam_messages ORDER BY date DESC, id DESC`); err != nil {
		return nil, fmt.Errorf("failed to list spam messages: %w", err)
	}
	return msgs, nil
}

// GetSpamMessage returns a spam message by ID
func (db *DB) GetSpamMessage(ctx context.Context, id int64) (*models.SpamMessage, error) {
	var msg models.SpamMessage
	err := db.GetContext(ctx, &msg, `SELECT * FROM spam_messages WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get spam message: %w", err)
	}
	return &msg, nil
}

// DeleteSpamMessage removes a spam message by ID
func (db *DB) DeleteSpamMessage(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM spam_messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete spam message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertTrustedNumber marks a sender as trusted. Repeated calls keep one row.
func (db *DB) UpsertTrustedNumber(ctx context.Context, phone string) error {
	_, err := db.ExecContext(ctx, `INSERT OR REPLACE INTO trusted_numbers (phone_number) VALUES (?)`, phone)
	if err != nil {
		return fmt.Errorf("failed to upsert trusted number: %w", err)
	}
	return nil
}

// IsTrusted reports whether a sender was promoted to trusted
func (db *DB) IsTrusted(ctx context.Context, phone string) (bool, error) {
	var n int
	if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM trusted_numbers WHERE phone_number = ?`, phone); err != nil {
		return false, fmt.Errorf("failed to check trusted number: %w", err)
	}
	return n > 0, nil
}

// ListTrustedNumbers returns all trusted senders
func (db *DB) ListTrustedNumbers(ctx context.Context) ([]models.TrustedNumber, error) {
	var numbers []models.TrustedNumber
	if err := db.SelectContext(ctx, &numbers, `SELECT * FROM trusted_numbers ORDER BY phone_number`); err != nil {
		return nil, fmt.Errorf("failed to list trusted numbers: %w", err)
	}
	return numbers, nil
}
