package database

import (
	"context"
	"fmt"

	"github.com/mixelka/smsfirewall/pkg/models"
)

// AddBlockedWord stores a new blocklist term. Duplicates are allowed.
func (db *DB) AddBlockedWord(ctx context.Context, word string) (*models.BlockedWord, error) {
	result, err := db.ExecContext(ctx, `INSERT INTO blocked_words (word) VALUES (?)`, word)
	if err != nil {
		return nil, fmt.Errorf("failed to add blocked word: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return &models.BlockedWord{ID: id, Word: word}, nil
}

// DeleteBlockedWord removes a term by id
func (db *DB) DeleteBlockedWord(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM blocked_words WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete blocked word: %w", err)
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

// ListBlockedWords returns all terms, newest first
func (db *DB) ListBlockedWords(ctx context.Context) ([]models.BlockedWord, error) {
	var words []models.BlockedWord
	if err := db.SelectContext(ctx, &words, `SELECT * FROM blocked_words ORDER BY id DESC`); err != nil {
		return nil, fmt.Errorf("failed to list blocked words: %w", err)
	}
	return words, nil
}

// BlockedTerms returns a snapshot of the raw terms for classification
func (db *DB) BlockedTerms(ctx context.Context) ([]string, error) {
	var terms []string
	if err := db.SelectContext(ctx, &terms, `SELECT word FROM blocked_words ORDER BY id DESC`); err != nil {
		return nil, fmt.Errorf("failed to read blocked terms: %w", err)
	}
	return terms, nil
}
