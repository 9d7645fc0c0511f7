package platform

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/mixelka/smsfirewall/internal/database"
	"github.com/mixelka/smsfirewall/pkg/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Column names of the provider contract
const (
	colID       = "_id"
	colThreadID = "thread_id"
	colAddress  = "address"
	colBody     = "body"
	colDate     = "date"
	colType     = "type"
	colRead     = "read"
)

var selectColumns = colID + ", " + colThreadID + ", " + colAddress + ", " + colBody + ", " +
	colDate + ", " + colType + ", " + colRead

// SQLStore is the MessageStore adapter over the provider tables
type SQLStore struct {
	db     *sqlx.DB
	logger *slog.Logger

	mu        sync.Mutex
	nextSub   int
	listeners map[int]func()
}

// NewSQLStore opens the platform database at path and applies its schema
func NewSQLStore(ctx context.Context, path string, logger *slog.Logger) (*SQLStore, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, err
	}
	if err := database.ApplyMigrations(ctx, db.DB, migrationsFS, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate platform store: %w", err)
	}

	return &SQLStore{
		db:        db,
		logger:    logger.With("component", "platform"),
		listeners: make(map[int]func()),
	}, nil
}

// Close closes the underlying database
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// List returns every message, newest first
func (s *SQLStore) List(ctx context.Context) ([]models.Message, error) {
	return s.query(ctx, "SELECT "+selectColumns+" FROM sms ORDER BY "+colDate+" DESC, "+colID+" DESC")
}

// FindByID returns a single message
func (s *SQLStore) FindByID(ctx context.Context, id int64) (*models.Message, error) {
	var msg models.Message
	err := s.db.GetContext(ctx, &msg, "SELECT "+selectColumns+" FROM sms WHERE "+colID+" = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}

// FindByThread returns a conversation, oldest first
func (s *SQLStore) FindByThread(ctx context.Context, threadID int64) ([]models.Message, error) {
	return s.query(ctx, "SELECT "+selectColumns+" FROM sms WHERE "+colThreadID+" = ? ORDER BY "+colDate+" ASC, "+colID+" ASC", threadID)
}

// FindByAddress returns every message exchanged with address, oldest first
func (s *SQLStore) FindByAddress(ctx context.Context, address string) ([]models.Message, error) {
	return s.query(ctx, "SELECT "+selectColumns+" FROM sms WHERE "+colAddress+" = ? ORDER BY "+colDate+" ASC, "+colID+" ASC", address)
}

// Insert writes a message into the box collection. The row type is forced
// by the box and the thread is assigned from the address.
func (s *SQLStore) Insert(ctx context.Context, box models.Box, msg models.Message) (int64, error) {
	var msgType models.Direction
	switch box {
	case models.BoxInbox:
		msgType = models.DirectionInbound
	case models.BoxSent:
		msgType = models.DirectionOutbound
	default:
		return 0, fmt.Errorf("unknown box %q", box)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	threadID, err := threadFor(ctx, tx, msg.Address)
	if err != nil {
		return 0, err
	}

	result, err := tx.ExecContext(ctx,
		"INSERT INTO sms ("+colThreadID+", "+colAddress+", "+colBody+", "+colDate+", "+colType+", "+colRead+") VALUES (?, ?, ?, ?, ?, ?)",
		threadID, msg.Address, msg.Body, msg.Date, msgType, msg.Read,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit message: %w", err)
	}

	s.logger.Debug("message inserted", "box", box, "id", id, "thread_id", threadID)
	s.notify()
	return id, nil
}

// DeleteByID removes a message
func (s *SQLStore) DeleteByID(ctx context.Context, id int64) (int64, error) {
	return s.exec(ctx, "DELETE FROM sms WHERE "+colID+" = ?", id)
}

// DeleteByIDs removes a set of messages in one statement
func (s *SQLStore) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In("DELETE FROM sms WHERE "+colID+" IN (?)", ids)
	if err != nil {
		return 0, fmt.Errorf("failed to build delete query: %w", err)
	}
	return s.exec(ctx, s.db.Rebind(query), args...)
}

// DeleteByThread removes a whole conversation
func (s *SQLStore) DeleteByThread(ctx context.Context, threadID int64) (int64, error) {
	return s.exec(ctx, "DELETE FROM sms WHERE "+colThreadID+" = ?", threadID)
}

// MarkThreadRead marks every unread message of a thread as read
func (s *SQLStore) MarkThreadRead(ctx context.Context, threadID int64) (int64, error) {
	return s.exec(ctx, "UPDATE sms SET "+colRead+" = 1 WHERE "+colThreadID+" = ? AND "+colRead+" = 0", threadID)
}

// Subscribe registers a change listener
func (s *SQLStore) Subscribe(listener func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.listeners[id] = listener

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *SQLStore) notify() {
	s.mu.Lock()
	listeners := make([]func(), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l()
	}
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	var msgs []models.Message
	if err := s.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	return msgs, nil
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update messages: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		s.notify()
	}
	return rows, nil
}

func threadFor(ctx context.Context, tx *sqlx.Tx, address string) (int64, error) {
	if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO threads (address) VALUES (?)", address); err != nil {
		return 0, fmt.Errorf("failed to create thread: %w", err)
	}
	var id int64
	if err := tx.GetContext(ctx, &id, "SELECT _id FROM threads WHERE address = ?", address); err != nil {
		return 0, fmt.Errorf("failed to resolve thread: %w", err)
	}
	return id, nil
}
