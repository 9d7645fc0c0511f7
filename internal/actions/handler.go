// Package actions handles the buttons attached to notifications.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mixelka/smsfirewall/internal/database"
	"github.com/mixelka/smsfirewall/internal/notify"
	"github.com/mixelka/smsfirewall/internal/platform"
	"github.com/mixelka/smsfirewall/internal/worker"
	"github.com/mixelka/smsfirewall/pkg/models"
)

var (
	// ErrStoreWriteFailed is returned when the inbox insert had no effect
	ErrStoreWriteFailed = errors.New("message store write had no effect")
	// ErrAlreadyHandled is returned when the spam row was already recovered or deleted
	ErrAlreadyHandled = errors.New("spam message already handled")
)

// Store is the part of the local store the handler touches
type Store interface {
	UpsertTrustedNumber(ctx context.Context, phone string) error
	GetSpamMessage(ctx context.Context, id int64) (*models.SpamMessage, error)
	DeleteSpamMessage(ctx context.Context, id int64) error
}

// TrustRequest identifies the message being recovered
type TrustRequest struct {
	Sender         string
	Body           string
	NotificationID string
	// SpamID is the spam box row to drop once the message is recovered, 0 if none
	SpamID int64
}

// TrustResult reports what TrustSender did
type TrustResult struct {
	MessageID   int64
	SpamRemoved bool
	Dismissed   bool
}

// Handler promotes senders out of the spam box
type Handler struct {
	store    Store
	messages platform.MessageStore
	roles    platform.RoleChecker
	notifier notify.Notifier
	pool     *worker.Pool
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler creates a notification action handler
func NewHandler(store Store, messages platform.MessageStore, roles platform.RoleChecker, notifier notify.Notifier, pool *worker.Pool, logger *slog.Logger) *Handler {
	return &Handler{
		store:    store,
		messages: messages,
		roles:    roles,
		notifier: notifier,
		pool:     pool,
		logger:   logger.With("component", "actions"),
		now:      time.Now,
	}
}

// TrustSender marks the sender trusted, recovers the message into the
// inbox as unread and dismisses the notification. The trusted row stays
// even when the inbox insert fails.
func (h *Handler) TrustSender(ctx context.Context, req TrustRequest) (TrustResult, error) {
	if err := platform.RequireDefaultHandler(ctx, h.roles); err != nil {
		return TrustResult{}, err
	}

	// Runs to completion under a lease even if the caller goes away. The
	// action queue has one consumer, so two presses on the same spam row
	// are checked one after the other.
	detached := context.WithoutCancel(ctx)
	return worker.CallValue(detached, h.pool, worker.QueueAction, "trust_sender", func(ctx context.Context) (TrustResult, error) {
		return h.trust(ctx, req)
	})
}

func (h *Handler) trust(ctx context.Context, req TrustRequest) (TrustResult, error) {
	var res TrustResult
	logger := h.logger.With("sender", req.Sender)

	if req.SpamID != 0 {
		_, err := h.store.GetSpamMessage(ctx, req.SpamID)
		if errors.Is(err, database.ErrNotFound) {
			logger.Info("spam message already handled", "spam_id", req.SpamID)
			return res, ErrAlreadyHandled
		}
		if err != nil {
			return res, fmt.Errorf("failed to read spam message: %w", err)
		}
	}

	if err := h.store.UpsertTrustedNumber(ctx, req.Sender); err != nil {
		return res, fmt.Errorf("failed to trust sender: %w", err)
	}

	id, err := h.messages.Insert(ctx, models.BoxInbox, models.Message{
		Address:   req.Sender,
		Body:      req.Body,
		Date:      h.now().UnixMilli(),
		Direction: models.DirectionInbound,
		Read:      false,
	})
	if err != nil {
		return res, fmt.Errorf("failed to recover message: %w", err)
	}
	if id == 0 {
		return res, ErrStoreWriteFailed
	}
	res.MessageID = id

	if req.SpamID != 0 {
		err := h.store.DeleteSpamMessage(ctx, req.SpamID)
		switch {
		case err == nil:
			res.SpamRemoved = true
		case errors.Is(err, database.ErrNotFound):
		default:
			logger.Warn("failed to remove recovered spam", "spam_id", req.SpamID, "error", err)
		}
	}

	if req.NotificationID != "" {
		if err := h.notifier.Dismiss(ctx, req.NotificationID); err != nil {
			logger.Warn("failed to dismiss notification", "notification_id", req.NotificationID, "error", err)
		} else {
			res.Dismissed = true
		}
	}

	logger.Info("sender trusted", "message_id", id, "spam_id", req.SpamID)
	return res, nil
}
