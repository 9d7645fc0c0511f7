// Package compose records outgoing messages in the sent collection.
package compose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mixelka/smsfirewall/internal/platform"
	"github.com/mixelka/smsfirewall/pkg/models"
)

var (
	// ErrEmptyMessage is returned for a blank body or address
	ErrEmptyMessage = errors.New("address and body are required")
	// ErrNotStored is returned when the sent insert had no effect
	ErrNotStored = errors.New("message was not stored")
)

// Sender writes outbound messages
type Sender struct {
	messages platform.MessageStore
	roles    platform.RoleChecker
	logger   *slog.Logger
	now      func() time.Time
}

// NewSender creates a sender
func NewSender(messages platform.MessageStore, roles platform.RoleChecker, logger *slog.Logger) *Sender {
	return &Sender{
		messages: messages,
		roles:    roles,
		logger:   logger.With("component", "compose"),
		now:      time.Now,
	}
}

// Send stores body as an outbound message to address, marked read
func (s *Sender) Send(ctx context.Context, address, body string) (*models.Message, error) {
	address = strings.TrimSpace(address)
	if address == "" || strings.TrimSpace(body) == "" {
		return nil, ErrEmptyMessage
	}
	if err := platform.RequireDefaultHandler(ctx, s.roles); err != nil {
		return nil, err
	}

	msg := models.Message{
		Address:   address,
		Body:      body,
		Date:      s.now().UnixMilli(),
		Direction: models.DirectionOutbound,
		Read:      true,
	}
	id, err := s.messages.Insert(ctx, models.BoxSent, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	if id == 0 {
		return nil, ErrNotStored
	}

	stored, err := s.messages.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load sent message: %w", err)
	}
	s.logger.Info("message sent", "thread_id", stored.ThreadID, "size", len(body))
	return stored, nil
}
