// Package intake classifies delivered messages and commits each one to either
// the active inbox or the spam box.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mixelka/smsfirewall/internal/classifier"
	"github.com/mixelka/smsfirewall/internal/notify"
	"github.com/mixelka/smsfirewall/internal/parser"
	"github.com/mixelka/smsfirewall/internal/platform"
	"github.com/mixelka/smsfirewall/internal/worker"
	"github.com/mixelka/smsfirewall/pkg/models"
)

// UnknownSender is used when the first fragment carries no address
const UnknownSender = "Unknown"

// ErrEmptyEvent is returned for a delivery event without fragments
var ErrEmptyEvent = errors.New("delivery event has no fragments")

// Store is the part of the local store intake reads and writes
type Store interface {
	BlockedTerms(ctx context.Context) ([]string, error)
	IsTrusted(ctx context.Context, phone string) (bool, error)
	CreateSpamMessage(ctx context.Context, msg *models.SpamMessage) error
}

// Preferences exposes the settings intake honours
type Preferences interface {
	NotificationContentVisible() bool
}

// Options tune the pipeline
type Options struct {
	// NotifySpam raises a notification with a trust action for captured spam
	NotifySpam bool
	// TrustedBypass delivers messages from trusted senders without checking the blocklist
	TrustedBypass bool
}

// Outcome describes what a single delivery event produced
type Outcome struct {
	Verdict        models.Verdict
	Sender         string
	MatchedTerm    string
	Trusted        bool
	SpamID         int64
	MessageID      int64
	NotificationID string
}

// Pipeline processes delivery events
type Pipeline struct {
	store    Store
	messages platform.MessageStore
	notifier notify.Notifier
	prefs    Preferences
	codes    *parser.CodeDetector
	pool     *worker.Pool
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a pipeline
func New(
	store Store,
	messages platform.MessageStore,
	notifier notify.Notifier,
	prefs Preferences,
	codes *parser.CodeDetector,
	pool *worker.Pool,
	opts Options,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		store:    store,
		messages: messages,
		notifier: notifier,
		prefs:    prefs,
		codes:    codes,
		pool:     pool,
		opts:     opts,
		logger:   logger.With("component", "intake"),
		now:      time.Now,
	}
}

// Handle queues an event for processing and returns once it is queued. The
// task runs on a detached context so it completes even if the source goes
// away. An error means the event was not queued and must be delivered again.
func (p *Pipeline) Handle(event models.DeliveryEvent) error {
	if p.pool == nil {
		_, err := p.Process(context.Background(), event)
		return err
	}

	err := p.pool.Submit(context.Background(), worker.QueueIntake, "deliver", func(ctx context.Context) error {
		_, err := p.Process(ctx, event)
		return err
	})
	if err != nil {
		p.logger.Error("failed to queue delivery event", "event_id", event.ID, "error", err)
		return fmt.Errorf("failed to queue delivery event: %w", err)
	}
	return nil
}

// Process runs one delivery event through classification and persistence.
// Exactly one of the spam box or the inbox is written, and only once.
func (p *Pipeline) Process(ctx context.Context, event models.DeliveryEvent) (Outcome, error) {
	if len(event.Fragments) == 0 {
		return Outcome{}, ErrEmptyEvent
	}

	sender, body, date := p.merge(event.Fragments)
	out := Outcome{Verdict: models.VerdictClean, Sender: sender}
	logger := p.logger.With("event_id", event.ID, "sender", sender)

	if p.opts.TrustedBypass {
		trusted, err := p.store.IsTrusted(ctx, sender)
		if err != nil {
			logger.Warn("failed to check trusted senders", "error", err)
		}
		out.Trusted = trusted
	}

	if !out.Trusted {
		terms, err := p.store.BlockedTerms(ctx)
		if err != nil {
			// Fail open to clean
			logger.Warn("classification unavailable, treating as clean", "error", err)
		} else if term, ok := classifier.Match(body, terms); ok {
			out.Verdict = models.VerdictSpam
			out.MatchedTerm = term
		}
	}

	if out.Verdict == models.VerdictSpam {
		return p.commitSpam(ctx, logger, out, body, date)
	}
	return p.commitClean(ctx, logger, out, body, date)
}

func (p *Pipeline) merge(fragments []models.Fragment) (string, string, int64) {
	var b strings.Builder
	for _, f := range fragments {
		b.WriteString(f.Body)
	}

	sender := strings.TrimSpace(fragments[0].Sender)
	if sender == "" {
		sender = UnknownSender
	}

	date := fragments[0].Timestamp
	if date == 0 {
		date = p.now().UnixMilli()
	}
	return sender, b.String(), date
}

func (p *Pipeline) commitSpam(ctx context.Context, logger *slog.Logger, out Outcome, body string, date int64) (Outcome, error) {
	spam := &models.SpamMessage{Sender: out.Sender, Body: body, Date: date}
	if err := p.store.CreateSpamMessage(ctx, spam); err != nil {
		return out, fmt.Errorf("failed to store spam: %w", err)
	}
	out.SpamID = spam.ID
	logger.Info("spam captured", "spam_id", spam.ID, "term", out.MatchedTerm)

	if !p.opts.NotifySpam {
		return out, nil
	}

	n := models.Notification{
		Title:  "Spam blocked",
		Body:   "Message moved to spam",
		Sender: out.Sender,
		Actions: []models.NotificationAction{{
			Label:    "Trust sender",
			Callback: models.CallbackData{Action: models.CallbackTrust, ID: spam.ID},
		}},
	}
	if p.prefs.NotificationContentVisible() {
		n.Body = body
	}

	id, err := p.notifier.Notify(ctx, n)
	if err != nil {
		logger.Warn("failed to notify spam", "error", err)
		return out, nil
	}
	out.NotificationID = id
	return out, nil
}

func (p *Pipeline) commitClean(ctx context.Context, logger *slog.Logger, out Outcome, body string, date int64) (Outcome, error) {
	id, err := p.messages.Insert(ctx, models.BoxInbox, models.Message{
		Address:   out.Sender,
		Body:      body,
		Date:      date,
		Direction: models.DirectionInbound,
		Read:      false,
	})
	if err != nil {
		return out, fmt.Errorf("failed to store message: %w", err)
	}
	if id == 0 {
		logger.Warn("inbox insert had no effect")
		return out, nil
	}
	out.MessageID = id
	logger.Info("message delivered", "message_id", id, "size", len(body), "trusted", out.Trusted)

	n := models.Notification{
		Title:     "New message",
		Body:      "New message",
		Sender:    out.Sender,
		MessageID: id,
		Actions: []models.NotificationAction{
			{Label: "Mark read", Callback: models.CallbackData{Action: models.CallbackMarkRead, ID: id}},
			{Label: "Delete", Callback: models.CallbackData{Action: models.CallbackDeleteMessage, ID: id}},
		},
	}
	if p.prefs.NotificationContentVisible() {
		n.Title = out.Sender
		n.Body = body
		if p.codes != nil {
			n.Codes = p.codes.DetectCodes(body)
		}
	}

	nid, err := p.notifier.Notify(ctx, n)
	if err != nil {
		logger.Warn("failed to notify", "error", err)
		return out, nil
	}
	out.NotificationID = nid
	return out, nil
}
