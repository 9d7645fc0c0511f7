package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/mixelka/smsfirewall/internal/actions"
	"github.com/mixelka/smsfirewall/internal/compose"
	"github.com/mixelka/smsfirewall/internal/database"
	"github.com/mixelka/smsfirewall/internal/formatter"
	"github.com/mixelka/smsfirewall/internal/inbox"
	"github.com/mixelka/smsfirewall/internal/parser"
	"github.com/mixelka/smsfirewall/internal/platform"
	"github.com/mixelka/smsfirewall/internal/settings"
	"github.com/mixelka/smsfirewall/internal/trash"
	appmodels "github.com/mixelka/smsfirewall/pkg/models"
)

// maxSpamListed caps how many spam entries /spam posts at once
const maxSpamListed = 20

// Bot represents the Telegram bot. It is both the notification surface
// and the remote control for the firewall, bound to a single chat.
type Bot struct {
	bot          *bot.Bot
	chatID       int64
	db           *database.DB
	messages     platform.MessageStore
	settings     *settings.Store
	codeDetector *parser.CodeDetector
	formatter    *formatter.TelegramFormatter
	logger       *slog.Logger

	trash   *trash.Manager
	actions *actions.Handler
	inbox   *inbox.ViewModel
	sender  *compose.Sender
}

// BotDeps dependencies for creating a bot
type BotDeps struct {
	Token        string
	ChatID       int64
	DB           *database.DB
	Messages     platform.MessageStore
	Settings     *settings.Store
	CodeDetector *parser.CodeDetector
	Formatter    *formatter.TelegramFormatter
	Logger       *slog.Logger
}

// Services are the components driven by commands and callbacks. They are
// set after construction because some of them notify through the bot.
type Services struct {
	Trash   *trash.Manager
	Actions *actions.Handler
	Inbox   *inbox.ViewModel
	Sender  *compose.Sender
}

// NewBot creates a new Telegram bot
func NewBot(deps BotDeps) (*Bot, error) {
	b := &Bot{
		chatID:       deps.ChatID,
		db:           deps.DB,
		messages:     deps.Messages,
		settings:     deps.Settings,
		codeDetector: deps.CodeDetector,
		formatter:    deps.Formatter,
		logger:       deps.Logger.With("component", "telegram_bot"),
	}

	opts := []bot.Option{
		bot.WithMiddlewares(b.chatOnly),
		bot.WithDefaultHandler(b.defaultHandler),
	}

	tgBot, err := bot.New(deps.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	b.bot = tgBot
	b.registerHandlers()

	return b, nil
}

// SetServices wires the components behind commands and callbacks
func (b *Bot) SetServices(s Services) {
	b.trash = s.Trash
	b.actions = s.Actions
	b.inbox = s.Inbox
	b.sender = s.Sender
}

// registerHandlers registers command handlers
func (b *Bot) registerHandlers() {
	commands := map[string]bot.HandlerFunc{
		"start":    b.handleHelp,
		"help":     b.handleHelp,
		"words":    b.handleWords,
		"block":    b.handleBlock,
		"unblock":  b.handleUnblock,
		"spam":     b.handleSpam,
		"inbox":    b.handleInbox,
		"thread":   b.handleThread,
		"send":     b.handleSend,
		"delete":   b.handleDelete,
		"trash":    b.handleTrash,
		"restore":  b.handleRestore,
		"purge":    b.handlePurge,
		"pin":      b.handlePin,
		"mute":     b.handleMute,
		"settings": b.handleSettings,
	}
	for pattern, handler := range commands {
		b.bot.RegisterHandler(bot.HandlerTypeMessageText, pattern, bot.MatchTypeCommandStartOnly, handler)
	}
	b.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, b.handleCallback)
}

// Start starts the bot
func (b *Bot) Start(ctx context.Context) {
	b.logger.Info("starting telegram bot", "chat_id", b.chatID)
	b.bot.Start(ctx)
}

// Notify posts a notification to the bound chat and returns the Telegram
// message id, which is what Dismiss later takes
func (b *Bot) Notify(ctx context.Context, n appmodels.Notification) (string, error) {
	text := b.formatter.FormatNotification(n)
	keyboard := formatter.BuildNotificationKeyboard(n)

	msg, err := b.sendMessageWithKeyboard(ctx, b.chatID, 0, text, keyboard)
	if err != nil {
		return "", fmt.Errorf("failed to send notification: %w", err)
	}
	return strconv.Itoa(msg.ID), nil
}

// Dismiss deletes a notification message
func (b *Bot) Dismiss(ctx context.Context, id string) error {
	msgID, err := strconv.Atoi(id)
	if err != nil {
		return fmt.Errorf("invalid notification id %q: %w", id, err)
	}
	if err := b.deleteMessage(ctx, b.chatID, msgID); err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

// chatOnly drops every update that does not come from the bound chat
func (b *Bot) chatOnly(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
		if chatID := updateChatID(update); chatID != b.chatID {
			b.logger.Debug("ignoring update from foreign chat", "chat_id", chatID, "update_id", update.ID)
			return
		}
		next(ctx, tgBot, update)
	}
}

// defaultHandler handles unknown messages
func (b *Bot) defaultHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	if update.Message.Text != "" && update.Message.Text[0] == '/' {
		b.logger.Debug("unknown command", "text", update.Message.Text)
	}
}

// handleHelp handles /start and /help
func (b *Bot) handleHelp(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	text := `<b>SMS firewall</b>

Incoming SMS are checked against the blocklist. Matches go to the spam box, everything else to the inbox.

<b>Blocklist:</b>
/words - show blocked words
/block term - add a term
/unblock id - remove a term

<b>Messages:</b>
/spam - show the spam box
/inbox [query] - list conversations
/thread id - show a conversation
/send number text - send a message
/pin id, /mute id - toggle a conversation

<b>Trash:</b>
/delete id - move a conversation to the trash
/trash - show the trash
/restore id - restore a conversation
/purge id|all - delete forever

/settings [badges|preview|background value]`

	b.sendMessage(ctx, update.Message.Chat.ID, update.Message.MessageThreadID, text)
}
