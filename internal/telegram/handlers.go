package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/mixelka/smsfirewall/internal/compose"
	"github.com/mixelka/smsfirewall/internal/database"
	"github.com/mixelka/smsfirewall/internal/formatter"
	"github.com/mixelka/smsfirewall/internal/inbox"
)

// handleWords handles /words command
func (b *Bot) handleWords(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	words, err := b.db.ListBlockedWords(ctx)
	if err != nil {
		b.replyError(ctx, update, "read the blocklist", err)
		return
	}
	b.reply(ctx, update, b.formatter.FormatBlockedWords(words))
}

// handleBlock handles /block command
// Usage: /block term
func (b *Bot) handleBlock(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	term := commandArgs(update.Message.Text)
	if term == "" {
		b.reply(ctx, update, "Usage: <code>/block term</code>")
		return
	}

	word, err := b.db.AddBlockedWord(ctx, term)
	if err != nil {
		b.replyError(ctx, update, "add the term", err)
		return
	}

	b.logger.Info("term blocked", "id", word.ID)
	b.reply(ctx, update, fmt.Sprintf("Blocked <code>%s</code> (#%d)", escape(word.Word), word.ID))
}

// handleUnblock handles /unblock command
// Usage: /unblock id
func (b *Bot) handleUnblock(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	id, err := parseID(commandArgs(update.Message.Text))
	if err != nil {
		b.reply(ctx, update, "Usage: <code>/unblock id</code>, see /words")
		return
	}

	err = b.db.DeleteBlockedWord(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		b.reply(ctx, update, fmt.Sprintf("No blocked word #%d", id))
		return
	}
	if err != nil {
		b.replyError(ctx, update, "remove the term", err)
		return
	}

	b.logger.Info("term unblocked", "id", id)
	b.reply(ctx, update, fmt.Sprintf("Removed blocked word #%d", id))
}

// handleSpam handles /spam command. Every entry is its own message so its
// buttons can dismiss it.
func (b *Bot) handleSpam(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	spam, err := b.db.ListSpamMessages(ctx)
	if err != nil {
		b.replyError(ctx, update, "read the spam box", err)
		return
	}

	if len(spam) == 0 {
		b.reply(ctx, update, "Spam box is empty.")
		return
	}

	if len(spam) > maxSpamListed {
		b.reply(ctx, update, fmt.Sprintf("Spam box has %d messages, showing the newest %d.", len(spam), maxSpamListed))
		spam = spam[:maxSpamListed]
	}
	for _, m := range spam {
		b.sendMessageWithKeyboard(ctx, update.Message.Chat.ID, update.Message.MessageThreadID,
			b.formatter.FormatSpamMessage(m), formatter.BuildSpamKeyboard(m.ID))
	}
}

// handleInbox handles /inbox command
// Usage: /inbox [query], /inbox unread
func (b *Bot) handleInbox(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	args := commandArgs(update.Message.Text)
	filter := inbox.Filter{Query: args}
	if strings.EqualFold(args, "unread") {
		filter = inbox.Filter{UnreadOnly: true}
	}

	convs := b.inbox.Conversations(filter)
	text := b.formatter.FormatConversations(convs, b.inbox.UnreadTotal(), b.settings.ShowUnreadBadges())
	b.reply(ctx, update, text)
}

// handleThread handles /thread command
// Usage: /thread id
func (b *Bot) handleThread(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	threadID, err := parseID(commandArgs(update.Message.Text))
	if err != nil {
		b.reply(ctx, update, "Usage: <code>/thread id</code>, see /inbox")
		return
	}

	msgs, err := b.inbox.Thread(ctx, threadID)
	if err != nil {
		b.replyError(ctx, update, "read the conversation", err)
		return
	}
	b.reply(ctx, update, b.formatter.FormatThread(msgs))
}

// handleSend handles /send command
// Usage: /send number text
func (b *Bot) handleSend(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	address, body := splitArg(commandArgs(update.Message.Text))

	msg, err := b.sender.Send(ctx, address, body)
	if errors.Is(err, compose.ErrEmptyMessage) {
		b.reply(ctx, update, "Usage: <code>/send number text</code>")
		return
	}
	if err != nil {
		b.replyError(ctx, update, "send the message", err)
		return
	}
	b.reply(ctx, update, fmt.Sprintf("Sent to <b>%s</b> (thread %d)", escape(msg.Address), msg.ThreadID))
}

// handleDelete handles /delete command
// Usage: /delete thread_id
func (b *Bot) handleDelete(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	threadID, err := parseID(commandArgs(update.Message.Text))
	if err != nil {
		b.reply(ctx, update, "Usage: <code>/delete thread_id</code>, see /inbox")
		return
	}

	trashed, err := b.trash.SoftDeleteConversation(ctx, threadID)
	if err != nil {
		b.replyError(ctx, update, "delete the conversation", err)
		return
	}
	if len(trashed) == 0 {
		b.reply(ctx, update, fmt.Sprintf("Nothing to delete in thread %d", threadID))
		return
	}
	b.reply(ctx, update, fmt.Sprintf("Moved %d message(s) to the trash. /restore %d brings them back.", len(trashed), threadID))
}

// handleTrash handles /trash command
func (b *Bot) handleTrash(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	text, keyboard, err := b.trashView(ctx)
	if err != nil {
		b.replyError(ctx, update, "read the trash", err)
		return
	}
	b.sendMessageWithKeyboard(ctx, update.Message.Chat.ID, update.Message.MessageThreadID, text, keyboard)
}

// handleRestore handles /restore command
// Usage: /restore thread_id
func (b *Bot) handleRestore(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	threadID, err := parseID(commandArgs(update.Message.Text))
	if err != nil {
		b.reply(ctx, update, "Usage: <code>/restore thread_id</code>, see /trash")
		return
	}

	n, err := b.trash.RestoreConversation(ctx, threadID)
	if err != nil {
		b.replyError(ctx, update, "restore the conversation", err)
		return
	}
	b.reply(ctx, update, restoredText(n))
}

// handlePurge handles /purge command
// Usage: /purge thread_id, /purge all
func (b *Bot) handlePurge(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	args := commandArgs(update.Message.Text)
	if strings.EqualFold(args, "all") {
		b.sendMessageWithKeyboard(ctx, update.Message.Chat.ID, update.Message.MessageThreadID,
			"Delete everything in the trash forever?", formatter.BuildPurgeAllConfirmKeyboard())
		return
	}

	threadID, err := parseID(args)
	if err != nil {
		b.reply(ctx, update, "Usage: <code>/purge thread_id</code> or <code>/purge all</code>")
		return
	}

	n, err := b.trash.PurgeThread(ctx, threadID)
	if err != nil {
		b.replyError(ctx, update, "purge the conversation", err)
		return
	}
	b.reply(ctx, update, fmt.Sprintf("Deleted %d message(s) forever", n))
}

// handlePin handles /pin command
func (b *Bot) handlePin(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.toggleThread(ctx, update, "pin", b.settings.TogglePinned, "pinned", "unpinned")
}

// handleMute handles /mute command
func (b *Bot) handleMute(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.toggleThread(ctx, update, "mute", b.settings.ToggleMuted, "muted", "unmuted")
}

func (b *Bot) toggleThread(ctx context.Context, update *models.Update, command string, toggle func(int64) bool, on, off string) {
	threadID, err := parseID(commandArgs(update.Message.Text))
	if err != nil {
		b.reply(ctx, update, fmt.Sprintf("Usage: <code>/%s thread_id</code>", command))
		return
	}

	state := off
	if toggle(threadID) {
		state = on
	}
	// Overlay changes do not touch the message store, so nothing else triggers a recompute
	if err := b.inbox.Refresh(ctx); err != nil {
		b.logger.Warn("failed to refresh conversations", "error", err)
	}
	b.reply(ctx, update, fmt.Sprintf("Thread %d %s", threadID, state))
}

// handleSettings handles /settings command
// Usage: /settings, /settings badges on|off, /settings preview on|off, /settings background key
func (b *Bot) handleSettings(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	key, value := splitArg(commandArgs(update.Message.Text))

	switch strings.ToLower(key) {
	case "":
	case "badges", "preview":
		v, ok := parseSwitch(value)
		if !ok {
			b.reply(ctx, update, fmt.Sprintf("Usage: <code>/settings %s on|off</code>", key))
			return
		}
		if strings.EqualFold(key, "badges") {
			b.settings.SetShowUnreadBadges(v)
		} else {
			b.settings.SetNotificationContentVisible(v)
		}
	case "background":
		if err := b.settings.SetChatBackground(value); err != nil {
			b.reply(ctx, update, escape(err.Error()))
			return
		}
	default:
		b.reply(ctx, update, "Unknown setting. Use badges, preview or background.")
		return
	}

	b.reply(ctx, update, fmt.Sprintf("<b>Settings</b>\nUnread badges: %s\nMessage preview: %s\nBackground: %s",
		onOff(b.settings.ShowUnreadBadges()),
		onOff(b.settings.NotificationContentVisible()),
		b.settings.ChatBackground(),
	))
}

// trashView renders the trash listing with its buttons
func (b *Bot) trashView(ctx context.Context) (string, *models.InlineKeyboardMarkup, error) {
	convs, err := b.trash.Conversations(ctx)
	if err != nil {
		return "", nil, err
	}
	return b.formatter.FormatTrash(convs), formatter.BuildTrashKeyboard(convs), nil
}

func restoredText(n int) string {
	if n == 0 {
		return "Nothing was restored"
	}
	return fmt.Sprintf("Restored %d message(s)", n)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func escape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	return strings.ReplaceAll(s, ">", "&gt;")
}
