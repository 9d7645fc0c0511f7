package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/mixelka/smsfirewall/internal/actions"
	"github.com/mixelka/smsfirewall/internal/database"
	"github.com/mixelka/smsfirewall/internal/formatter"
	"github.com/mixelka/smsfirewall/internal/platform"
	appmodels "github.com/mixelka/smsfirewall/pkg/models"
)

// handleCallback handles inline button callbacks
func (b *Bot) handleCallback(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	callback := update.CallbackQuery
	if callback == nil {
		return
	}

	data, err := formatter.DecodeCallback(callback.Data)
	if err != nil {
		b.logger.Error("failed to decode callback", "error", err, "data", callback.Data)
		b.answerCallback(ctx, callback.ID, "Error", false)
		return
	}

	switch data.Action {
	case appmodels.CallbackTrust:
		b.handleTrust(ctx, callback, data)
	case appmodels.CallbackDeleteSpam:
		b.handleDeleteSpam(ctx, callback, data)
	case appmodels.CallbackRestore:
		b.handleRestoreCallback(ctx, callback, data)
	case appmodels.CallbackPurge:
		b.handlePurgeCallback(ctx, callback, data)
	case appmodels.CallbackPurgeAll:
		b.handlePurgeAll(ctx, callback, data)
	case appmodels.CallbackPurgeAllCancel:
		b.refreshTrash(ctx, callback)
		b.answerCallback(ctx, callback.ID, "Cancelled", false)
	case appmodels.CallbackCopyCode:
		b.handleCopyCode(ctx, callback, data)
	case appmodels.CallbackMarkRead:
		b.handleMarkRead(ctx, callback, data)
	case appmodels.CallbackDeleteMessage:
		b.handleDeleteMessage(ctx, callback, data)
	default:
		b.answerCallback(ctx, callback.ID, "Unknown action", false)
	}
}

// handleTrust promotes the sender of a spam entry. The message holding the
// button is the notification that gets dismissed.
func (b *Bot) handleTrust(ctx context.Context, callback *models.CallbackQuery, data appmodels.CallbackData) {
	spam, err := b.db.GetSpamMessage(ctx, data.ID)
	if errors.Is(err, database.ErrNotFound) {
		b.answerCallback(ctx, callback.ID, "Already handled", false)
		return
	}
	if err != nil {
		b.logger.Error("failed to get spam message", "spam_id", data.ID, "error", err)
		b.answerCallback(ctx, callback.ID, "Error", false)
		return
	}

	req := actions.TrustRequest{
		Sender: spam.Sender,
		Body:   spam.Body,
		SpamID: spam.ID,
	}
	if msgID := callbackMessageID(callback); msgID != 0 {
		req.NotificationID = strconv.Itoa(msgID)
	}

	res, err := b.actions.TrustSender(ctx, req)
	if errors.Is(err, actions.ErrAlreadyHandled) {
		b.answerCallback(ctx, callback.ID, "Already handled", false)
		return
	}
	if err != nil {
		b.answerCallback(ctx, callback.ID, callbackError(err), true)
		if !errors.Is(err, platform.ErrPermissionDenied) {
			b.logger.Error("failed to trust sender", "spam_id", data.ID, "error", err)
		}
		return
	}

	b.logger.Info("sender trusted from telegram", "spam_id", data.ID, "message_id", res.MessageID)
	b.answerCallback(ctx, callback.ID, "Sender trusted, message moved to inbox", false)
}

// handleDeleteSpam drops a spam entry for good
func (b *Bot) handleDeleteSpam(ctx context.Context, callback *models.CallbackQuery, data appmodels.CallbackData) {
	err := b.db.DeleteSpamMessage(ctx, data.ID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		b.logger.Error("failed to delete spam message", "spam_id", data.ID, "error", err)
		b.answerCallback(ctx, callback.ID, "Error", false)
		return
	}

	if msgID := callbackMessageID(callback); msgID != 0 {
		if err := b.deleteMessage(ctx, b.chatID, msgID); err != nil {
			b.logger.Warn("failed to delete spam entry message", "error", err)
		}
	}
	b.answerCallback(ctx, callback.ID, "Spam deleted", false)
}

func (b *Bot) handleRestoreCallback(ctx context.Context, callback *models.CallbackQuery, data appmodels.CallbackData) {
	n, err := b.trash.RestoreConversation(ctx, data.ID)
	if err != nil {
		b.answerCallback(ctx, callback.ID, callbackError(err), true)
		if !errors.Is(err, platform.ErrPermissionDenied) {
			b.logger.Error("failed to restore conversation", "thread_id", data.ID, "error", err)
		}
		return
	}

	b.refreshTrash(ctx, callback)
	b.answerCallback(ctx, callback.ID, restoredText(n), false)
}

func (b *Bot) handlePurgeCallback(ctx context.Context, callback *models.CallbackQuery, data appmodels.CallbackData) {
	n, err := b.trash.PurgeThread(ctx, data.ID)
	if err != nil {
		b.logger.Error("failed to purge thread", "thread_id", data.ID, "error", err)
		b.answerCallback(ctx, callback.ID, "Error", false)
		return
	}

	b.refreshTrash(ctx, callback)
	b.answerCallback(ctx, callback.ID, fmt.Sprintf("Deleted %d message(s) forever", n), false)
}

// handlePurgeAll asks for confirmation first; ID 1 is the confirmed press
func (b *Bot) handlePurgeAll(ctx context.Context, callback *models.CallbackQuery, data appmodels.CallbackData) {
	msgID := callbackMessageID(callback)

	if data.ID != 1 {
		if err := b.editMessageReplyMarkup(ctx, b.chatID, msgID, formatter.BuildPurgeAllConfirmKeyboard()); err != nil {
			b.logger.Warn("failed to show purge confirmation", "error", err)
		}
		b.answerCallback(ctx, callback.ID, "", false)
		return
	}

	n, err := b.trash.PurgeAll(ctx)
	if err != nil {
		b.logger.Error("failed to empty trash", "error", err)
		b.answerCallback(ctx, callback.ID, "Error", false)
		return
	}

	b.refreshTrash(ctx, callback)
	b.answerCallback(ctx, callback.ID, fmt.Sprintf("Trash emptied, %d message(s) deleted", n), false)
}

// handleCopyCode shows a detected code in an alert so it can be copied
func (b *Bot) handleCopyCode(ctx context.Context, callback *models.CallbackQuery, data appmodels.CallbackData) {
	msg, err := b.messages.FindByID(ctx, data.ID)
	if err != nil {
		b.logger.Warn("failed to get message", "message_id", data.ID, "error", err)
		b.answerCallback(ctx, callback.ID, "Message not found", false)
		return
	}

	codes := b.codeDetector.DetectCodes(msg.Body)
	if data.CodeIndex >= len(codes) {
		b.answerCallback(ctx, callback.ID, "Code not found", false)
		return
	}

	b.answerCallback(ctx, callback.ID, fmt.Sprintf("Code: %s", codes[data.CodeIndex].Value), true)
}

// handleMarkRead marks the whole conversation of a notified message read
func (b *Bot) handleMarkRead(ctx context.Context, callback *models.CallbackQuery, data appmodels.CallbackData) {
	msg, err := b.messages.FindByID(ctx, data.ID)
	if err != nil {
		b.logger.Warn("failed to get message", "message_id", data.ID, "error", err)
		b.answerCallback(ctx, callback.ID, "Message not found", false)
		return
	}

	if _, err := b.messages.MarkThreadRead(ctx, msg.ThreadID); err != nil {
		b.logger.Error("failed to mark thread read", "thread_id", msg.ThreadID, "error", err)
		b.answerCallback(ctx, callback.ID, "Error", false)
		return
	}

	// Keep the code buttons and the delete action, drop mark read
	n := appmodels.Notification{
		MessageID: msg.ID,
		Actions: []appmodels.NotificationAction{{
			Label:    "Delete",
			Callback: appmodels.CallbackData{Action: appmodels.CallbackDeleteMessage, ID: msg.ID},
		}},
	}
	if b.settings.NotificationContentVisible() {
		n.Codes = b.codeDetector.DetectCodes(msg.Body)
	}
	if msgID := callbackMessageID(callback); msgID != 0 {
		if err := b.editMessageReplyMarkup(ctx, b.chatID, msgID, formatter.BuildNotificationKeyboard(n)); err != nil {
			b.logger.Warn("failed to update keyboard", "error", err)
		}
	}

	b.answerCallback(ctx, callback.ID, "Marked as read", false)
}

// handleDeleteMessage moves a notified message to the trash
func (b *Bot) handleDeleteMessage(ctx context.Context, callback *models.CallbackQuery, data appmodels.CallbackData) {
	msg, err := b.messages.FindByID(ctx, data.ID)
	if err != nil {
		b.logger.Warn("failed to get message", "message_id", data.ID, "error", err)
		b.answerCallback(ctx, callback.ID, "Message not found", false)
		return
	}

	trashed, err := b.trash.SoftDeleteMessage(ctx, *msg)
	if err != nil {
		b.answerCallback(ctx, callback.ID, callbackError(err), true)
		if !errors.Is(err, platform.ErrPermissionDenied) {
			b.logger.Error("failed to delete message", "message_id", data.ID, "error", err)
		}
		return
	}
	if trashed == nil {
		b.answerCallback(ctx, callback.ID, "Message was not deleted", false)
		return
	}

	if msgID := callbackMessageID(callback); msgID != 0 {
		if err := b.deleteMessage(ctx, b.chatID, msgID); err != nil {
			b.logger.Warn("failed to delete notification", "error", err)
		}
	}
	b.answerCallback(ctx, callback.ID, "Moved to trash", false)
}

// refreshTrash re-renders the trash listing the callback came from
func (b *Bot) refreshTrash(ctx context.Context, callback *models.CallbackQuery) {
	msgID := callbackMessageID(callback)
	if msgID == 0 {
		return
	}

	text, keyboard, err := b.trashView(ctx)
	if err != nil {
		b.logger.Error("failed to read trash", "error", err)
		return
	}
	if err := b.editMessageText(ctx, b.chatID, msgID, text, keyboard); err != nil {
		b.logger.Warn("failed to refresh trash view", "error", err)
	}
}

func callbackError(err error) string {
	if errors.Is(err, platform.ErrPermissionDenied) {
		return "Not allowed: this app is not the default SMS handler"
	}
	return "Error: " + err.Error()
}
