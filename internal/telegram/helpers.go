package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/mixelka/smsfirewall/internal/platform"
)

var errBadID = errors.New("id must be a positive number")

// sendMessage sends a message to a topic
func (b *Bot) sendMessage(ctx context.Context, chatID int64, topicID int, text string) (*models.Message, error) {
	return b.sendMessageWithKeyboard(ctx, chatID, topicID, text, nil)
}

// sendMessageWithKeyboard sends a message with inline keyboard
func (b *Bot) sendMessageWithKeyboard(ctx context.Context, chatID int64, topicID int, text string, keyboard *models.InlineKeyboardMarkup) (*models.Message, error) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}

	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}
	if topicID != 0 {
		params.MessageThreadID = topicID
	}

	msg, err := b.bot.SendMessage(ctx, params)
	if err != nil {
		b.logger.Error("failed to send message", "chat_id", chatID, "error", err)
	}
	return msg, err
}

// deleteMessage deletes a message
func (b *Bot) deleteMessage(ctx context.Context, chatID int64, msgID int) error {
	_, err := b.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: msgID,
	})
	return err
}

// editMessageReplyMarkup edits the reply markup of a message, a nil
// keyboard removes it
func (b *Bot) editMessageReplyMarkup(ctx context.Context, chatID int64, msgID int, keyboard *models.InlineKeyboardMarkup) error {
	_, err := b.bot.EditMessageReplyMarkup(ctx, &bot.EditMessageReplyMarkupParams{
		ChatID:      chatID,
		MessageID:   msgID,
		ReplyMarkup: orEmpty(keyboard),
	})
	return err
}

// editMessageText replaces the text and keyboard of a message
func (b *Bot) editMessageText(ctx context.Context, chatID int64, msgID int, text string, keyboard *models.InlineKeyboardMarkup) error {
	_, err := b.bot.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   msgID,
		Text:        text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: orEmpty(keyboard),
	})
	return err
}

// answerCallback answers a callback query
func (b *Bot) answerCallback(ctx context.Context, callbackID, text string, showAlert bool) error {
	_, err := b.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       showAlert,
	})
	return err
}

// reply answers a command in the chat and topic it came from
func (b *Bot) reply(ctx context.Context, update *models.Update, text string) {
	b.sendMessage(ctx, update.Message.Chat.ID, update.Message.MessageThreadID, text)
}

// replyError reports a failed operation, spelling out the role problem
func (b *Bot) replyError(ctx context.Context, update *models.Update, action string, err error) {
	if errors.Is(err, platform.ErrPermissionDenied) {
		b.reply(ctx, update, "This app is not the default SMS handler, "+action+" is not allowed.")
		return
	}
	b.logger.Error("command failed", "action", action, "error", err)
	b.reply(ctx, update, "Failed to "+action+".")
}

func orEmpty(keyboard *models.InlineKeyboardMarkup) *models.InlineKeyboardMarkup {
	if keyboard == nil {
		return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{}}
	}
	return keyboard
}

// updateChatID returns the chat an update belongs to, 0 when unknown
func updateChatID(update *models.Update) int64 {
	switch {
	case update.Message != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil:
		m := update.CallbackQuery.Message
		if m.Message != nil {
			return m.Message.Chat.ID
		}
		if m.InaccessibleMessage != nil {
			return m.InaccessibleMessage.Chat.ID
		}
	}
	return 0
}

// callbackMessageID returns the id of the message carrying the pressed button
func callbackMessageID(cq *models.CallbackQuery) int {
	if cq.Message.Message != nil {
		return cq.Message.Message.ID
	}
	if cq.Message.InaccessibleMessage != nil {
		return cq.Message.InaccessibleMessage.MessageID
	}
	return 0
}

// commandArgs returns the text after the command word, trimmed
func commandArgs(text string) string {
	text = strings.TrimSpace(text)
	i := strings.IndexFunc(text, isSpace)
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(text[i:])
}

// splitArg splits the first word off the arguments
func splitArg(args string) (string, string) {
	i := strings.IndexFunc(args, isSpace)
	if i < 0 {
		return args, ""
	}
	return args[:i], strings.TrimSpace(args[i:])
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadID
	}
	return id, nil
}

func parseSwitch(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "on", "true", "yes", "1":
		return true, true
	case "off", "false", "no", "0":
		return false, true
	}
	return false, false
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
