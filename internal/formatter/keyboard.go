package formatter

import (
	"encoding/json"

	"github.com/go-telegram/bot/models"

	appmodels "github.com/mixelka/smsfirewall/pkg/models"
)

// BuildNotificationKeyboard creates the inline keyboard for a notification:
// one button per detected code, then the notification actions
func BuildNotificationKeyboard(n appmodels.Notification) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton

	if len(n.Codes) > 0 && n.MessageID != 0 {
		var codeButtons []models.InlineKeyboardButton
		for i, code := range n.Codes {
			codeButtons = append(codeButtons, models.InlineKeyboardButton{
				Text: code.Value,
				CallbackData: EncodeCallback(appmodels.CallbackData{
					Action:    appmodels.CallbackCopyCode,
					ID:        n.MessageID,
					CodeIndex: i,
				}),
			})
		}
		// Split into rows of 2 buttons each
		for i := 0; i < len(codeButtons); i += 2 {
			end := min(i+2, len(codeButtons))
			rows = append(rows, codeButtons[i:end])
		}
	}

	var actionRow []models.InlineKeyboardButton
	for _, a := range n.Actions {
		actionRow = append(actionRow, models.InlineKeyboardButton{
			Text:         a.Label,
			CallbackData: EncodeCallback(a.Callback),
		})
	}
	if len(actionRow) > 0 {
		rows = append(rows, actionRow)
	}

	if len(rows) == 0 {
		return nil
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// BuildSpamKeyboard creates the buttons under a spam box entry
func BuildSpamKeyboard(spamID int64) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "Trust sender", CallbackData: EncodeCallback(appmodels.CallbackData{Action: appmodels.CallbackTrust, ID: spamID})},
			{Text: "Delete", CallbackData: EncodeCallback(appmodels.CallbackData{Action: appmodels.CallbackDeleteSpam, ID: spamID})},
		}},
	}
}

// BuildTrashKeyboard creates restore and purge buttons per trashed conversation
func BuildTrashKeyboard(convs []appmodels.TrashConversation) *models.InlineKeyboardMarkup {
	if len(convs) == 0 {
		return nil
	}

	rows := make([][]models.InlineKeyboardButton, 0, len(convs)+1)
	for _, c := range convs {
		rows = append(rows, []models.InlineKeyboardButton{
			{Text: "Restore " + c.DisplayName, CallbackData: EncodeCallback(appmodels.CallbackData{Action: appmodels.CallbackRestore, ID: c.ThreadID})},
			{Text: "Purge", CallbackData: EncodeCallback(appmodels.CallbackData{Action: appmodels.CallbackPurge, ID: c.ThreadID})},
		})
	}
	rows = append(rows, []models.InlineKeyboardButton{
		{Text: "Empty trash", CallbackData: EncodeCallback(appmodels.CallbackData{Action: appmodels.CallbackPurgeAll})},
	})
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// BuildPurgeAllConfirmKeyboard asks before emptying the trash
func BuildPurgeAllConfirmKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "Yes, delete forever", CallbackData: EncodeCallback(appmodels.CallbackData{Action: appmodels.CallbackPurgeAll, ID: 1})},
			{Text: "Cancel", CallbackData: EncodeCallback(appmodels.CallbackData{Action: appmodels.CallbackPurgeAllCancel})},
		}},
	}
}

// EncodeCallback encodes callback data to string
func EncodeCallback(data appmodels.CallbackData) string {
	b, _ := json.Marshal(data)
	return string(b)
}

// DecodeCallback decodes callback data from string
func DecodeCallback(data string) (appmodels.CallbackData, error) {
	var cb appmodels.CallbackData
	err := json.Unmarshal([]byte(data), &cb)
	return cb, err
}
