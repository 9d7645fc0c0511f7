package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/mixelka/smsfirewall/pkg/models"
)

const dateLayout = "02.01.2006 15:04"

// TelegramFormatter renders pipeline data as Telegram HTML
type TelegramFormatter struct {
	maxLength  int
	snippetLen int
	location   *time.Location
}

// NewTelegramFormatter creates a new Telegram formatter
func NewTelegramFormatter() *TelegramFormatter {
	return &TelegramFormatter{
		maxLength:  4000, // Leave room for markup
		snippetLen: 60,
		location:   time.Local,
	}
}

// FormatNotification formats a delivery or spam notification
func (f *TelegramFormatter) FormatNotification(n models.Notification) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("<b>%s</b>\n", f.escapeHTML(n.Title)))

	if len(n.Codes) > 0 {
		sb.WriteString("<b>Codes:</b> ")
		for _, code := range n.Codes {
			sb.WriteString(fmt.Sprintf("<code>%s</code> ", f.escapeHTML(code.Value)))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	body := f.truncate(n.Body, f.maxLength-sb.Len()-50)
	sb.WriteString(f.escapeHTML(body))

	return sb.String()
}

// FormatSpamMessage formats one spam box entry
func (f *TelegramFormatter) FormatSpamMessage(m models.SpamMessage) string {
	return fmt.Sprintf("<b>Spam #%d</b> from %s\n<i>%s</i>\n\n%s",
		m.ID,
		f.escapeHTML(m.Sender),
		f.date(m.Date),
		f.escapeHTML(f.truncate(m.Body, f.maxLength-200)),
	)
}

// FormatBlockedWords formats the blocklist
func (f *TelegramFormatter) FormatBlockedWords(words []models.BlockedWord) string {
	if len(words) == 0 {
		return "Blocklist is empty."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>Blocked words (%d):</b>\n", len(words)))
	for _, w := range words {
		sb.WriteString(fmt.Sprintf("%d. <code>%s</code>\n", w.ID, f.escapeHTML(w.Word)))
	}
	return sb.String()
}

// FormatConversations formats the conversation list
func (f *TelegramFormatter) FormatConversations(convs []models.ConversationSummary, unread int, showBadges bool) string {
	if len(convs) == 0 {
		return "No conversations."
	}

	var sb strings.Builder
	sb.WriteString("<b>Conversations</b>")
	if showBadges && unread > 0 {
		sb.WriteString(fmt.Sprintf(" (%d unread)", unread))
	}
	sb.WriteString("\n\n")

	for _, c := range convs {
		if c.Pinned {
			sb.WriteString("📌 ")
		}
		sb.WriteString(fmt.Sprintf("<b>%s</b> · thread %d", f.escapeHTML(c.Address), c.ThreadID))
		if showBadges && c.UnreadCount > 0 && !c.Muted {
			sb.WriteString(fmt.Sprintf(" · <b>%d</b>", c.UnreadCount))
		}
		if c.Muted {
			sb.WriteString(" 🔕")
		}
		prefix := ""
		if c.Direction == models.DirectionOutbound {
			prefix = "You: "
		}
		sb.WriteString(fmt.Sprintf("\n%s%s · <i>%s</i>\n\n",
			prefix,
			f.escapeHTML(f.snippet(c.Snippet)),
			f.date(c.Date),
		))
		if sb.Len() > f.maxLength {
			break
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatThread formats the messages of one conversation, oldest first
func (f *TelegramFormatter) FormatThread(msgs []models.Message) string {
	if len(msgs) == 0 {
		return "Conversation is empty."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>%s</b>\n\n", f.escapeHTML(msgs[0].Address)))
	for _, m := range msgs {
		who := "⬅️"
		if m.Direction == models.DirectionOutbound {
			who = "➡️"
		}
		line := fmt.Sprintf("%s <i>%s</i>\n%s\n\n", who, f.date(m.Date), f.escapeHTML(m.Body))
		if sb.Len()+len(line) > f.maxLength {
			sb.WriteString("<i>... (older messages omitted)</i>")
			break
		}
		sb.WriteString(line)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatTrash formats the trash summary
func (f *TelegramFormatter) FormatTrash(convs []models.TrashConversation) string {
	if len(convs) == 0 {
		return "Trash is empty."
	}

	var sb strings.Builder
	sb.WriteString("<b>Trash</b>\n\n")
	for _, c := range convs {
		sb.WriteString(fmt.Sprintf("<b>%s</b> · thread %d · %d message(s)\n<i>deleted %s</i>\n\n",
			f.escapeHTML(c.DisplayName),
			c.ThreadID,
			c.MessageCount,
			f.date(c.LastDeletedAt),
		))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (f *TelegramFormatter) date(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).In(f.location).Format(dateLayout)
}

func (f *TelegramFormatter) snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= f.snippetLen {
		return s
	}
	return string(runes[:f.snippetLen]) + "…"
}

// escapeHTML escapes HTML special characters for Telegram
func (f *TelegramFormatter) escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// truncate truncates text to maxLen characters
func (f *TelegramFormatter) truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 100
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "\n\n... (message truncated)"
}
