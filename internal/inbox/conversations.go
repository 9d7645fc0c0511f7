// Package inbox projects the active message store into conversation summaries.
package inbox

import (
	"sort"
	"strings"

	"github.com/mixelka/smsfirewall/pkg/models"
)

// Overlay supplies per-thread pin and mute state
type Overlay interface {
	IsPinned(threadID int64) bool
	IsMuted(threadID int64) bool
}

// Build groups messages by thread, keeps the newest message of each thread
// and counts unread inbound messages. Pinned threads come first, then by date.
func Build(messages []models.Message, overlay Overlay) []models.ConversationSummary {
	index := make(map[int64]int)
	newest := make(map[int64]models.Message)
	var out []models.ConversationSummary

	for _, m := range messages {
		i, ok := index[m.ThreadID]
		if !ok {
			i = len(out)
			index[m.ThreadID] = i
			out = append(out, models.ConversationSummary{ThreadID: m.ThreadID})
			newest[m.ThreadID] = m
		} else if cur := newest[m.ThreadID]; m.Date > cur.Date || (m.Date == cur.Date && m.ID > cur.ID) {
			newest[m.ThreadID] = m
		}
		if m.Inbound() && !m.Read {
			out[i].UnreadCount++
		}
	}

	for i := range out {
		m := newest[out[i].ThreadID]
		out[i].Address = m.Address
		out[i].Snippet = m.Body
		out[i].Date = m.Date
		out[i].Direction = m.Direction
		if overlay != nil {
			out[i].Pinned = overlay.IsPinned(out[i].ThreadID)
			out[i].Muted = overlay.IsMuted(out[i].ThreadID)
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Pinned != out[b].Pinned {
			return out[a].Pinned
		}
		if out[a].Date != out[b].Date {
			return out[a].Date > out[b].Date
		}
		return out[a].ThreadID > out[b].ThreadID
	})
	return out
}

// Filter narrows a conversation list
type Filter struct {
	Query      string
	UnreadOnly bool
}

// Apply returns the summaries matching f. With badges disabled the unread
// filter has nothing to show.
func (f Filter) Apply(summaries []models.ConversationSummary, showBadges bool) []models.ConversationSummary {
	if f.UnreadOnly && !showBadges {
		return []models.ConversationSummary{}
	}

	query := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]models.ConversationSummary, 0, len(summaries))
	for _, s := range summaries {
		if f.UnreadOnly && (s.UnreadCount == 0 || s.Muted) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(s.Address), query) &&
			!strings.Contains(strings.ToLower(s.Snippet), query) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// UnreadTotal sums unread counts of threads that are not muted
func UnreadTotal(summaries []models.ConversationSummary) int {
	total := 0
	for _, s := range summaries {
		if !s.Muted {
			total += s.UnreadCount
		}
	}
	return total
}
