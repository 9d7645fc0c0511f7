package models

// ConversationSummary is one row of the conversation list
type ConversationSummary struct {
	ThreadID    int64
	Address     string
	Snippet     string
	Date        int64
	Direction   Direction
	UnreadCount int
	Pinned      bool
	Muted       bool
}
