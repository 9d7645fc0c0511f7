package models

// TrashedMessage is a soft-deleted copy of a formerly active message
type TrashedMessage struct {
	ID                int64     `db:"id"`
	OriginalMessageID int64     `db:"original_message_id"`
	Sender            string    `db:"sender"`
	Body              string    `db:"body"`
	Date              int64     `db:"date"` // epoch millis, original timestamp
	Direction         Direction `db:"type"`
	ThreadID          int64     `db:"thread_id"`
	Read              bool      `db:"read"`
	DeletedAt         int64     `db:"deleted_at"` // epoch millis
}

// Archive builds the trash record for an active message
func Archive(m Message, deletedAt int64) TrashedMessage {
	return TrashedMessage{
		OriginalMessageID: m.ID,
		Sender:            m.Address,
		Body:              m.Body,
		Date:              m.Date,
		Direction:         m.Direction,
		ThreadID:          m.ThreadID,
		Read:              m.Read,
		DeletedAt:         deletedAt,
	}
}

// Restored returns the message to re-insert for a trash record. The id
// is left empty, the platform assigns a new one.
func (t TrashedMessage) Restored() Message {
	read := t.Read
	if t.Direction == DirectionOutbound {
		read = true
	}
	return Message{
		Address:   t.Sender,
		Body:      t.Body,
		Date:      t.Date,
		Direction: t.Direction,
		Read:      read,
	}
}

// TrashConversation summarizes the archived messages of one thread
type TrashConversation struct {
	ThreadID      int64
	DisplayName   string
	MessageCount  int
	LastDeletedAt int64
}
