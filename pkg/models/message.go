package models

// Direction mirrors the platform "type" column of a message row
type Direction int

const (
	DirectionInbound  Direction = 1
	DirectionOutbound Direction = 2
	DirectionDraft    Direction = 3
)

// String returns a short name for logging
func (d Direction) String() string {
	switch d {
	case DirectionInbound:
		return "inbound"
	case DirectionOutbound:
		return "outbound"
	case DirectionDraft:
		return "draft"
	default:
		return "unknown"
	}
}

// Box is the platform collection a message is inserted into
type Box string

const (
	BoxInbox Box = "inbox"
	BoxSent  Box = "sent"
)

// BoxFor returns the insertion target for a direction. Only outbound
// messages go to the sent collection.
func BoxFor(d Direction) Box {
	if d == DirectionOutbound {
		return BoxSent
	}
	return BoxInbox
}

// Message represents a row of the shared platform message store
type Message struct {
	ID        int64     `db:"_id"`
	ThreadID  int64     `db:"thread_id"`
	Address   string    `db:"address"`
	Body      string    `db:"body"`
	Date      int64     `db:"date"` // epoch millis
	Direction Direction `db:"type"`
	Read      bool      `db:"read"`
}

// Inbound reports whether the message was received
func (m Message) Inbound() bool {
	return m.Direction == DirectionInbound
}
