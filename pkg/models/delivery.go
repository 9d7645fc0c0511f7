package models

import "github.com/google/uuid"

// Fragment is one carrier-level part of a delivered SMS
type Fragment struct {
	Sender    string
	Body      string
	Timestamp int64 // epoch millis
}

// DeliveryEvent is one logical incoming message, possibly split in fragments
type DeliveryEvent struct {
	ID        uuid.UUID
	Fragments []Fragment
}

// NewDeliveryEvent creates an event with a fresh id
func NewDeliveryEvent(fragments ...Fragment) DeliveryEvent {
	return DeliveryEvent{
		ID:        uuid.New(),
		Fragments: fragments,
	}
}
