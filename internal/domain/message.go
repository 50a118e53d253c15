package domain

import "time"

// Sender identifies which side of a conversation authored a message.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAdmin Sender = "admin"
)

// Message is a single conversation turn, embedded in a ticket or stored in a
// chat thread. Immutable once appended; ordering is by Time with ties broken
// by the store's delivery order.
type Message struct {
	Sender Sender
	Text   string
	Time   time.Time
}
