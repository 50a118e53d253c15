package domain

import (
	"fmt"
	"strings"
	"time"
)

// Codec between typed records and the document shapes held in the store.
// Documents arriving from a change feed are arbitrary maps; everything that
// crosses the boundary is validated here so malformed shapes never propagate
// into a projection.

// UserFromDocument validates and decodes a users-collection document.
func UserFromDocument(doc map[string]any) (User, error) {
	id := stringField(doc, "id")
	if id == "" {
		return User{}, fmt.Errorf("user document missing id")
	}
	role := Role(strings.ToLower(stringField(doc, "role")))
	if role == "" {
		role = RoleUser
	}
	if !ValidRole(role) {
		return User{}, fmt.Errorf("user %s: unknown role %q", id, role)
	}
	user := User{
		ID:           id,
		Email:        stringField(doc, "email"),
		Username:     stringField(doc, "username"),
		Role:         role,
		PasswordHash: stringField(doc, "passwordHash"),
	}
	if at, ok := timeField(doc, "createdAt"); ok {
		user.CreatedAt = at
	}
	return user, nil
}

// Document encodes the user for storage.
func (u User) Document() map[string]any {
	doc := map[string]any{
		"email":    u.Email,
		"username": u.Username,
		"role":     string(u.Role),
	}
	if u.PasswordHash != "" {
		doc["passwordHash"] = u.PasswordHash
	}
	if !u.CreatedAt.IsZero() {
		doc["createdAt"] = u.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return doc
}

// TicketFromDocument validates and decodes a tickets-collection document.
// Documents with an unknown status are rejected outright so the four-value
// status invariant holds for every projected ticket.
func TicketFromDocument(doc map[string]any) (Ticket, error) {
	id := stringField(doc, "id")
	if id == "" {
		return Ticket{}, fmt.Errorf("ticket document missing id")
	}
	status := TicketStatus(strings.ToLower(stringField(doc, "status")))
	if !ValidStatus(status) {
		return Ticket{}, fmt.Errorf("ticket %s: unknown status %q", id, status)
	}
	ticket := Ticket{
		ID:       id,
		UserID:   stringField(doc, "userId"),
		Title:    stringField(doc, "title"),
		Category: TicketCategory(strings.ToLower(stringField(doc, "category"))),
		Priority: TicketPriority(strings.ToLower(stringField(doc, "priority"))),
		Status:   status,
	}
	if ticket.Category == "" {
		ticket.Category = CategoryGeneral
	}
	if !ValidPriority(ticket.Priority) {
		ticket.Priority = TicketPriorityLow
	}
	if at, ok := timeField(doc, "createdAt"); ok {
		ticket.CreatedAt = at
	}
	if raw, ok := doc["messages"].([]any); ok {
		ticket.Messages = make([]Message, 0, len(raw))
		for _, item := range raw {
			msg, err := MessageFromValue(item)
			if err != nil {
				return Ticket{}, fmt.Errorf("ticket %s: %w", id, err)
			}
			ticket.Messages = append(ticket.Messages, msg)
		}
	}
	return ticket, nil
}

// Document encodes the ticket for storage.
func (t Ticket) Document() map[string]any {
	doc := map[string]any{
		"userId":   t.UserID,
		"category": string(t.Category),
		"priority": string(t.Priority),
		"status":   string(t.Status),
		"messages": EncodeTicketMessages(t.Messages),
	}
	if t.Title != "" {
		doc["title"] = t.Title
	}
	if !t.CreatedAt.IsZero() {
		doc["createdAt"] = t.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return doc
}

// MessageFromValue decodes a message from either wire shape: ticket-embedded
// entries carry {sender, message, time}, chat-thread documents carry
// {sender, text, createdAt}.
func MessageFromValue(value any) (Message, error) {
	doc, ok := value.(map[string]any)
	if !ok {
		return Message{}, fmt.Errorf("message entry is not an object")
	}
	sender := Sender(strings.ToLower(stringField(doc, "sender")))
	if sender != SenderUser && sender != SenderAdmin {
		return Message{}, fmt.Errorf("unknown message sender %q", sender)
	}
	text := stringField(doc, "text")
	if text == "" {
		text = stringField(doc, "message")
	}
	msg := Message{Sender: sender, Text: text}
	if at, ok := timeField(doc, "time"); ok {
		msg.Time = at
	} else if at, ok := timeField(doc, "createdAt"); ok {
		msg.Time = at
	}
	return msg, nil
}

// EncodeTicketMessages encodes messages in the ticket-embedded wire shape.
func EncodeTicketMessages(messages []Message) []any {
	out := make([]any, 0, len(messages))
	for _, msg := range messages {
		out = append(out, map[string]any{
			"sender":  string(msg.Sender),
			"message": msg.Text,
			"time":    msg.Time.UTC().Format(time.RFC3339Nano),
		})
	}
	return out
}

// EncodeChatMessage encodes a message in the chat-thread wire shape. The
// createdAt field is left to the store's server-side timestamp when zero.
func EncodeChatMessage(msg Message) map[string]any {
	doc := map[string]any{
		"sender": string(msg.Sender),
		"text":   msg.Text,
	}
	if !msg.Time.IsZero() {
		doc["createdAt"] = msg.Time.UTC().Format(time.RFC3339Nano)
	}
	return doc
}

func stringField(doc map[string]any, key string) string {
	if val, ok := doc[key].(string); ok {
		return strings.TrimSpace(val)
	}
	return ""
}

func timeField(doc map[string]any, key string) (time.Time, bool) {
	switch val := doc[key].(type) {
	case time.Time:
		return val, true
	case string:
		if at, err := time.Parse(time.RFC3339Nano, val); err == nil {
			return at, true
		}
		if at, err := time.Parse(time.RFC3339, val); err == nil {
			return at, true
		}
	}
	return time.Time{}, false
}
