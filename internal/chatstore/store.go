package chatstore

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Message is one chat-history record as the relay hands it off.
type Message struct {
	ChatID      string
	ProjectID   *int64 // nil unless the chat id carries a team prefix
	SenderID    string
	SenderName  string
	Body        string
	MessageType string
	SentAt      time.Time
}

// Store persists relayed chat messages. Implementations own their timeout
// and retry policy; the relay treats every call as best-effort.
type Store interface {
	SaveMessage(ctx context.Context, msg Message) error
}

// Nop discards every message. Used when no store is configured so the relay
// keeps working without persistence.
type Nop struct{}

func (Nop) SaveMessage(context.Context, Message) error { return nil }

// ProjectIDFromChat parses team chat ids of the form "team_<projectId>".
// Any other shape, including a non-numeric suffix, yields nil.
func ProjectIDFromChat(chatID string) *int64 {
	const prefix = "team_"
	if !strings.HasPrefix(chatID, prefix) {
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(chatID, prefix), 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
