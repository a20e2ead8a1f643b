package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/livedevhub/collab-relay/internal/chatstore"
	"github.com/livedevhub/collab-relay/pkg/state"
)

// Chat channels work like file scopes: a broadcast group keyed by chat id,
// no membership list. The only extra duty is handing messages to the chat
// store, which must never slow the relay down.

func (r *Relay) handleJoinChat(conn *state.Connection, payload json.RawMessage) {
	var p chatRefPayload
	if !r.decode(conn, "join-chat", payload, &p) {
		return
	}
	if p.ChatID == "" {
		r.drop(conn.ID, "join-chat", "missing chat id")
		return
	}
	r.groups.Subscribe(string(p.ChatID), conn.Transport)
	r.logger.Debug("Joined chat",
		slog.String("chatID", string(p.ChatID)),
		slog.String("userID", string(p.UserID)),
	)
}

func (r *Relay) handleLeaveChat(conn *state.Connection, payload json.RawMessage) {
	var p chatRefPayload
	if !r.decode(conn, "leave-chat", payload, &p) {
		return
	}
	if p.ChatID == "" {
		r.drop(conn.ID, "leave-chat", "missing chat id")
		return
	}
	r.groups.Unsubscribe(string(p.ChatID), conn.ID)
	r.logger.Debug("Left chat",
		slog.String("chatID", string(p.ChatID)),
		slog.String("userID", string(p.UserID)),
	)
}

type chatMessageOut struct {
	ChatID     string    `json:"chatId"`
	Message    string    `json:"message"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Timestamp  time.Time `json:"timestamp"`
}

// handleNewChatMessage persists the message best-effort and relays it to the
// other chat subscribers. Persistence runs on its own goroutine with its own
// deadline; the broadcast below never waits for it and a store failure is
// only logged.
func (r *Relay) handleNewChatMessage(conn *state.Connection, payload json.RawMessage) {
	var p chatMessagePayload
	if !r.decode(conn, "new-chat-message", payload, &p) {
		return
	}
	if p.ChatID == "" {
		r.drop(conn.ID, "new-chat-message", "missing chat id")
		return
	}
	chatID := string(p.ChatID)
	now := time.Now().UTC()

	msg := chatstore.Message{
		ChatID:      chatID,
		ProjectID:   chatstore.ProjectIDFromChat(chatID),
		SenderID:    string(p.SenderID),
		SenderName:  p.SenderName,
		Body:        p.Message,
		MessageType: "text",
		SentAt:      now,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.persistTimeout)
		defer cancel()
		if err := r.chats.SaveMessage(ctx, msg); err != nil {
			r.metrics.chatPersistFailures.Inc()
			r.logger.Error("Failed to persist chat message",
				slog.String("chatID", chatID),
				slog.Any("error", err),
			)
		}
	}()

	r.broadcast(chatID, conn.ID, "chat-message-received", chatMessageOut{
		ChatID:     chatID,
		Message:    p.Message,
		SenderID:   string(p.SenderID),
		SenderName: p.SenderName,
		Timestamp:  now,
	})
}

type typingOut struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

func (r *Relay) handleTyping(conn *state.Connection, payload json.RawMessage) {
	var p typingPayload
	if !r.decode(conn, "typing", payload, &p) {
		return
	}
	if p.ChatID == "" {
		r.drop(conn.ID, "typing", "missing chat id")
		return
	}
	r.broadcast(string(p.ChatID), conn.ID, "user-typing", typingOut{
		UserID:   string(p.UserID),
		Username: p.Username,
		IsTyping: p.IsTyping,
	})
}
