// Package relay routes inbound client events to the room, file, signaling
// and chat handlers and fans results out through the transport group table.
// Handlers run on each connection's read goroutine; shared presence state
// lives behind the state.Manager.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tidwall/gjson"

	"github.com/livedevhub/collab-relay/internal/chatstore"
	"github.com/livedevhub/collab-relay/pkg/state"
	"github.com/livedevhub/collab-relay/pkg/transport"
)

type Relay struct {
	logger  *slog.Logger
	state   state.Manager
	groups  *transport.GroupTable
	chats   chatstore.Store
	metrics *relayMetrics

	// persistTimeout bounds the background chat-store write.
	persistTimeout time.Duration
}

func New(logger *slog.Logger, st state.Manager, groups *transport.GroupTable, chats chatstore.Store, persistTimeout time.Duration, reg prometheus.Registerer) *Relay {
	if persistTimeout <= 0 {
		persistTimeout = 5 * time.Second
	}
	return &Relay{
		logger:         logger.With(slog.String("component", "relay")),
		state:          st,
		groups:         groups,
		chats:          chats,
		metrics:        newRelayMetrics(reg),
		persistTimeout: persistTimeout,
	}
}

// serverMessage is the outbound envelope.
type serverMessage struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// HandleMessage is the transport message callback. It peels the envelope,
// looks up the sending connection and dispatches on the event name. A bad
// event never reaches the sender and never takes the process down: unknown
// events and malformed payloads are dropped with a log line, and each
// handler runs behind a panic guard.
func (r *Relay) HandleMessage(ctx context.Context, connID uuid.UUID, msg []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.panics.Inc()
			r.logger.Error("Event handler panicked", slog.Any("panic", rec), slog.String("connID", connID.String()))
		}
	}()

	event := gjson.GetBytes(msg, "event")
	if event.Type != gjson.String || event.String() == "" {
		r.drop(connID, "", "missing event name")
		return
	}
	payload := json.RawMessage(gjson.GetBytes(msg, "payload").Raw)

	conn, ok := r.state.GetConnection(connID)
	if !ok {
		r.logger.Warn("Message from unregistered connection", slog.String("connID", connID.String()))
		return
	}
	r.metrics.eventsIn.WithLabelValues(event.String()).Inc()

	switch event.String() {
	case "join-room":
		r.handleJoinRoom(conn, payload)
	case "join-project":
		r.handleJoinProject(conn, payload)
	case "join-file":
		r.handleJoinFile(conn, payload)
	case "code-change":
		r.handleCodeChange(conn, payload)
	case "cursor-position":
		r.handleCursorPosition(conn, payload)
	case "output-change":
		r.handleOutputChange(conn, payload)
	case "btn-run":
		r.handleBtnRun(conn, payload)
	case "code-run-completed":
		r.handleCodeRunCompleted(conn, payload)
	case "change-language":
		r.handleChangeLanguage(conn, payload)
	case "message":
		r.handleRoomMessage(conn, payload)
	case "file-changed":
		r.handleFileChanged(conn, payload)
	case "audio-offer":
		r.handleSignal(conn, payload, "audio-offer")
	case "audio-answer":
		r.handleSignal(conn, payload, "audio-answer")
	case "ice-candidate":
		r.handleSignal(conn, payload, "ice-candidate")
	case "join-chat":
		r.handleJoinChat(conn, payload)
	case "leave-chat":
		r.handleLeaveChat(conn, payload)
	case "new-chat-message":
		r.handleNewChatMessage(conn, payload)
	case "typing":
		r.handleTyping(conn, payload)
	default:
		r.logger.Warn("Received unknown event", slog.String("event", event.String()), slog.String("connID", connID.String()))
	}
}

// drop records a silently discarded event.
func (r *Relay) drop(connID uuid.UUID, event, reason string) {
	r.metrics.dropped.WithLabelValues(reason).Inc()
	r.logger.Debug("Dropped event",
		slog.String("event", event),
		slog.String("reason", reason),
		slog.String("connID", connID.String()),
	)
}

// emit sends a single event back to one link.
func (r *Relay) emit(link transport.Link, event string, payload any) {
	b, err := json.Marshal(serverMessage{Event: event, Payload: payload})
	if err != nil {
		r.logger.Error("Failed to marshal outbound event", slog.String("event", event), slog.Any("error", err))
		return
	}
	link.Send(b)
}

// broadcast fans an event out to a group, excluding the sender.
func (r *Relay) broadcast(group string, except uuid.UUID, event string, payload any) {
	b, err := json.Marshal(serverMessage{Event: event, Payload: payload})
	if err != nil {
		r.logger.Error("Failed to marshal broadcast event", slog.String("event", event), slog.Any("error", err))
		return
	}
	sent := r.groups.Broadcast(group, except, b)
	r.metrics.eventsOut.WithLabelValues(event).Add(float64(sent))
}

func (r *Relay) updateRoomGauges() {
	legacy, project := r.state.RoomCounts()
	r.metrics.legacyRooms.Set(float64(legacy))
	r.metrics.projectRooms.Set(float64(project))
}

// decode unmarshals an inbound payload, reporting a malformed-payload drop
// on failure.
func (r *Relay) decode(conn *state.Connection, event string, payload json.RawMessage, out any) bool {
	if len(payload) == 0 {
		r.drop(conn.ID, event, "empty payload")
		return false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		r.drop(conn.ID, event, "unparseable payload")
		return false
	}
	return true
}
