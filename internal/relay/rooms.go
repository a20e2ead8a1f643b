package relay

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/livedevhub/collab-relay/pkg/state"
)

// Legacy rooms: the original flat pairing-code collaboration mode. Kept
// alongside the project/file path so either client generation keeps working.

func (r *Relay) handleJoinRoom(conn *state.Connection, payload json.RawMessage) {
	var p joinRoomPayload
	if !r.decode(conn, "join-room", payload, &p) {
		return
	}
	if p.RoomID == "" || p.Username == "" {
		r.drop(conn.ID, "join-room", "missing room id or username")
		return
	}
	roomID := string(p.RoomID)

	snapshot, err := r.state.JoinLegacyRoom(conn.ID, roomID, p.Username)
	if err != nil {
		if errors.Is(err, state.ErrAlreadyInRoom) {
			r.drop(conn.ID, "join-room", "already in a room")
			return
		}
		r.logger.Warn("Legacy room join failed", slog.String("roomID", roomID), slog.Any("error", err))
		return
	}
	r.groups.Subscribe(roomID, conn.Transport)
	r.updateRoomGauges()
	r.logger.Info("User joined room",
		slog.String("roomID", roomID),
		slog.String("username", p.Username),
		slog.Int("members", len(snapshot)),
	)

	r.broadcast(roomID, conn.ID, "user-joined", state.RoomMember{
		Username: p.Username,
		SocketID: conn.ID.String(),
	})
	r.emit(conn.Transport, "room-users", snapshot)
}

type receiveOutput struct {
	Output json.RawMessage `json:"output"`
}

func (r *Relay) handleOutputChange(conn *state.Connection, payload json.RawMessage) {
	var p outputPayload
	if !r.decode(conn, "output-change", payload, &p) {
		return
	}
	if p.RoomID == "" {
		r.drop(conn.ID, "output-change", "missing room id")
		return
	}
	r.broadcast(string(p.RoomID), conn.ID, "receive-output", receiveOutput{Output: p.Output})
}

type btnRunning struct {
	CodeRun json.RawMessage `json:"coderun"`
}

func (r *Relay) handleBtnRun(conn *state.Connection, payload json.RawMessage) {
	var p btnRunPayload
	if !r.decode(conn, "btn-run", payload, &p) {
		return
	}
	if p.RoomID == "" {
		r.drop(conn.ID, "btn-run", "missing room id")
		return
	}
	r.broadcast(string(p.RoomID), conn.ID, "btn-running", btnRunning{CodeRun: p.CodeRun})
}

func (r *Relay) handleCodeRunCompleted(conn *state.Connection, payload json.RawMessage) {
	var p roomOnlyPayload
	if !r.decode(conn, "code-run-completed", payload, &p) {
		return
	}
	if p.RoomID == "" {
		r.drop(conn.ID, "code-run-completed", "missing room id")
		return
	}
	r.broadcast(string(p.RoomID), conn.ID, "code-run-completed", nil)
}

type languageChanged struct {
	Language json.RawMessage `json:"language"`
}

func (r *Relay) handleChangeLanguage(conn *state.Connection, payload json.RawMessage) {
	var p languagePayload
	if !r.decode(conn, "change-language", payload, &p) {
		return
	}
	if p.RoomID == "" {
		r.drop(conn.ID, "change-language", "missing room id")
		return
	}
	r.broadcast(string(p.RoomID), conn.ID, "languagechanged", languageChanged{Language: p.Language})
}

type newMessage struct {
	Message  json.RawMessage `json:"message"`
	Username string          `json:"username"`
}

func (r *Relay) handleRoomMessage(conn *state.Connection, payload json.RawMessage) {
	var p roomMessagePayload
	if !r.decode(conn, "message", payload, &p) {
		return
	}
	if p.RoomID == "" {
		r.drop(conn.ID, "message", "missing room id")
		return
	}
	r.broadcast(string(p.RoomID), conn.ID, "new-message", newMessage{
		Message:  p.Message,
		Username: p.Username,
	})
}
