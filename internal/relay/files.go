package relay

import (
	"encoding/json"
	"log/slog"

	"github.com/livedevhub/collab-relay/pkg/state"
	"github.com/livedevhub/collab-relay/pkg/transport"
)

// File scopes are pure broadcast groups: no membership list, no leave
// event. Subscriptions accumulate for the life of the connection and are
// torn down wholesale on disconnect.

func (r *Relay) handleJoinFile(conn *state.Connection, payload json.RawMessage) {
	var p joinFilePayload
	if !r.decode(conn, "join-file", payload, &p) {
		return
	}
	if p.FileID == "" {
		r.drop(conn.ID, "join-file", "missing file id")
		return
	}
	r.groups.Subscribe(transport.FileGroup(string(p.FileID)), conn.Transport)
	r.logger.Debug("Joined file scope",
		slog.String("fileID", string(p.FileID)),
		slog.String("projectID", string(p.ProjectID)),
		slog.String("connID", conn.ID.String()),
	)
}

type receiveCode struct {
	Code json.RawMessage `json:"code"`
}

type codeChangeOut struct {
	Code   json.RawMessage `json:"code"`
	FileID string          `json:"fileId"`
	User   json.RawMessage `json:"user,omitempty"`
}

// handleCodeChange serves both protocol generations. The legacy pair and the
// live-editing tuple are routed independently; a payload carrying both
// reaches both audiences.
func (r *Relay) handleCodeChange(conn *state.Connection, payload json.RawMessage) {
	var p codeChangePayload
	if !r.decode(conn, "code-change", payload, &p) {
		return
	}

	routed := false
	if p.RoomID != "" {
		r.broadcast(string(p.RoomID), conn.ID, "receive-code", receiveCode{Code: p.Code})
		routed = true
	}
	if p.FileID != "" && p.ProjectID != "" {
		r.broadcast(transport.FileGroup(string(p.FileID)), conn.ID, "code-change", codeChangeOut{
			Code:   p.Code,
			FileID: string(p.FileID),
			User:   p.User,
		})
		routed = true
	}
	if !routed {
		r.drop(conn.ID, "code-change", "no routing key")
	}
}

type cursorOut struct {
	Position json.RawMessage `json:"position"`
	FileID   string          `json:"fileId"`
	User     json.RawMessage `json:"user,omitempty"`
}

func (r *Relay) handleCursorPosition(conn *state.Connection, payload json.RawMessage) {
	var p cursorPayload
	if !r.decode(conn, "cursor-position", payload, &p) {
		return
	}
	if p.FileID == "" {
		r.drop(conn.ID, "cursor-position", "missing file id")
		return
	}
	r.broadcast(transport.FileGroup(string(p.FileID)), conn.ID, "cursor-position", cursorOut{
		Position: p.Position,
		FileID:   string(p.FileID),
		User:     p.User,
	})
}
