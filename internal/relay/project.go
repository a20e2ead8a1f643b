package relay

import (
	"encoding/json"
	"log/slog"

	"github.com/livedevhub/collab-relay/pkg/state"
	"github.com/livedevhub/collab-relay/pkg/transport"
)

func (r *Relay) handleJoinProject(conn *state.Connection, payload json.RawMessage) {
	var p joinProjectPayload
	if !r.decode(conn, "join-project", payload, &p) {
		return
	}
	// Joins without a usable identity are rejected without mutation.
	if p.ProjectID == "" || p.User.ID == "" || p.User.Username == "" {
		r.drop(conn.ID, "join-project", "missing project id or user identity")
		return
	}
	projectID := string(p.ProjectID)
	presence := state.Presence{
		ID:       string(p.User.ID),
		Username: p.User.Username,
		Role:     p.User.Role,
	}

	previousProjectID := conn.ProjectID
	snapshot, rebind, err := r.state.JoinProjectRoom(conn.ID, projectID, presence)
	if err != nil {
		r.logger.Warn("Project room join failed", slog.String("projectID", projectID), slog.Any("error", err))
		return
	}

	// A connection rebinding to another project leaves the old room for real:
	// stop its old-room broadcasts and tell the survivors it departed.
	if previousProjectID != "" && previousProjectID != projectID {
		oldGroup := transport.ProjectGroup(previousProjectID)
		r.groups.Unsubscribe(oldGroup, conn.ID)
		if rebind != nil && rebind.Departed != nil {
			r.broadcast(oldGroup, conn.ID, "user-left", *rebind.Departed)
			r.broadcast(oldGroup, conn.ID, "project-users", rebind.ProjectUsers)
		}
	}

	group := transport.ProjectGroup(projectID)
	r.groups.Subscribe(group, conn.Transport)
	r.updateRoomGauges()
	r.logger.Info("User joined project room",
		slog.String("projectID", projectID),
		slog.String("username", presence.Username),
		slog.Int("users", len(snapshot)),
	)

	r.broadcast(group, conn.ID, "user-joined", presence)
	r.emit(conn.Transport, "project-users", snapshot)
}

type fileChangedOut struct {
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// file-changed is a presence hint ("X switched files"), not a subscription
// change; it goes to the whole project room.
func (r *Relay) handleFileChanged(conn *state.Connection, payload json.RawMessage) {
	var p fileChangedPayload
	if !r.decode(conn, "file-changed", payload, &p) {
		return
	}
	if p.ProjectID == "" {
		r.drop(conn.ID, "file-changed", "missing project id")
		return
	}
	r.broadcast(transport.ProjectGroup(string(p.ProjectID)), conn.ID, "file-changed", fileChangedOut{
		FileID:   string(p.FileID),
		FileName: p.FileName,
		UserID:   string(p.UserID),
		Username: p.Username,
	})
}
