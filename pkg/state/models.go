package state

import (
	"time"

	"github.com/google/uuid"
	"github.com/livedevhub/collab-relay/pkg/transport"
)

// Connection is the registry's view of one live client channel plus the
// identity and room bindings the join handlers accumulate on it.
type Connection struct {
	ID        uuid.UUID
	IPAddress string
	Transport transport.Link
	CreatedAt time.Time

	// Bound by join handlers. A connection belongs to at most one legacy
	// room and at most one project room at a time.
	UserID       string
	Username     string
	ProjectID    string
	LegacyRoomID string
}

// RoomMember is one entry in a legacy room's ordered membership list.
// SocketID carries the connection id under its historical wire name.
type RoomMember struct {
	Username string `json:"username"`
	SocketID string `json:"socketId"`
}

// Presence is a user's record in a project room, unique by ID.
type Presence struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

// LegacyRoom holds members in join order. Duplicate connection ids are not
// permitted; duplicate usernames are (two tabs are two participants).
type LegacyRoom struct {
	ID      string
	Members []RoomMember
}

// ProjectRoom holds one presence record per user id. Holders maps a user id
// to the connection currently backing its record, so that a stale connection
// disconnecting after a reconnect does not evict the fresh record.
type ProjectRoom struct {
	ID      string
	Users   []Presence
	Holders map[string]uuid.UUID
}

// DisconnectReport names what DeregisterConnection removed so the caller can
// notify the surviving room members.
type DisconnectReport struct {
	LegacyRoomID string
	LegacyMember *RoomMember

	ProjectID    string
	Departed     *Presence
	ProjectUsers []Presence
}
