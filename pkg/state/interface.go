package state

import (
	"errors"

	"github.com/google/uuid"
	"github.com/livedevhub/collab-relay/pkg/transport"
)

var (
	ErrUnknownConnection = errors.New("connection is not registered")
	ErrAlreadyInRoom     = errors.New("connection already belongs to a room")
	ErrInvalidPresence   = errors.New("presence record needs an id and a username")
)

type Manager interface {
	// --- Connection Lifecycle ---
	RegisterConnection(link transport.Link, ipAddr string) (*Connection, error)
	// DeregisterConnection removes the connection from every room it was
	// bound to, deleting rooms that become empty. Safe to call for an
	// unknown connection; the report is then empty.
	DeregisterConnection(connID uuid.UUID) (*DisconnectReport, error)
	GetConnection(connID uuid.UUID) (*Connection, bool)
	Connections() []*Connection
	ConnectionCountByIP(ipAddr string) int

	// --- Presence ---
	// JoinLegacyRoom appends the member and returns the room snapshot.
	JoinLegacyRoom(connID uuid.UUID, roomID, username string) ([]RoomMember, error)
	// JoinProjectRoom replaces any record with the same user id (reconnect)
	// and returns the presence snapshot. When the connection was bound to a
	// different project, the non-nil rebind report carries the departure the
	// caller must fan out to the old room's survivors.
	JoinProjectRoom(connID uuid.UUID, projectID string, user Presence) ([]Presence, *DisconnectReport, error)
	LegacyRoomMembers(roomID string) ([]RoomMember, bool)
	ProjectRoomUsers(projectID string) ([]Presence, bool)
	RoomCounts() (legacy, project int)
}
