package statemanager

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/livedevhub/collab-relay/pkg/state"
	"github.com/livedevhub/collab-relay/pkg/transport"
)

// InMemoryManager owns the process-wide connection and room maps. A single
// mutex guards all three so that a disconnect mutates the connection, its
// legacy room and its project room as one consistent step.
type InMemoryManager struct {
	mu       sync.RWMutex
	conns    map[uuid.UUID]*state.Connection
	rooms    map[string]*state.LegacyRoom
	projects map[string]*state.ProjectRoom

	logger *slog.Logger
}

func NewInMemoryManager(logger *slog.Logger) *InMemoryManager {
	return &InMemoryManager{
		conns:    make(map[uuid.UUID]*state.Connection),
		rooms:    make(map[string]*state.LegacyRoom),
		projects: make(map[string]*state.ProjectRoom),
		logger:   logger.With(slog.String("component", "state_manager_inmemory")),
	}
}

// compile-time check to ensure InMemoryManager implements Manager.
var _ state.Manager = (*InMemoryManager)(nil)

func (m *InMemoryManager) RegisterConnection(link transport.Link, ipAddr string) (*state.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	connID := link.ID()
	if _, exists := m.conns[connID]; exists {
		return nil, errors.New("connection is already registered")
	}
	newConn := &state.Connection{
		ID:        connID,
		IPAddress: ipAddr,
		Transport: link,
		CreatedAt: time.Now(),
	}
	m.conns[connID] = newConn
	m.logger.Debug("Connection registered", slog.Any("connID", connID.String()))
	return newConn, nil
}

func (m *InMemoryManager) DeregisterConnection(connID uuid.UUID) (*state.DisconnectReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := &state.DisconnectReport{}
	conn, ok := m.conns[connID]
	if !ok {
		// already deregistered
		return report, nil
	}
	delete(m.conns, connID)

	if conn.LegacyRoomID != "" {
		m.leaveLegacyRoomLocked(conn, report)
	}
	if conn.ProjectID != "" {
		m.leaveProjectRoomLocked(conn, report)
	}

	m.logger.Debug("Connection deregistered", "connID", connID.String())
	return report, nil
}

func (m *InMemoryManager) leaveLegacyRoomLocked(conn *state.Connection, report *state.DisconnectReport) {
	room, ok := m.rooms[conn.LegacyRoomID]
	if !ok {
		return
	}
	socketID := conn.ID.String()
	for i, member := range room.Members {
		if member.SocketID != socketID {
			continue
		}
		removed := member
		room.Members = append(room.Members[:i], room.Members[i+1:]...)
		report.LegacyRoomID = room.ID
		report.LegacyMember = &removed
		break
	}
	if len(room.Members) == 0 {
		delete(m.rooms, room.ID)
		m.logger.Debug("Removed empty room", "roomID", room.ID)
	}
}

func (m *InMemoryManager) leaveProjectRoomLocked(conn *state.Connection, report *state.DisconnectReport) {
	room, ok := m.projects[conn.ProjectID]
	if !ok {
		return
	}
	// Only the connection currently backing the presence record may evict
	// it; a stale connection closing after a reconnect leaves the fresh
	// record in place.
	if holder, ok := room.Holders[conn.UserID]; !ok || holder != conn.ID {
		return
	}
	for i, user := range room.Users {
		if user.ID != conn.UserID {
			continue
		}
		removed := user
		room.Users = append(room.Users[:i], room.Users[i+1:]...)
		delete(room.Holders, conn.UserID)
		report.ProjectID = room.ID
		report.Departed = &removed
		break
	}
	if len(room.Users) == 0 {
		delete(m.projects, room.ID)
		m.logger.Debug("Removed empty project room", "projectID", room.ID)
		return
	}
	if report.Departed != nil {
		report.ProjectUsers = snapshotPresence(room.Users)
	}
}

func (m *InMemoryManager) GetConnection(connID uuid.UUID) (*state.Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.conns[connID]
	return conn, ok
}

func (m *InMemoryManager) Connections() []*state.Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns := make([]*state.Connection, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	return conns
}

func (m *InMemoryManager) ConnectionCountByIP(ipAddr string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, c := range m.conns {
		if c.IPAddress == ipAddr {
			count++
		}
	}
	return count
}

// --- Presence ---

func (m *InMemoryManager) JoinLegacyRoom(connID uuid.UUID, roomID, username string) ([]state.RoomMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		return nil, state.ErrUnknownConnection
	}
	if conn.LegacyRoomID != "" {
		return nil, state.ErrAlreadyInRoom
	}

	room, exists := m.rooms[roomID]
	if !exists {
		room = &state.LegacyRoom{ID: roomID}
		m.rooms[roomID] = room
	}

	room.Members = append(room.Members, state.RoomMember{
		Username: username,
		SocketID: connID.String(),
	})
	conn.LegacyRoomID = roomID
	conn.Username = username

	m.logger.Debug("Joined legacy room", "roomID", roomID, "username", username, "members", len(room.Members))
	return snapshotMembers(room.Members), nil
}

func (m *InMemoryManager) JoinProjectRoom(connID uuid.UUID, projectID string, user state.Presence) ([]state.Presence, *state.DisconnectReport, error) {
	if user.ID == "" || user.Username == "" {
		return nil, nil, state.ErrInvalidPresence
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		return nil, nil, state.ErrUnknownConnection
	}
	// Rebinding to a different project drops the old presence first so the
	// connection never appears in two project rooms. The departure is handed
	// back so the old room's survivors can be told.
	var rebind *state.DisconnectReport
	if conn.ProjectID != "" && conn.ProjectID != projectID {
		rebind = &state.DisconnectReport{}
		m.leaveProjectRoomLocked(conn, rebind)
		if rebind.Departed == nil {
			rebind = nil
		}
	}

	room, exists := m.projects[projectID]
	if !exists {
		room = &state.ProjectRoom{
			ID:      projectID,
			Holders: make(map[string]uuid.UUID),
		}
		m.projects[projectID] = room
	}

	// Remove any existing record for this user id (reconnect-replace).
	for i, existing := range room.Users {
		if existing.ID == user.ID {
			room.Users = append(room.Users[:i], room.Users[i+1:]...)
			break
		}
	}
	room.Users = append(room.Users, user)
	room.Holders[user.ID] = connID

	conn.ProjectID = projectID
	conn.UserID = user.ID
	conn.Username = user.Username

	m.logger.Debug("Joined project room", "projectID", projectID, "userID", user.ID, "users", len(room.Users))
	return snapshotPresence(room.Users), rebind, nil
}

func (m *InMemoryManager) LegacyRoomMembers(roomID string) ([]state.RoomMember, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return nil, false
	}
	return snapshotMembers(room.Members), true
}

func (m *InMemoryManager) ProjectRoomUsers(projectID string) ([]state.Presence, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, ok := m.projects[projectID]
	if !ok {
		return nil, false
	}
	return snapshotPresence(room.Users), true
}

func (m *InMemoryManager) RoomCounts() (legacy, project int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms), len(m.projects)
}

func snapshotMembers(members []state.RoomMember) []state.RoomMember {
	out := make([]state.RoomMember, len(members))
	copy(out, members)
	return out
}

func snapshotPresence(users []state.Presence) []state.Presence {
	out := make([]state.Presence, len(users))
	copy(out, users)
	return out
}
