package transport

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Group names follow the wire convention the clients already speak: legacy
// rooms use the raw room id, project rooms "project_<id>", file scopes
// "file_<id>", and chats the raw chat id.

func ProjectGroup(projectID string) string { return "project_" + projectID }

func FileGroup(fileID string) string { return "file_" + fileID }

// GroupTable is the broadcast-group primitive: named sets of links with
// emit-to-group-except-sender. Groups exist only while they have at least
// one subscriber; no other membership state is kept here.
type GroupTable struct {
	mu     sync.RWMutex
	groups map[string]map[uuid.UUID]Link
	logger *slog.Logger
}

func NewGroupTable(logger *slog.Logger) *GroupTable {
	return &GroupTable{
		groups: make(map[string]map[uuid.UUID]Link),
		logger: logger.With(slog.String("component", "group_table")),
	}
}

func (t *GroupTable) Subscribe(group string, link Link) {
	t.mu.Lock()
	defer t.mu.Unlock()

	members, ok := t.groups[group]
	if !ok {
		members = make(map[uuid.UUID]Link)
		t.groups[group] = members
	}
	members[link.ID()] = link
	t.logger.Debug("Subscribed to group", "group", group, "connID", link.ID().String())
}

func (t *GroupTable) Unsubscribe(group string, connID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	members, ok := t.groups[group]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(t.groups, group)
	}
	t.logger.Debug("Unsubscribed from group", "group", group, "connID", connID.String())
}

// DropConnection removes the connection from every group it subscribed to.
// Called once on disconnect.
func (t *GroupTable) DropConnection(connID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for name, members := range t.groups {
		if _, ok := members[connID]; !ok {
			continue
		}
		delete(members, connID)
		if len(members) == 0 {
			delete(t.groups, name)
		}
	}
}

// Broadcast sends the message to every group member except the sender and
// reports how many links it reached. An unknown group is a no-op.
func (t *GroupTable) Broadcast(group string, except uuid.UUID, message []byte) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	members, ok := t.groups[group]
	if !ok {
		return 0
	}
	sent := 0
	for id, link := range members {
		if id == except {
			continue
		}
		if t.safeSend(link, message) {
			sent++
		}
	}
	return sent
}

// safeSend isolates a misbehaving link so one bad receiver cannot abort
// delivery to the rest of the group.
func (t *GroupTable) safeSend(link Link, message []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("Dropped send to failed link",
				slog.String("connID", link.ID().String()),
				slog.Any("panic", r))
		}
	}()
	link.Send(message)
	return true
}

// Size reports the current subscriber count of a group.
func (t *GroupTable) Size(group string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.groups[group])
}
