package statemanager_test

import (
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/livedevhub/collab-relay/pkg/state"
	"github.com/livedevhub/collab-relay/pkg/state/statemanager"
)

// --- Test Suite Setup ---

func newTestLogger() *slog.Logger {
	// Discard logger output during tests by setting a high level
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestManager() *statemanager.InMemoryManager {
	return statemanager.NewInMemoryManager(newTestLogger())
}

// fakeLink is a transport stand-in; the state manager never sends.
type fakeLink struct {
	id uuid.UUID
}

func newFakeLink() *fakeLink            { return &fakeLink{id: uuid.New()} }
func (l *fakeLink) ID() uuid.UUID       { return l.id }
func (l *fakeLink) Send(message []byte) {}
func (l *fakeLink) Close(err error)     {}

func register(t *testing.T, m *statemanager.InMemoryManager) *fakeLink {
	t.Helper()
	link := newFakeLink()
	if _, err := m.RegisterConnection(link, "127.0.0.1"); err != nil {
		t.Fatalf("RegisterConnection failed: %v", err)
	}
	return link
}

// --- Connection Lifecycle Tests ---

func TestConnectionLifecycle(t *testing.T) {
	m := newTestManager()
	link := newFakeLink()

	conn, err := m.RegisterConnection(link, "127.0.0.1")
	if err != nil {
		t.Fatalf("RegisterConnection failed: %v", err)
	}
	if conn.ID != link.ID() {
		t.Errorf("Registered connection ID mismatch")
	}

	retrieved, found := m.GetConnection(link.ID())
	if !found {
		t.Fatal("GetConnection failed to find registered connection")
	}
	if retrieved.ID != link.ID() {
		t.Errorf("Retrieved connection ID mismatch")
	}

	if _, err := m.DeregisterConnection(link.ID()); err != nil {
		t.Fatalf("DeregisterConnection failed: %v", err)
	}
	if _, found := m.GetConnection(link.ID()); found {
		t.Error("Found connection after it should have been deregistered")
	}
}

func TestDeregisterUnknownConnectionIsSafe(t *testing.T) {
	m := newTestManager()

	report, err := m.DeregisterConnection(uuid.New())
	if err != nil {
		t.Fatalf("DeregisterConnection of unknown id failed: %v", err)
	}
	if report.LegacyMember != nil || report.Departed != nil {
		t.Error("Expected empty report for unknown connection")
	}
}

func TestConnectionCountByIP(t *testing.T) {
	m := newTestManager()
	m.RegisterConnection(newFakeLink(), "10.0.0.1")
	m.RegisterConnection(newFakeLink(), "10.0.0.1")
	m.RegisterConnection(newFakeLink(), "10.0.0.2")

	if got := m.ConnectionCountByIP("10.0.0.1"); got != 2 {
		t.Errorf("Expected 2 connections for 10.0.0.1, got %d", got)
	}
	if got := m.ConnectionCountByIP("10.0.0.3"); got != 0 {
		t.Errorf("Expected 0 connections for 10.0.0.3, got %d", got)
	}
}

// --- Legacy Room Tests ---

func TestLegacyRoomJoinOrderAndSnapshot(t *testing.T) {
	m := newTestManager()
	linkA := register(t, m)
	linkB := register(t, m)

	snapA, err := m.JoinLegacyRoom(linkA.ID(), "R1", "alice")
	if err != nil {
		t.Fatalf("JoinLegacyRoom (A) failed: %v", err)
	}
	if len(snapA) != 1 || snapA[0].Username != "alice" {
		t.Errorf("Expected snapshot [alice], got %+v", snapA)
	}

	snapB, err := m.JoinLegacyRoom(linkB.ID(), "R1", "bob")
	if err != nil {
		t.Fatalf("JoinLegacyRoom (B) failed: %v", err)
	}
	if len(snapB) != 2 {
		t.Fatalf("Expected 2 members, got %d", len(snapB))
	}
	// insertion order = join order
	if snapB[0].Username != "alice" || snapB[1].Username != "bob" {
		t.Errorf("Expected join order [alice bob], got %+v", snapB)
	}
	if snapB[1].SocketID != linkB.ID().String() {
		t.Errorf("Member socket id does not match connection id")
	}
}

func TestLegacyRoomRejectsDoubleJoin(t *testing.T) {
	m := newTestManager()
	link := register(t, m)

	if _, err := m.JoinLegacyRoom(link.ID(), "R1", "alice"); err != nil {
		t.Fatalf("First join failed: %v", err)
	}
	if _, err := m.JoinLegacyRoom(link.ID(), "R1", "alice"); err == nil {
		t.Error("Expected error on double join by same connection")
	}

	members, _ := m.LegacyRoomMembers("R1")
	if len(members) != 1 {
		t.Errorf("Expected 1 member after rejected double join, got %d", len(members))
	}
}

func TestLegacyRoomAllowsDuplicateUsernames(t *testing.T) {
	m := newTestManager()
	linkA := register(t, m)
	linkB := register(t, m)

	m.JoinLegacyRoom(linkA.ID(), "R1", "alice")
	snap, err := m.JoinLegacyRoom(linkB.ID(), "R1", "alice")
	if err != nil {
		t.Fatalf("Second tab join failed: %v", err)
	}
	// two tabs = two participants
	if len(snap) != 2 {
		t.Errorf("Expected 2 members for same username on two connections, got %d", len(snap))
	}
}

func TestLegacyRoomDisconnectSequence(t *testing.T) {
	m := newTestManager()
	linkA := register(t, m)
	linkB := register(t, m)

	m.JoinLegacyRoom(linkA.ID(), "R1", "alice")
	m.JoinLegacyRoom(linkB.ID(), "R1", "bob")

	report, err := m.DeregisterConnection(linkB.ID())
	if err != nil {
		t.Fatalf("DeregisterConnection (B) failed: %v", err)
	}
	if report.LegacyRoomID != "R1" {
		t.Errorf("Expected report room R1, got %q", report.LegacyRoomID)
	}
	if report.LegacyMember == nil || report.LegacyMember.Username != "bob" {
		t.Fatalf("Expected departed member bob, got %+v", report.LegacyMember)
	}

	members, ok := m.LegacyRoomMembers("R1")
	if !ok || len(members) != 1 || members[0].Username != "alice" {
		t.Errorf("Expected remaining members [alice], got %+v", members)
	}

	m.DeregisterConnection(linkA.ID())
	if _, ok := m.LegacyRoomMembers("R1"); ok {
		t.Error("Expected room R1 to be deleted once empty")
	}
}

// --- Project Room Tests ---

func TestProjectRoomJoinAndValidation(t *testing.T) {
	m := newTestManager()
	link := register(t, m)

	if _, _, err := m.JoinProjectRoom(link.ID(), "P1", state.Presence{ID: "1"}); err == nil {
		t.Error("Expected validation error for missing username")
	}
	if _, _, err := m.JoinProjectRoom(link.ID(), "P1", state.Presence{Username: "alice"}); err == nil {
		t.Error("Expected validation error for missing user id")
	}
	if _, ok := m.ProjectRoomUsers("P1"); ok {
		t.Error("Rejected joins must not create the room")
	}

	snap, _, err := m.JoinProjectRoom(link.ID(), "P1", state.Presence{ID: "1", Username: "alice", Role: "owner"})
	if err != nil {
		t.Fatalf("JoinProjectRoom failed: %v", err)
	}
	if len(snap) != 1 || snap[0].Role != "owner" {
		t.Errorf("Expected snapshot with alice/owner, got %+v", snap)
	}
}

func TestProjectRoomReconnectReplacesRecord(t *testing.T) {
	m := newTestManager()
	oldLink := register(t, m)
	newLink := register(t, m)

	m.JoinProjectRoom(oldLink.ID(), "P1", state.Presence{ID: "1", Username: "alice"})
	snap, rebind, err := m.JoinProjectRoom(newLink.ID(), "P1", state.Presence{ID: "1", Username: "alice"})
	if err != nil {
		t.Fatalf("Rejoin failed: %v", err)
	}
	if rebind != nil {
		t.Errorf("Same-project rejoin must not report a rebind, got %+v", rebind)
	}
	if len(snap) != 1 {
		t.Fatalf("Expected exactly one record after rejoin, got %d", len(snap))
	}

	// the stale connection closing must not evict the fresh record
	report, _ := m.DeregisterConnection(oldLink.ID())
	if report.Departed != nil {
		t.Error("Stale connection disconnect must not report a departure")
	}
	users, ok := m.ProjectRoomUsers("P1")
	if !ok || len(users) != 1 {
		t.Fatalf("Expected record for user 1 to survive stale disconnect, got %+v", users)
	}

	// the current connection closing removes it
	report, _ = m.DeregisterConnection(newLink.ID())
	if report.Departed == nil || report.Departed.ID != "1" {
		t.Fatalf("Expected departure of user 1, got %+v", report.Departed)
	}
	if _, ok := m.ProjectRoomUsers("P1"); ok {
		t.Error("Expected project room P1 to be deleted once empty")
	}
}

func TestProjectRoomRebindToNewProject(t *testing.T) {
	m := newTestManager()
	link := register(t, m)
	other := register(t, m)

	m.JoinProjectRoom(other.ID(), "P1", state.Presence{ID: "2", Username: "bob"})
	m.JoinProjectRoom(link.ID(), "P1", state.Presence{ID: "1", Username: "alice"})
	_, rebind, err := m.JoinProjectRoom(link.ID(), "P2", state.Presence{ID: "1", Username: "alice"})
	if err != nil {
		t.Fatalf("Rebind join failed: %v", err)
	}

	// the caller needs the old-room departure to notify its survivors
	if rebind == nil || rebind.Departed == nil {
		t.Fatal("Expected rebind report carrying the departure from P1")
	}
	if rebind.ProjectID != "P1" || rebind.Departed.ID != "1" {
		t.Errorf("Expected departure of user 1 from P1, got %+v", rebind)
	}
	if len(rebind.ProjectUsers) != 1 || rebind.ProjectUsers[0].ID != "2" {
		t.Errorf("Expected P1 survivor snapshot [bob], got %+v", rebind.ProjectUsers)
	}

	usersP1, _ := m.ProjectRoomUsers("P1")
	if len(usersP1) != 1 || usersP1[0].ID != "2" {
		t.Errorf("Expected alice removed from P1 after rebind, got %+v", usersP1)
	}
	usersP2, _ := m.ProjectRoomUsers("P2")
	if len(usersP2) != 1 || usersP2[0].ID != "1" {
		t.Errorf("Expected alice present in P2, got %+v", usersP2)
	}
}

// --- Cross-room Disconnect ---

func TestDisconnectCleansBothRooms(t *testing.T) {
	m := newTestManager()
	link := register(t, m)
	peer := register(t, m)

	m.JoinLegacyRoom(peer.ID(), "R1", "bob")
	m.JoinLegacyRoom(link.ID(), "R1", "alice")
	m.JoinProjectRoom(link.ID(), "P1", state.Presence{ID: "1", Username: "alice"})

	report, err := m.DeregisterConnection(link.ID())
	if err != nil {
		t.Fatalf("DeregisterConnection failed: %v", err)
	}
	if report.LegacyMember == nil || report.LegacyMember.Username != "alice" {
		t.Errorf("Expected legacy departure for alice, got %+v", report.LegacyMember)
	}
	if report.Departed == nil || report.Departed.ID != "1" {
		t.Errorf("Expected project departure for user 1, got %+v", report.Departed)
	}

	members, _ := m.LegacyRoomMembers("R1")
	for _, member := range members {
		if member.SocketID == link.ID().String() {
			t.Error("Legacy room still references the stale connection")
		}
	}
	if _, ok := m.ProjectRoomUsers("P1"); ok {
		t.Error("Expected project room P1 deleted after sole member left")
	}

	legacy, project := m.RoomCounts()
	if legacy != 1 || project != 0 {
		t.Errorf("Expected room counts (1,0), got (%d,%d)", legacy, project)
	}
}
