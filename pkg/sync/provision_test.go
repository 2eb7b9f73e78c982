package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"opschat/pkg/models"
	"opschat/pkg/session"
)

func newProvisionFixture(t *testing.T) (*fakeBackend, *Directory, *Provisioner, *events) {
	t.Helper()
	f := newFakeBackend("u1")
	f.setRooms([]models.Room{directRoom("r1", testBase, 0)})
	f.staff = []models.Actor{{ID: "u2", DisplayName: "Bob", Role: "editor"}}
	f.customers = []models.Actor{{ID: "c1", DisplayName: "Acme", Role: models.RoleCustomer}}
	sess := testSession()
	ev := newEvents(8)
	d := newDirectory(f, sess, time.Hour, nil, nil)
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("seed refresh failed: %v", err)
	}
	return f, d, newProvisioner(f, sess, d, ev), ev
}

// Scenario D: the created room is in the directory immediately, without a
// full reload.
func TestCreateGroupRoomSplicesDirectory(t *testing.T) {
	_, d, p, ev := newProvisionFixture(t)

	room, err := p.CreateRoom(context.Background(), []string{"u2", "u3"}, true, "Launch Team")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !room.IsGroup || room.Name != "Launch Team" {
		t.Fatalf("unexpected room: %+v", room)
	}
	// creator plus the two selected participants
	if len(room.Participants) != 3 {
		t.Fatalf("expected 3 participants, got %d", len(room.Participants))
	}

	rooms := d.Rooms()
	if rooms[0].ID != room.ID {
		t.Fatalf("created room not at directory head: %+v", rooms)
	}

	select {
	case e := <-ev.C():
		if e.Kind != EventRoomCreated || e.RoomID != room.ID {
			t.Fatalf("unexpected event: %+v", e)
		}
	default:
		t.Fatalf("no room-created event published")
	}
}

func TestCreateDirectRoom(t *testing.T) {
	_, d, p, _ := newProvisionFixture(t)

	room, err := p.CreateRoom(context.Background(), []string{"c1"}, false, "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if room.IsGroup {
		t.Fatalf("expected a direct room")
	}
	if _, ok := d.Room(room.ID); !ok {
		t.Fatalf("direct room missing from directory cache")
	}
}

func TestCreateRoomValidation(t *testing.T) {
	_, _, p, _ := newProvisionFixture(t)
	ctx := context.Background()

	if _, err := p.CreateRoom(ctx, nil, false, ""); !errors.Is(err, ErrNoParticipants) {
		t.Fatalf("expected ErrNoParticipants, got %v", err)
	}
	if _, err := p.CreateRoom(ctx, []string{"u2", "u3"}, false, ""); !errors.Is(err, ErrDirectParticipants) {
		t.Fatalf("expected ErrDirectParticipants, got %v", err)
	}
	if _, err := p.CreateRoom(ctx, []string{"u2"}, true, "   "); !errors.Is(err, ErrGroupNameRequired) {
		t.Fatalf("expected ErrGroupNameRequired, got %v", err)
	}
}

// A failed provisioning attempt leaves no partial room anywhere.
func TestCreateRoomFailureLeavesNoRoom(t *testing.T) {
	f, d, p, ev := newProvisionFixture(t)
	f.mu.Lock()
	f.createErr = errors.New("backend rejected the room")
	f.mu.Unlock()

	if _, err := p.CreateRoom(context.Background(), []string{"u2"}, false, ""); err == nil {
		t.Fatalf("expected create error")
	}
	if rooms := d.Rooms(); len(rooms) != 1 || rooms[0].ID != "r1" {
		t.Fatalf("failed create mutated the directory: %+v", rooms)
	}

	select {
	case e := <-ev.C():
		if e.Kind != EventRoomCreateFailed || e.Err == nil {
			t.Fatalf("unexpected event: %+v", e)
		}
	default:
		t.Fatalf("no failure event published")
	}
}

func TestCandidates(t *testing.T) {
	_, _, p, _ := newProvisionFixture(t)
	ctx := context.Background()

	staff, err := p.Candidates(ctx, CandidatesStaff)
	if err != nil || len(staff) != 1 || staff[0].ID != "u2" {
		t.Fatalf("staff candidates: %v %+v", err, staff)
	}
	customers, err := p.Candidates(ctx, CandidatesCustomers)
	if err != nil || len(customers) != 1 || !customers[0].IsCustomer() {
		t.Fatalf("customer candidates: %v %+v", err, customers)
	}
	if _, err := p.Candidates(ctx, CandidateDirectory("partners")); err == nil {
		t.Fatalf("expected error for unknown directory")
	}
}

func TestProvisionerRequiresSession(t *testing.T) {
	f := newFakeBackend("u1")
	sess := session.New()
	d := newDirectory(f, sess, time.Hour, nil, nil)
	p := newProvisioner(f, sess, d, newEvents(1))

	if _, err := p.CreateRoom(context.Background(), []string{"u2"}, false, ""); !errors.Is(err, session.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if _, err := p.Candidates(context.Background(), CandidatesStaff); !errors.Is(err, session.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}
