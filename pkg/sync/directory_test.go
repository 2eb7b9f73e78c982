package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"opschat/pkg/models"
	"opschat/pkg/session"
)

func newTestDirectory(f *fakeBackend, sess *session.Session) *Directory {
	return newDirectory(f, sess, time.Hour, nil, nil)
}

func TestDirectoryRefreshReplacesCache(t *testing.T) {
	f := newFakeBackend("u1")
	f.setRooms([]models.Room{
		directRoom("r2", testBase.Add(5*time.Minute), 0),
		directRoom("r1", testBase.Add(3*time.Minute), 1),
	})
	d := newTestDirectory(f, testSession())

	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	rooms := d.Rooms()
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(rooms))
	}
	if rooms[0].ID != "r2" || rooms[1].ID != "r1" {
		t.Fatalf("backend ordering not preserved: %s, %s", rooms[0].ID, rooms[1].ID)
	}
	if d.Stale() {
		t.Fatalf("directory should not be stale after a successful poll")
	}
}

func TestDirectoryPollFailureKeepsCache(t *testing.T) {
	f := newFakeBackend("u1")
	f.setRooms([]models.Room{directRoom("r1", testBase, 0)})
	d := newTestDirectory(f, testSession())

	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("initial refresh failed: %v", err)
	}

	f.mu.Lock()
	f.listRoomsErr = errors.New("backend unavailable")
	f.mu.Unlock()

	if err := d.Refresh(context.Background()); err == nil {
		t.Fatalf("expected refresh error")
	}
	if got := d.Rooms(); len(got) != 1 || got[0].ID != "r1" {
		t.Fatalf("previous cache not retained: %+v", got)
	}
	if !d.Stale() {
		t.Fatalf("directory should report stale after a failed poll")
	}

	// next tick recovers
	f.mu.Lock()
	f.listRoomsErr = nil
	f.mu.Unlock()
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("recovery refresh failed: %v", err)
	}
	if d.Stale() {
		t.Fatalf("stale flag should clear on success")
	}
}

func TestDirectoryDisabledWithoutSession(t *testing.T) {
	f := newFakeBackend("u1")
	f.setRooms([]models.Room{directRoom("r1", testBase, 0)})
	d := newDirectory(f, session.New(), 5*time.Millisecond, nil, nil)

	if err := d.Refresh(context.Background()); !errors.Is(err, session.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	d.Start(context.Background())
	time.Sleep(40 * time.Millisecond)
	d.Stop()

	if n := f.roomCallCount(); n != 0 {
		t.Fatalf("expected no network activity without a session, got %d calls", n)
	}
}

// Scenario C: activation forces the local unread count to zero; the next
// authoritative poll overwrites the override.
func TestMarkReadOverrideExpiresOnNextPoll(t *testing.T) {
	f := newFakeBackend("u1")
	f.setRooms([]models.Room{
		directRoom("r2", testBase.Add(5*time.Minute), 0),
		directRoom("r1", testBase.Add(3*time.Minute), 1),
	})
	d := newTestDirectory(f, testSession())
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	d.MarkRead("r1")
	r1, ok := d.Room("r1")
	if !ok || r1.UnreadCount != 0 {
		t.Fatalf("expected local unread override to zero, got %+v", r1)
	}

	// a message arrived between activation and the poll
	f.setUnread("r1", 2)
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	r1, _ = d.Room("r1")
	if r1.UnreadCount != 2 {
		t.Fatalf("override should expire on next poll, got unread=%d", r1.UnreadCount)
	}
}

// Read-state convergence: with no further incoming messages, the next poll
// reports zero unread for the activated room.
func TestReadStateConvergence(t *testing.T) {
	f := newFakeBackend("u1")
	f.setRooms([]models.Room{directRoom("r1", testBase, 3)})
	d := newTestDirectory(f, testSession())
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	d.MarkRead("r1")
	// the backend cleared the count as well; nothing new arrived
	f.setUnread("r1", 0)
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	r1, _ := d.Room("r1")
	if r1.UnreadCount != 0 {
		t.Fatalf("expected converged unread=0, got %d", r1.UnreadCount)
	}
}

func TestInsertSplicesAtHead(t *testing.T) {
	f := newFakeBackend("u1")
	f.setRooms([]models.Room{directRoom("r1", testBase, 0)})
	d := newTestDirectory(f, testSession())
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	created := models.Room{ID: "r9", IsGroup: true, Name: "Launch Team", UpdatedAt: testBase.Add(time.Hour)}
	d.Insert(created)
	rooms := d.Rooms()
	if rooms[0].ID != "r9" {
		t.Fatalf("expected created room at head, got %s", rooms[0].ID)
	}

	// inserting the same room again replaces in place rather than duplicating
	created.Name = "Launch Team v2"
	d.Insert(created)
	rooms = d.Rooms()
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms after re-insert, got %d", len(rooms))
	}
	if rooms[0].Name != "Launch Team v2" {
		t.Fatalf("expected in-place replace, got %q", rooms[0].Name)
	}
}

func TestDirectoryPollLoopRuns(t *testing.T) {
	f := newFakeBackend("u1")
	f.setRooms([]models.Room{directRoom("r1", testBase, 0)})
	d := newDirectory(f, testSession(), 10*time.Millisecond, nil, nil)

	d.Start(context.Background())
	defer d.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.roomCallCount() >= 2 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("poll loop did not tick, calls=%d", f.roomCallCount())
}
