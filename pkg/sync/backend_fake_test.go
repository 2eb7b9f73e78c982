package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"opschat/pkg/backend"
	"opschat/pkg/models"
	"opschat/pkg/session"
)

var testBase = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// fakeBackend is an in-memory stand-in for the backend store. It reorders
// rooms on writes the way the real backend does (updatedAt descending).
type fakeBackend struct {
	mu        stdsync.Mutex
	creatorID string
	rooms     []models.Room
	messages  map[string][]models.Message

	listRoomsErr    error
	listMessagesErr error
	sendErr         error
	createErr       error

	roomCalls int
	msgCalls  map[string]int
	nextID    int

	staff     []models.Actor
	customers []models.Actor

	// onSend observes the client cache mid-flight, while the durable write
	// is outstanding
	onSend func()
}

func newFakeBackend(creatorID string) *fakeBackend {
	return &fakeBackend{
		creatorID: creatorID,
		messages:  map[string][]models.Message{},
		msgCalls:  map[string]int{},
	}
}

func (f *fakeBackend) ListRooms(ctx context.Context) ([]models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roomCalls++
	if f.listRoomsErr != nil {
		return nil, f.listRoomsErr
	}
	out := make([]models.Room, len(f.rooms))
	copy(out, f.rooms)
	return out, nil
}

func (f *fakeBackend) ListMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgCalls[roomID]++
	if f.listMessagesErr != nil {
		return nil, f.listMessagesErr
	}
	out := make([]models.Message, len(f.messages[roomID]))
	copy(out, f.messages[roomID])
	return out, nil
}

func (f *fakeBackend) SendMessage(ctx context.Context, roomID, content string, attachments []models.Attachment) (models.Message, error) {
	if f.onSend != nil {
		f.onSend()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return models.Message{}, f.sendErr
	}
	f.nextID++
	m := models.Message{
		ID:          fmt.Sprintf("m%d", f.nextID),
		RoomID:      roomID,
		SenderID:    f.creatorID,
		Content:     content,
		Attachments: attachments,
		CreatedAt:   testBase.Add(time.Duration(f.nextID) * time.Minute),
	}
	f.messages[roomID] = append(f.messages[roomID], m)
	f.touchRoomLocked(roomID, m)
	return m, nil
}

func (f *fakeBackend) CreateRoom(ctx context.Context, req backend.CreateRoomRequest) (models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return models.Room{}, f.createErr
	}
	f.nextID++
	room := models.Room{
		ID:        fmt.Sprintf("r%d", f.nextID),
		IsGroup:   req.IsGroup,
		Name:      req.Name,
		UpdatedAt: testBase.Add(time.Duration(f.nextID) * time.Minute),
	}
	// the backend implicitly includes the creator
	room.Participants = append(room.Participants, models.Participant{UserID: f.creatorID, User: models.Actor{ID: f.creatorID}})
	for _, id := range req.ParticipantIDs {
		room.Participants = append(room.Participants, models.Participant{UserID: id, User: models.Actor{ID: id}})
	}
	f.rooms = append([]models.Room{room}, f.rooms...)
	return room, nil
}

func (f *fakeBackend) ListStaff(ctx context.Context) ([]models.Actor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Actor(nil), f.staff...), nil
}

func (f *fakeBackend) ListCustomers(ctx context.Context) ([]models.Actor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Actor(nil), f.customers...), nil
}

// touchRoomLocked advances updatedAt and moves the room to the head,
// mirroring the backend's directory ordering.
func (f *fakeBackend) touchRoomLocked(roomID string, last models.Message) {
	for i := range f.rooms {
		if f.rooms[i].ID == roomID {
			r := f.rooms[i]
			r.UpdatedAt = last.CreatedAt
			lm := last
			r.LastMessage = &lm
			f.rooms = append(f.rooms[:i], f.rooms[i+1:]...)
			f.rooms = append([]models.Room{r}, f.rooms...)
			return
		}
	}
}

func (f *fakeBackend) setUnread(roomID string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rooms {
		if f.rooms[i].ID == roomID {
			f.rooms[i].UnreadCount = n
			return
		}
	}
}

func (f *fakeBackend) setRooms(rooms []models.Room) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms = rooms
}

func (f *fakeBackend) setMessages(roomID string, msgs []models.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[roomID] = msgs
}

func (f *fakeBackend) roomCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roomCalls
}

func testSession() *session.Session {
	s := session.New()
	s.Begin(models.Actor{ID: "u1", DisplayName: "Alice", Role: "editor"}, "test-token")
	return s
}

func directRoom(id string, updated time.Time, unread int) models.Room {
	return models.Room{
		ID:      id,
		IsGroup: false,
		Participants: []models.Participant{
			{UserID: "u1", User: models.Actor{ID: "u1", DisplayName: "Alice"}},
			{UserID: "u2", User: models.Actor{ID: "u2", DisplayName: "Bob"}},
		},
		UpdatedAt:   updated,
		UnreadCount: unread,
	}
}

// assertAscending fails the test when the sequence violates the ordering
// invariant (createdAt ascending).
func assertAscending(t interface {
	Helper()
	Fatalf(string, ...interface{})
}, msgs []models.Message) {
	t.Helper()
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatalf("ordering invariant violated at %d: %v before %v", i, msgs[i].CreatedAt, msgs[i-1].CreatedAt)
		}
	}
}
