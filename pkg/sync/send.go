package sync

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"opschat/pkg/logger"
	"opschat/pkg/models"
	"opschat/pkg/session"
	"opschat/pkg/telemetry"
)

var (
	// ErrEmptyMessage rejects sends with no content.
	ErrEmptyMessage = errors.New("message content is empty")
	// ErrNoActiveRoom rejects sends targeting a room that is not the active
	// conversation.
	ErrNoActiveRoom = errors.New("room is not active")
)

// provisionalID returns a locally unique id for an optimistic message,
// namespaced so it can never collide with backend-issued ids.
func provisionalID() string {
	return "local-" + uuid.NewString()
}

// Sender is the optimistic send pipeline. A send appends a locally
// fabricated message immediately, issues the durable write, then either
// replaces the provisional entry with the canonical record or removes it.
// A given send produces exactly one visible entry across its lifetime.
type Sender struct {
	client  Backend
	session *session.Session
	view    *MessageView
	dir     *Directory
	events  *events
}

func newSender(client Backend, sess *session.Session, view *MessageView, dir *Directory, ev *events) *Sender {
	return &Sender{client: client, session: sess, view: view, dir: dir, events: ev}
}

// Send delivers content to roomID. Preconditions: an active session,
// non-empty content, and roomID being the active room; violations return an
// error without touching any cache. The call blocks for the backend
// round-trip; the optimistic entry is visible to readers the whole time.
func (s *Sender) Send(ctx context.Context, roomID, content string, attachments []models.Attachment) error {
	actor, ok := s.session.Actor()
	if !ok {
		return session.ErrNoSession
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}
	if roomID == "" || s.view.ActiveRoom() != roomID {
		return ErrNoActiveRoom
	}

	prov := provisionalID()
	optimistic := models.Message{
		ID:           prov,
		RoomID:       roomID,
		SenderID:     actor.ID,
		Content:      content,
		Attachments:  attachments,
		CreatedAt:    time.Now().UTC(),
		IsOptimistic: true,
	}
	s.view.appendOptimistic(optimistic)

	canonical, err := s.client.SendMessage(ctx, roomID, content, attachments)
	telemetry.RecordSend(err)
	if err != nil {
		// remove the provisional entry outright; the user recomposes
		s.view.dropOptimistic(prov)
		s.events.publish(Event{Kind: EventSendFailed, RoomID: roomID, Err: err})
		logger.Warn("send_failed", "room", roomID, "error", err)
		return err
	}

	s.view.resolveOptimistic(prov, canonical)
	logger.Debug("message_sent", "room", roomID, "id", canonical.ID)
	// surface the room reorder/preview update sooner than the next
	// directory tick
	s.dir.RequestRefresh()
	return nil
}
