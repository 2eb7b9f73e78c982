package sync

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"opschat/pkg/config"
	"opschat/pkg/models"
	"opschat/pkg/session"
	"opschat/pkg/snapshot"
)

// Options tunes the engine; zero values select the defaults calibrated for
// the dashboard (10s directory poll, 3s message poll).
type Options struct {
	RoomPollInterval    time.Duration
	MessagePollInterval time.Duration
	// RefreshRPS/RefreshBurst bound on-demand directory refreshes; excess
	// requests coalesce into the next scheduled tick.
	RefreshRPS   float64
	RefreshBurst int
	EventBuffer  int
	// Snapshot, when non-nil, warms caches at startup and persists poll
	// results locally.
	Snapshot *snapshot.Store
}

// Engine composes the synchronizers, the send pipeline and provisioning over
// one session and one backend client, and owns their lifecycles.
type Engine struct {
	session     *session.Session
	directory   *Directory
	messages    *MessageView
	sender      *Sender
	provisioner *Provisioner
	events      *events

	mu     sync.Mutex
	runCtx context.Context
}

// New builds an engine. The session may be inactive; pollers stay idle until
// an identity is present.
func New(client Backend, sess *session.Session, opts Options) *Engine {
	if opts.RoomPollInterval <= 0 {
		opts.RoomPollInterval = config.DefaultRoomPollInterval
	}
	if opts.MessagePollInterval <= 0 {
		opts.MessagePollInterval = config.DefaultMessagePollInterval
	}
	if opts.RefreshRPS <= 0 {
		opts.RefreshRPS = 0.5
	}
	if opts.RefreshBurst <= 0 {
		opts.RefreshBurst = 2
	}

	ev := newEvents(opts.EventBuffer)
	limiter := rate.NewLimiter(rate.Limit(opts.RefreshRPS), opts.RefreshBurst)
	dir := newDirectory(client, sess, opts.RoomPollInterval, limiter, opts.Snapshot)
	view := newMessageView(client, sess, opts.MessagePollInterval, opts.Snapshot)

	return &Engine{
		session:     sess,
		directory:   dir,
		messages:    view,
		sender:      newSender(client, sess, view, dir, ev),
		provisioner: newProvisioner(client, sess, dir, ev),
		events:      ev,
	}
}

// Start begins directory polling. Message polling starts when a room is
// activated.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	e.runCtx = ctx
	e.mu.Unlock()
	e.directory.Start(ctx)
}

// Stop cancels all polling.
func (e *Engine) Stop() {
	e.messages.Deactivate()
	e.directory.Stop()
}

func (e *Engine) runContext() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runCtx != nil {
		return e.runCtx
	}
	return context.Background()
}

// Directory exposes the room directory synchronizer.
func (e *Engine) Directory() *Directory { return e.directory }

// Messages exposes the active-room message synchronizer.
func (e *Engine) Messages() *MessageView { return e.messages }

// Events delivers user-facing notifications (send failures, room creation).
func (e *Engine) Events() <-chan Event { return e.events.C() }

// SetActiveRoom makes roomID the current conversation: its unread indicator
// is suppressed immediately and message polling switches to it.
func (e *Engine) SetActiveRoom(roomID string) {
	e.directory.MarkRead(roomID)
	e.messages.SetActive(e.runContext(), roomID)
}

// ClearActiveRoom closes the conversation view and stops message polling.
func (e *Engine) ClearActiveRoom() {
	e.messages.Deactivate()
}

// Send delivers content to the active room through the optimistic pipeline.
func (e *Engine) Send(ctx context.Context, roomID, content string, attachments []models.Attachment) error {
	return e.sender.Send(ctx, roomID, content, attachments)
}

// CreateRoom provisions a new room and splices it into the directory.
func (e *Engine) CreateRoom(ctx context.Context, participantIDs []string, isGroup bool, name string) (models.Room, error) {
	return e.provisioner.CreateRoom(ctx, participantIDs, isGroup, name)
}

// Candidates lists participant candidates for room provisioning.
func (e *Engine) Candidates(ctx context.Context, which CandidateDirectory) ([]models.Actor, error) {
	return e.provisioner.Candidates(ctx, which)
}
