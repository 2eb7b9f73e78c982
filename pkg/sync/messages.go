package sync

import (
	"context"
	"sync"
	"time"

	"opschat/pkg/logger"
	"opschat/pkg/models"
	"opschat/pkg/session"
	"opschat/pkg/snapshot"
	"opschat/pkg/telemetry"
)

// MessageView polls and caches the ordered message history of the single
// currently active room. At most one room is polled at a time: activating a
// room stops the previous room's loop before starting the new one.
//
// Merge policy: a poll replaces the cache with the server list, then
// re-appends still-pending optimistic messages the poll result cannot yet
// contain. The send pipeline's identity-based splices resolve or remove
// those pending entries.
type MessageView struct {
	client   Backend
	session  *session.Session
	interval time.Duration
	snap     *snapshot.Store

	mu      sync.RWMutex
	roomID  string
	msgs    []models.Message
	pending []models.Message
	lastErr error

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newMessageView(client Backend, sess *session.Session, interval time.Duration, snap *snapshot.Store) *MessageView {
	return &MessageView{client: client, session: sess, interval: interval, snap: snap}
}

// SetActive makes roomID the current room: the old room's polling stops, its
// cache is discarded, and polling starts for the new room with an immediate
// first fetch. Activating the already active room is a no-op.
func (v *MessageView) SetActive(ctx context.Context, roomID string) {
	v.runMu.Lock()
	defer v.runMu.Unlock()

	v.mu.RLock()
	same := v.roomID == roomID
	v.mu.RUnlock()
	if same && v.cancel != nil {
		return
	}

	v.stopLocked()

	v.mu.Lock()
	v.roomID = roomID
	v.msgs = nil
	v.pending = nil
	v.lastErr = nil
	v.mu.Unlock()

	if roomID == "" {
		return
	}
	v.warmFromSnapshot(roomID)

	ctx2, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.done = make(chan struct{})
	go v.run(ctx2, roomID)
}

// Deactivate stops polling and clears the active room, e.g. when the
// conversation view closes.
func (v *MessageView) Deactivate() {
	v.runMu.Lock()
	defer v.runMu.Unlock()
	v.stopLocked()
	v.mu.Lock()
	v.roomID = ""
	v.msgs = nil
	v.pending = nil
	v.mu.Unlock()
}

func (v *MessageView) stopLocked() {
	if v.cancel == nil {
		return
	}
	v.cancel()
	<-v.done
	v.cancel = nil
	v.done = nil
}

func (v *MessageView) run(ctx context.Context, roomID string) {
	defer close(v.done)
	v.poll(ctx, roomID)
	t := time.NewTicker(v.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			v.poll(ctx, roomID)
		}
	}
}

func (v *MessageView) poll(ctx context.Context, roomID string) {
	if !v.session.Active() {
		return
	}
	if err := v.refreshRoom(ctx, roomID); err != nil {
		logger.Warn("message_poll_failed", "room", roomID, "error", err)
	}
}

// refreshRoom performs one synchronous poll for roomID and merges the result
// into the cache. A result arriving after the active room changed is
// discarded. A failed poll leaves the cache untouched.
func (v *MessageView) refreshRoom(ctx context.Context, roomID string) error {
	if !v.session.Active() {
		return session.ErrNoSession
	}
	list, err := v.client.ListMessages(ctx, roomID)
	telemetry.RecordPoll(telemetry.PollMessages, err)

	v.mu.Lock()
	if v.roomID != roomID {
		// room switched while the request was in flight
		v.mu.Unlock()
		return nil
	}
	if err != nil {
		v.lastErr = err
		v.mu.Unlock()
		return err
	}
	merged := make([]models.Message, 0, len(list)+len(v.pending))
	merged = append(merged, list...)
	merged = append(merged, v.pending...)
	v.msgs = merged
	v.lastErr = nil
	size := len(merged)
	v.mu.Unlock()

	telemetry.SetCachedMessages(size)
	if v.snap != nil {
		if serr := v.snap.SaveMessages(roomID, list); serr != nil {
			logger.Warn("message_snapshot_failed", "room", roomID, "error", serr)
		}
	}
	return nil
}

// Refresh polls the active room once, synchronously. No-op when no room is
// active.
func (v *MessageView) Refresh(ctx context.Context) error {
	v.mu.RLock()
	roomID := v.roomID
	v.mu.RUnlock()
	if roomID == "" {
		return nil
	}
	return v.refreshRoom(ctx, roomID)
}

// ActiveRoom returns the currently active room id, or empty.
func (v *MessageView) ActiveRoom() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.roomID
}

// Messages returns a copy of the cached sequence in CreatedAt ascending
// order, pending optimistic entries last.
func (v *MessageView) Messages() []models.Message {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]models.Message, len(v.msgs))
	copy(out, v.msgs)
	return out
}

// Stale reports whether the most recent poll for the active room failed.
func (v *MessageView) Stale() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.lastErr != nil
}

// appendOptimistic appends a provisional message to the cache. The caller
// guarantees it is freshly composed, so appending preserves ascending-time
// order. A message for a room that is no longer active is ignored; the
// send's eventual resolution will find nothing to splice, which is the
// documented outcome for sends that outlive a room switch.
func (v *MessageView) appendOptimistic(m models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.roomID != m.RoomID {
		return
	}
	v.msgs = append(v.msgs, m)
	v.pending = append(v.pending, m)
}

// resolveOptimistic replaces the provisional message with its canonical
// counterpart by identity. Idempotent: applying the same replacement twice
// (overlapping poll and send-response arrival) yields the same cache. Never
// produces a duplicate: if the canonical record already arrived via poll,
// the provisional entry is simply removed.
func (v *MessageView) resolveOptimistic(provisionalID string, canonical models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.removePendingLocked(provisionalID)

	provIdx := indexByID(v.msgs, provisionalID)
	canonIdx := indexByID(v.msgs, canonical.ID)
	canonical.IsOptimistic = false
	switch {
	case provIdx >= 0 && canonIdx >= 0:
		v.msgs = append(v.msgs[:provIdx], v.msgs[provIdx+1:]...)
	case provIdx >= 0:
		// replace in place; the canonical createdAt is backend-authoritative
		// so no speculative re-sort happens here
		v.msgs[provIdx] = canonical
	default:
		// already reconciled, or the cache was rebuilt for another room
	}
}

// dropOptimistic removes the provisional message outright after a failed
// send. No retry state is retained.
func (v *MessageView) dropOptimistic(provisionalID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.removePendingLocked(provisionalID)
	if i := indexByID(v.msgs, provisionalID); i >= 0 {
		v.msgs = append(v.msgs[:i], v.msgs[i+1:]...)
	}
}

func (v *MessageView) removePendingLocked(id string) {
	if i := indexByID(v.pending, id); i >= 0 {
		v.pending = append(v.pending[:i], v.pending[i+1:]...)
	}
}

func indexByID(msgs []models.Message, id string) int {
	for i := range msgs {
		if msgs[i].ID == id {
			return i
		}
	}
	return -1
}

func (v *MessageView) warmFromSnapshot(roomID string) {
	if v.snap == nil {
		return
	}
	msgs, err := v.snap.LoadMessages(roomID)
	if err != nil {
		logger.Warn("message_snapshot_load_failed", "room", roomID, "error", err)
		return
	}
	v.mu.Lock()
	if v.roomID == roomID && len(v.msgs) == 0 {
		v.msgs = msgs
	}
	v.mu.Unlock()
}
