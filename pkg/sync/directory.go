package sync

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"opschat/pkg/logger"
	"opschat/pkg/models"
	"opschat/pkg/session"
	"opschat/pkg/snapshot"
	"opschat/pkg/telemetry"
)

// Directory polls and caches the list of rooms the session actor
// participates in. Ordering (updatedAt descending) is authoritative from the
// backend; the cache is never re-sorted locally. A failed poll keeps the
// previous list and retries on the next tick at the fixed interval.
type Directory struct {
	client   Backend
	session  *session.Session
	interval time.Duration
	limiter  *rate.Limiter
	snap     *snapshot.Store

	mu      sync.RWMutex
	rooms   []models.Room
	synced  bool // at least one successful poll this run
	lastErr error

	runMu  sync.Mutex
	cancel context.CancelFunc
	wake   chan struct{}
	done   chan struct{}
}

func newDirectory(client Backend, sess *session.Session, interval time.Duration, limiter *rate.Limiter, snap *snapshot.Store) *Directory {
	return &Directory{
		client:   client,
		session:  sess,
		interval: interval,
		limiter:  limiter,
		snap:     snap,
		wake:     make(chan struct{}, 1),
	}
}

// Start begins periodic polling. The first poll is issued immediately.
// Starting an already running directory is a no-op.
func (d *Directory) Start(ctx context.Context) {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.cancel != nil {
		return
	}
	d.warmFromSnapshot()
	ctx2, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	go d.run(ctx2)
}

// Stop cancels the poll loop and waits for it to exit.
func (d *Directory) Stop() {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.cancel == nil {
		return
	}
	d.cancel()
	<-d.done
	d.cancel = nil
	d.done = nil
}

func (d *Directory) run(ctx context.Context) {
	defer close(d.done)
	d.poll(ctx)
	t := time.NewTicker(d.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			d.poll(ctx)
		case <-d.wake:
			d.poll(ctx)
		}
	}
}

func (d *Directory) poll(ctx context.Context) {
	// absent session disables the synchronizer: no network activity
	if !d.session.Active() {
		return
	}
	if err := d.Refresh(ctx); err != nil {
		logger.Warn("room_directory_poll_failed", "error", err)
	}
}

// Refresh performs one synchronous poll and replaces the cached list on
// success. On failure the previous cache is left intact.
func (d *Directory) Refresh(ctx context.Context) error {
	if !d.session.Active() {
		return session.ErrNoSession
	}
	rooms, err := d.client.ListRooms(ctx)
	telemetry.RecordPoll(telemetry.PollRooms, err)
	d.mu.Lock()
	if err != nil {
		d.lastErr = err
		d.mu.Unlock()
		return err
	}
	d.rooms = rooms
	d.synced = true
	d.lastErr = nil
	d.mu.Unlock()

	telemetry.SetCachedRooms(len(rooms))
	if d.snap != nil {
		if serr := d.snap.SaveRooms(rooms); serr != nil {
			logger.Warn("directory_snapshot_failed", "error", serr)
		}
	}
	return nil
}

// RequestRefresh nudges the poll loop to refresh sooner than its next tick,
// e.g. right after a successful send so the sender sees the room reorder
// without waiting a full interval. Requests are rate limited; excess bursts
// coalesce into the next scheduled tick.
func (d *Directory) RequestRefresh() {
	if d.limiter != nil && !d.limiter.Allow() {
		return
	}
	telemetry.RecordRefresh()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Rooms returns a copy of the cached directory in backend order, with any
// read-state overrides already applied.
func (d *Directory) Rooms() []models.Room {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Room, len(d.rooms))
	copy(out, d.rooms)
	return out
}

// Room returns the cached room with the given id.
func (d *Directory) Room(id string) (models.Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, r := range d.rooms {
		if r.ID == id {
			return r, true
		}
	}
	return models.Room{}, false
}

// MarkRead locally forces a room's unread count to zero, ahead of any
// backend confirmation. Display-only: the next authoritative poll replaces
// the whole list and overwrites the override if the backend disagrees.
func (d *Directory) MarkRead(roomID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.rooms {
		if d.rooms[i].ID == roomID {
			d.rooms[i].UnreadCount = 0
			return
		}
	}
}

// Insert splices a freshly provisioned room into the cache at the head so it
// is visible before the next poll confirms it. An existing entry with the
// same id is replaced in place.
func (d *Directory) Insert(room models.Room) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.rooms {
		if d.rooms[i].ID == room.ID {
			d.rooms[i] = room
			return
		}
	}
	d.rooms = append([]models.Room{room}, d.rooms...)
}

// Stale reports whether the most recent poll failed, i.e. the cache may lag
// the backend beyond one interval.
func (d *Directory) Stale() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastErr != nil
}

// warmFromSnapshot seeds an empty cache from the local snapshot so a
// restarted client renders before its first poll. Never overrides polled
// data.
func (d *Directory) warmFromSnapshot() {
	if d.snap == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.synced || len(d.rooms) > 0 {
		return
	}
	rooms, err := d.snap.LoadRooms()
	if err != nil {
		logger.Warn("directory_snapshot_load_failed", "error", err)
		return
	}
	d.rooms = rooms
}
