package sync

import (
	"time"

	"opschat/pkg/telemetry"
)

type EventKind string

const (
	// EventSendFailed surfaces a failed send to the user; the optimistic
	// message has already been removed from the cache.
	EventSendFailed EventKind = "send_failed"
	// EventRoomCreated announces a successfully provisioned room.
	EventRoomCreated EventKind = "room_created"
	// EventRoomCreateFailed surfaces a failed provisioning attempt; no
	// partial room was left in any cache.
	EventRoomCreateFailed EventKind = "room_create_failed"
)

// Event is a user-facing notification. Synchronization failures are absorbed
// and logged, never published; only commands issued directly by the user
// (send, create) surface here.
type Event struct {
	Kind   EventKind
	RoomID string
	Err    error
	At     time.Time
}

const defaultEventBuffer = 64

// events is a bounded, non-blocking notification channel. Publishing never
// blocks a synchronizer; when the buffer is full the event is dropped and
// counted.
type events struct {
	ch chan Event
}

func newEvents(buf int) *events {
	if buf <= 0 {
		buf = defaultEventBuffer
	}
	return &events{ch: make(chan Event, buf)}
}

func (e *events) publish(ev Event) {
	ev.At = time.Now().UTC()
	select {
	case e.ch <- ev:
	default:
		telemetry.RecordEventDropped()
	}
}

func (e *events) C() <-chan Event { return e.ch }
