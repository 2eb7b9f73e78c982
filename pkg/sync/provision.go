package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"opschat/pkg/backend"
	"opschat/pkg/logger"
	"opschat/pkg/models"
	"opschat/pkg/session"
	"opschat/pkg/telemetry"
)

var (
	// ErrNoParticipants rejects provisioning with an empty participant set.
	ErrNoParticipants = errors.New("at least one participant is required")
	// ErrDirectParticipants rejects direct rooms without exactly one
	// counterpart.
	ErrDirectParticipants = errors.New("a direct room takes exactly one participant")
	// ErrGroupNameRequired rejects group rooms without a name.
	ErrGroupNameRequired = errors.New("a group room requires a name")
)

// CandidateDirectory selects which disjoint directory participant candidates
// are drawn from. Origin determines profile rendering only, not room
// behavior.
type CandidateDirectory string

const (
	CandidatesStaff     CandidateDirectory = "staff"
	CandidatesCustomers CandidateDirectory = "customers"
)

// Provisioner creates new direct or group rooms. On success the created room
// is spliced into the directory cache right away and a refresh is requested,
// so it is visible without a full reload; on failure no local room exists
// anywhere.
type Provisioner struct {
	client  Backend
	session *session.Session
	dir     *Directory
	events  *events
}

func newProvisioner(client Backend, sess *session.Session, dir *Directory, ev *events) *Provisioner {
	return &Provisioner{client: client, session: sess, dir: dir, events: ev}
}

// CreateRoom provisions a room from the selected participants. Direct rooms
// (isGroup false) take exactly one counterpart; group rooms require a name
// and allow multiple participants. The backend implicitly includes the
// creator.
func (p *Provisioner) CreateRoom(ctx context.Context, participantIDs []string, isGroup bool, name string) (models.Room, error) {
	if !p.session.Active() {
		return models.Room{}, session.ErrNoSession
	}
	if len(participantIDs) == 0 {
		return models.Room{}, ErrNoParticipants
	}
	if !isGroup && len(participantIDs) != 1 {
		return models.Room{}, ErrDirectParticipants
	}
	name = strings.TrimSpace(name)
	if isGroup && name == "" {
		return models.Room{}, ErrGroupNameRequired
	}

	room, err := p.client.CreateRoom(ctx, backend.CreateRoomRequest{
		ParticipantIDs: participantIDs,
		IsGroup:        isGroup,
		Name:           name,
	})
	telemetry.RecordRoomCreated(err)
	if err != nil {
		p.events.publish(Event{Kind: EventRoomCreateFailed, Err: err})
		logger.Warn("room_create_failed", "group", isGroup, "error", err)
		return models.Room{}, err
	}

	p.dir.Insert(room)
	p.dir.RequestRefresh()
	p.events.publish(Event{Kind: EventRoomCreated, RoomID: room.ID})
	logger.Info("room_created", "room", room.ID, "group", room.IsGroup, "participants", len(room.Participants))
	return room, nil
}

// Candidates lists participant candidates from the chosen directory.
func (p *Provisioner) Candidates(ctx context.Context, which CandidateDirectory) ([]models.Actor, error) {
	if !p.session.Active() {
		return nil, session.ErrNoSession
	}
	switch which {
	case CandidatesStaff:
		return p.client.ListStaff(ctx)
	case CandidatesCustomers:
		return p.client.ListCustomers(ctx)
	default:
		return nil, fmt.Errorf("unknown candidate directory: %s", which)
	}
}
