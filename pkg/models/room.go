package models

import "time"

// Participant is room membership with a denormalized user snapshot taken at
// room-fetch time. The snapshot is a weak reference: looked up by id, not
// owned by the room.
type Participant struct {
	UserID string `json:"userId"`
	User   Actor  `json:"user"`
}

// Room is a conversation. The participant set is fixed at creation;
// membership edits are out of scope for this core. UpdatedAt drives
// directory ordering and UnreadCount is per-actor, both authoritative from
// the backend.
type Room struct {
	ID           string        `json:"id"`
	IsGroup      bool          `json:"isGroup"`
	Name         string        `json:"name,omitempty"`
	Participants []Participant `json:"participants"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	UnreadCount  int           `json:"unreadCount"`
	// LastMessage is the optional most-recent-message preview included in
	// directory listings.
	LastMessage *Message `json:"lastMessage,omitempty"`
}

// Counterpart returns the participant that is not the given actor. For
// direct rooms this is the conversation partner; for group rooms it returns
// the first non-self participant.
func (r Room) Counterpart(actorID string) (Participant, bool) {
	for _, p := range r.Participants {
		if p.UserID != actorID {
			return p, true
		}
	}
	return Participant{}, false
}

// DisplayName returns the room name for groups, or the counterpart's name
// for direct rooms.
func (r Room) DisplayName(actorID string) string {
	if r.IsGroup {
		return r.Name
	}
	if p, ok := r.Counterpart(actorID); ok {
		return p.User.DisplayName
	}
	return r.Name
}
