package types

import (
	"sync"
	"time"
)

// Room is the single shared instance of one chat room. Exactly one Room
// exists per id, and every participant's account index references that same
// instance, so a mutation through any participant's path is visible to all
// others without propagation. The embedded lock guards Participants,
// Messages and all message flags.
type Room struct {
	sync.RWMutex `json:"-" gorm:"-"`

	Id           string          `json:"id" gorm:"primaryKey"`
	Name         string          `json:"name"` // display label, meaningful for group rooms
	IsGroup      bool            `json:"is_group"`
	Participants JSONStringSlice `json:"participants"`
	Pinned       bool            `json:"pinned"` // pinned in the room overview, room-global
	LastActivity time.Time       `json:"last_activity"`
	CreatedAt    time.Time       `json:"-"`
	UpdatedAt    time.Time       `json:"-"`

	// append-only, flags mutate in place, never re-sorted
	Messages []*Message `json:"-" gorm:"-"`
}

// The helpers below expect the caller to hold at least a read lock.

func (r *Room) HasParticipant(userId string) bool {
	return r.Participants.Contains(userId)
}

// Peer returns the other participant of a direct room, or "" if userId is
// not a participant or the room is a group room.
func (r *Room) Peer(userId string) string {
	if r.IsGroup {
		return ""
	}
	for _, p := range r.Participants {
		if p != userId {
			return p
		}
	}
	return ""
}

// MessageById resolves a message by id, nil if absent. Linear, the reply
// chains and flag operations address recent messages almost exclusively.
func (r *Room) MessageById(messageId int64) *Message {
	for _, msg := range r.Messages {
		if msg.Id == messageId {
			return msg
		}
	}
	return nil
}
