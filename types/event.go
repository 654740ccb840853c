package types

import (
	"time"

	"github.com/google/uuid"
)

// Names of the events emitted by the engine.
const (
	EventNameRegister    = "register"
	EventNameMessage     = "message"
	EventNameJoin        = "join"
	EventNameLeave       = "leave"
	EventNameRoomCreated = "room-created"
	EventNameRead        = "read"
	EventNamePin         = "pin"
	EventNameBookmark    = "bookmark"
	EventNameDelete      = "delete"
)

// Event is the unit handed to hub subscribers and to the persister whenever
// engine state changes. TargetFilter optionally restricts delivery to
// matching subscribers, it is compiled against filter.Env.
type Event struct {
	Id           string        `json:"id" gorm:"primaryKey"`
	Name         string        `json:"name" gorm:"index"`
	RoomId       string        `json:"room_id"`
	SenderId     string        `json:"sender_id"`
	MessageId    int64         `json:"message_id,omitempty"`
	TargetFilter string        `json:"target_filter,omitempty"`
	Tags         JSONStringMap `json:"tags,omitempty"`
	Created      time.Time     `json:"created"`
	History      bool          `json:"history" gorm:"-"` // set on events replayed from storage
}

func NewEvent(name string, room *Room, senderId string, tags map[string]string) *Event {
	evt := &Event{
		Id:       uuid.NewString(),
		Name:     name,
		SenderId: senderId,
		Tags:     tags,
		Created:  time.Now(),
	}
	if room != nil {
		evt.RoomId = room.Id
	}
	return evt
}
