package types

import "time"

// DeleteScope selects who a soft deletion is meant to affect. The engine
// keeps a single deleted flag per message, so both scopes currently hide the
// message for everyone; the requested scope is recorded on the emitted event.
type DeleteScope int

const (
	DeleteScopeSelf DeleteScope = iota
	DeleteScopeEveryone
)

func (s DeleteScope) String() string {
	if s == DeleteScopeSelf {
		return "self"
	}
	return "everyone"
}

// Message is one entry of a room timeline. Ids are unique across all rooms
// and strictly increasing in creation order. Sender, content and creation
// time are immutable after append; only the status flags change, in place,
// under the room lock.
type Message struct {
	Id         int64     `json:"id" gorm:"primaryKey"`
	RoomId     string    `json:"room_id" gorm:"index"`
	SenderId   string    `json:"sender_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	Read       bool      `json:"read"` // global to the message, not per viewer
	Deleted    bool      `json:"deleted"`
	Pinned     bool      `json:"pinned"`
	Bookmarked bool      `json:"bookmarked"`
	ReplyTo    int64     `json:"reply_to,omitempty"` // 0 = not a reply
}
