package types

import "sync"

// Account is a registered user of the chat service. Identity fields are set
// at registration; the profile fields, the friend/block sets and the room
// index are mutated only through the directory and registry operations, which
// take the embedded lock. The id is immutable.
type Account struct {
	sync.RWMutex `json:"-" gorm:"-"`

	Id       string `json:"id" gorm:"primaryKey"`
	Password string `json:"password"` // opaque credential, compared by equality
	Nickname string `json:"nickname"` // mutable, not unique
	Email    string `json:"email"`
	Phone    string `json:"phone"`

	Friends JSONStringSlice `json:"friends"`
	Blocked JSONStringSlice `json:"blocked"`

	// Rooms indexes the shared room instances this account participates in,
	// keyed by the immutable room id. It always holds the same *Room pointer
	// as the registry table, never a copy. Not persisted: membership is
	// rebuilt from the rooms' participant sets at load time.
	Rooms map[string]*Room `json:"-" gorm:"-"`
}

// The helpers below expect the caller to hold the account lock.

func (a *Account) HasFriend(userId string) bool {
	return a.Friends.Contains(userId)
}

func (a *Account) HasBlocked(userId string) bool {
	return a.Blocked.Contains(userId)
}

// RoomIds returns the ids in the room index, in no particular order.
func (a *Account) RoomIds() []string {
	ids := make([]string, 0, len(a.Rooms))
	for id := range a.Rooms {
		ids = append(ids, id)
	}
	return ids
}
