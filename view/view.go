package view

import (
	"sort"
	"strings"
	"time"

	"github.com/stanzadev/stanza-chat/directory"
	"github.com/stanzadev/stanza-chat/types"
)

// View derives read-only projections of the engine state. Nothing in this
// package mutates an account, a room or a message.
type View struct {
	dir *directory.Directory
}

func New(dir *directory.Directory) *View {
	return &View{dir: dir}
}

// UnreadCount counts messages the viewer has not read yet. Own messages and
// deleted messages never count.
func (v *View) UnreadCount(room *types.Room, viewerId string) int {
	room.RLock()
	defer room.RUnlock()
	count := 0
	for _, msg := range room.Messages {
		if msg.SenderId != viewerId && !msg.Read && !msg.Deleted {
			count++
		}
	}
	return count
}

// VisibleMessages returns the room's messages for display: deleted ones are
// dropped, pinned ones come first, both partitions keep insertion order.
func (v *View) VisibleMessages(room *types.Room) []*types.Message {
	room.RLock()
	defer room.RUnlock()
	pinned := make([]*types.Message, 0)
	normal := make([]*types.Message, 0, len(room.Messages))
	for _, msg := range room.Messages {
		if msg.Deleted {
			continue
		}
		if msg.Pinned {
			pinned = append(pinned, msg)
		} else {
			normal = append(normal, msg)
		}
	}
	return append(pinned, normal...)
}

// Bookmarks returns the room's bookmarked, non-deleted messages in
// insertion order.
func (v *View) Bookmarks(room *types.Room) []*types.Message {
	room.RLock()
	defer room.RUnlock()
	marked := make([]*types.Message, 0)
	for _, msg := range room.Messages {
		if msg.Bookmarked && !msg.Deleted {
			marked = append(marked, msg)
		}
	}
	return marked
}

// DisplayName resolves the room title for a viewer. Group rooms carry their
// own name; a direct room shows the other participant's current nickname,
// falling back to the stored room name when the peer cannot be resolved.
func (v *View) DisplayName(room *types.Room, viewerId string) string {
	room.RLock()
	if room.IsGroup {
		name := room.Name
		room.RUnlock()
		return name
	}
	peerId := room.Peer(viewerId)
	fallback := room.Name
	room.RUnlock()
	if peerId == "" {
		return fallback
	}
	peer, err := v.dir.Get(peerId)
	if err != nil {
		return fallback
	}
	peer.RLock()
	defer peer.RUnlock()
	return peer.Nickname
}

// SortedByRecency orders rooms newest activity first; ties keep the
// incoming order. The overview pin is display decoration and does not
// affect the order. The input slice is not modified.
func (v *View) SortedByRecency(rooms []*types.Room) []*types.Room {
	activity := make(map[string]time.Time, len(rooms))
	for _, room := range rooms {
		room.RLock()
		activity[room.Id] = room.LastActivity
		room.RUnlock()
	}
	sorted := make([]*types.Room, len(rooms))
	copy(sorted, rooms)
	sort.SliceStable(sorted, func(i, j int) bool {
		return activity[sorted[i].Id].After(activity[sorted[j].Id])
	})
	return sorted
}

// SortedByUnread orders rooms by the viewer's unread count, highest first;
// ties keep the incoming order. The input slice is not modified.
func (v *View) SortedByUnread(rooms []*types.Room, viewerId string) []*types.Room {
	counts := make(map[string]int, len(rooms))
	for _, room := range rooms {
		counts[room.Id] = v.UnreadCount(room, viewerId)
	}
	sorted := make([]*types.Room, len(rooms))
	copy(sorted, rooms)
	sort.SliceStable(sorted, func(i, j int) bool {
		return counts[sorted[i].Id] > counts[sorted[j].Id]
	})
	return sorted
}

// MessageMatch is a search hit. Index is the position within the room's
// full message log, deleted entries included, so hits can be located in
// the raw timeline.
type MessageMatch struct {
	Index   int
	Message *types.Message
}

// SearchMessages finds non-deleted messages containing the keyword,
// case-insensitively.
func (v *View) SearchMessages(room *types.Room, keyword string) []MessageMatch {
	needle := strings.ToLower(keyword)
	room.RLock()
	defer room.RUnlock()
	matches := make([]MessageMatch, 0)
	for i, msg := range room.Messages {
		if msg.Deleted {
			continue
		}
		if strings.Contains(strings.ToLower(msg.Content), needle) {
			matches = append(matches, MessageMatch{Index: i, Message: msg})
		}
	}
	return matches
}

// SearchUsers finds accounts whose id or nickname contains the keyword,
// case-insensitively, excluding the searching account. Results are sorted
// by id.
func (v *View) SearchUsers(keyword, excludingId string) []*types.Account {
	needle := strings.ToLower(keyword)
	found := make([]*types.Account, 0)
	for _, acct := range v.dir.Accounts() {
		if acct.Id == excludingId {
			continue
		}
		acct.RLock()
		match := strings.Contains(strings.ToLower(acct.Id), needle) ||
			strings.Contains(strings.ToLower(acct.Nickname), needle)
		acct.RUnlock()
		if match {
			found = append(found, acct)
		}
	}
	return found
}

// Rooms snapshots the account's room index.
func (v *View) Rooms(acct *types.Account) []*types.Room {
	acct.RLock()
	defer acct.RUnlock()
	rooms := make([]*types.Room, 0, len(acct.Rooms))
	for _, room := range acct.Rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Id < rooms[j].Id })
	return rooms
}
