package timeline

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/stanzadev/stanza-chat/globals"
	"github.com/stanzadev/stanza-chat/hub"
	"github.com/stanzadev/stanza-chat/persistence"
	"github.com/stanzadev/stanza-chat/types"
)

var (
	ErrEmptyContent   = errors.New("message content is empty")
	ErrInvalidReply   = errors.New("reply target does not exist in this room")
	ErrNotFound       = errors.New("no such message")
	ErrAlreadyDeleted = errors.New("message is already deleted")
	ErrMessageDeleted = errors.New("message is deleted")
	ErrNotOwner       = errors.New("only the sender may delete a message")
)

// Timeline appends and mutates the per-room message logs. Message ids come
// from a single engine-wide counter, so ids are unique and monotonic across
// all rooms. All operations take the room lock; callers must not hold it.
type Timeline struct {
	lastId int64

	persister persistence.Persister
	hub       *hub.Hub
}

func New(persister persistence.Persister, h *hub.Hub) *Timeline {
	return &Timeline{persister: persister, hub: h}
}

// SetLastId moves the id counter past restored messages. Called once at
// boot, before any Append.
func (t *Timeline) SetLastId(id int64) {
	atomic.StoreInt64(&t.lastId, id)
}

// Append adds a message to the room and bumps the room's last activity to
// the message timestamp. Content is stored as given, only all-whitespace
// content is rejected. replyTo is 0 for a plain message, otherwise it must
// name an existing message of the same room; the target staying resolvable
// later is not guaranteed (it may be deleted afterwards).
func (t *Timeline) Append(room *types.Room, senderId, content string, replyTo int64) (*types.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	room.Lock()
	defer room.Unlock()
	if replyTo != 0 && room.MessageById(replyTo) == nil {
		return nil, errors.Wrapf(ErrInvalidReply, "id %d", replyTo)
	}
	msg := &types.Message{
		Id:        atomic.AddInt64(&t.lastId, 1),
		RoomId:    room.Id,
		SenderId:  senderId,
		Content:   content,
		CreatedAt: time.Now(),
		ReplyTo:   replyTo,
	}
	room.Messages = append(room.Messages, msg)
	room.LastActivity = msg.CreatedAt
	t.storeLocked(room, msg)

	tags := map[string]string{"messageId": strconv.FormatInt(msg.Id, 10)}
	if replyTo != 0 {
		tags["replyTo"] = strconv.FormatInt(replyTo, 10)
	}
	evt := types.NewEvent(types.EventNameMessage, room, senderId, tags)
	evt.MessageId = msg.Id
	t.hub.Publish(evt)
	return msg, nil
}

// MarkReadFrom marks every message not sent by the viewer as read. The flag
// is a property of the message, not of the viewer: once any recipient reads
// the room, the messages count as read for everyone.
func (t *Timeline) MarkReadFrom(room *types.Room, viewerId string) {
	room.Lock()
	defer room.Unlock()
	changed := make([]*types.Message, 0)
	for _, msg := range room.Messages {
		if msg.SenderId == viewerId || msg.Read {
			continue
		}
		msg.Read = true
		changed = append(changed, msg)
	}
	if len(changed) == 0 {
		return
	}
	t.storeLocked(room, changed...)
	t.hub.Publish(types.NewEvent(types.EventNameRead, room, viewerId, nil))
}

// SetPinned flags or unflags a message for pinned-first display.
func (t *Timeline) SetPinned(room *types.Room, id int64, pinned bool, actorId string) error {
	return t.setFlag(room, id, actorId, types.EventNamePin, pinned, func(msg *types.Message, v bool) {
		msg.Pinned = v
	})
}

// SetBookmarked flags or unflags a message as bookmarked.
func (t *Timeline) SetBookmarked(room *types.Room, id int64, bookmarked bool, actorId string) error {
	return t.setFlag(room, id, actorId, types.EventNameBookmark, bookmarked, func(msg *types.Message, v bool) {
		msg.Bookmarked = v
	})
}

func (t *Timeline) setFlag(room *types.Room, id int64, actorId, eventName string, value bool, apply func(*types.Message, bool)) error {
	room.Lock()
	defer room.Unlock()
	msg := room.MessageById(id)
	if msg == nil {
		return errors.Wrapf(ErrNotFound, "id %d", id)
	}
	if msg.Deleted {
		return errors.Wrapf(ErrMessageDeleted, "id %d", id)
	}
	apply(msg, value)
	t.storeLocked(room, msg)
	t.hub.Publish(types.NewEvent(eventName, room, actorId, map[string]string{
		"messageId": strconv.FormatInt(id, 10),
		"value":     strconv.FormatBool(value),
	}))
	return nil
}

// SoftDelete marks a message deleted. Only the sender may delete. The scope
// is recorded on the emitted event but does not change engine behavior: the
// deleted flag is global either way, so a self-scoped delete also hides the
// message for everyone.
func (t *Timeline) SoftDelete(room *types.Room, id int64, requesterId string, scope types.DeleteScope) error {
	room.Lock()
	defer room.Unlock()
	msg := room.MessageById(id)
	if msg == nil {
		return errors.Wrapf(ErrNotFound, "id %d", id)
	}
	if msg.Deleted {
		return errors.Wrapf(ErrAlreadyDeleted, "id %d", id)
	}
	if msg.SenderId != requesterId {
		return errors.Wrapf(ErrNotOwner, "message %d belongs to %s", id, msg.SenderId)
	}
	msg.Deleted = true
	t.storeLocked(room, msg)
	t.hub.Publish(types.NewEvent(types.EventNameDelete, room, requesterId, map[string]string{
		"messageId": strconv.FormatInt(id, 10),
		"scope":     scope.String(),
	}))
	return nil
}

// FindById resolves a message of the room, deleted or not.
func (t *Timeline) FindById(room *types.Room, id int64) (*types.Message, error) {
	room.RLock()
	defer room.RUnlock()
	msg := room.MessageById(id)
	if msg == nil {
		return nil, errors.Wrapf(ErrNotFound, "id %d", id)
	}
	return msg, nil
}

// storeLocked expects the caller to hold the room lock.
func (t *Timeline) storeLocked(room *types.Room, msgs ...*types.Message) {
	if t.persister == nil {
		return
	}
	if err := t.persister.StoreMessages(room.Id, msgs); err != nil {
		globals.AppLogger.Error("could not persist messages", "room", room.Id, "error", err)
	}
	if err := t.persister.StoreRoom(room); err != nil {
		globals.AppLogger.Error("could not persist room", "room", room.Id, "error", err)
	}
}
