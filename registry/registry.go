package registry

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/stanzadev/stanza-chat/directory"
	"github.com/stanzadev/stanza-chat/globals"
	"github.com/stanzadev/stanza-chat/hub"
	"github.com/stanzadev/stanza-chat/persistence"
	"github.com/stanzadev/stanza-chat/timeline"
	"github.com/stanzadev/stanza-chat/types"
)

var (
	ErrBlocked    = errors.New("blocked between the two accounts")
	ErrNotFriends = errors.New("can only invite friends")
	ErrNotGroup   = errors.New("not a group room")
	ErrNoMatch    = errors.New("no eligible account for a random match")
)

// Registry owns all rooms. There is exactly one *types.Room per room id;
// every participating account's Rooms map holds that same pointer, keyed by
// the immutable room id. Lock order everywhere: account locks ascending by
// id first, then the room lock.
type Registry struct {
	rooms map[string]*types.Room

	dir       *directory.Directory
	timeline  *timeline.Timeline
	persister persistence.Persister
	hub       *hub.Hub
	cron      *cron.Cron

	sync.RWMutex
}

func New(dir *directory.Directory, tl *timeline.Timeline, persister persistence.Persister, h *hub.Hub) *Registry {
	return &Registry{
		rooms:     make(map[string]*types.Room),
		dir:       dir,
		timeline:  tl,
		persister: persister,
		hub:       h,
	}
}

func (r *Registry) Get(id string) (*types.Room, error) {
	r.RLock()
	defer r.RUnlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, errors.Errorf("no such room %s", id)
	}
	return room, nil
}

// Rooms returns a snapshot of all rooms, sorted by id.
func (r *Registry) Rooms() []*types.Room {
	r.RLock()
	rooms := make([]*types.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.RUnlock()
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Id < rooms[j].Id })
	return rooms
}

// FindDirectRoom returns the existing direct room between self and the
// peer, or nil when there is none.
func (r *Registry) FindDirectRoom(self *types.Account, peerId string) *types.Room {
	self.RLock()
	defer self.RUnlock()
	for _, room := range self.Rooms {
		room.RLock()
		match := !room.IsGroup && room.HasParticipant(peerId)
		room.RUnlock()
		if match {
			return room
		}
	}
	return nil
}

// CreateDirectRoom opens a new two-person room. A block in either direction
// forbids it. Callers wanting at most one direct room per pair consult
// FindDirectRoom first; random matching deliberately skips that and may
// open a second room with the same peer.
func (r *Registry) CreateDirectRoom(self, peer *types.Account) (*types.Room, error) {
	if self.Id == peer.Id {
		return nil, directory.ErrSelfTarget
	}
	if r.dir.IsBlocked(self.Id, peer.Id) || r.dir.IsBlocked(peer.Id, self.Id) {
		return nil, errors.Wrapf(ErrBlocked, "%s and %s", self.Id, peer.Id)
	}
	peer.RLock()
	peerNick := peer.Nickname
	peer.RUnlock()
	now := time.Now()
	room := &types.Room{
		Id:           uuid.NewString(),
		Name:         peerNick,
		IsGroup:      false,
		Participants: types.JSONStringSlice{self.Id, peer.Id},
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.attach(room, self, peer)
	r.hub.Publish(types.NewEvent(types.EventNameRoomCreated, room, self.Id, nil))
	return room, nil
}

// CreateGroupRoom opens a named room with the owner as sole initial
// participant. Further participants join via Invite.
func (r *Registry) CreateGroupRoom(owner *types.Account, name string) (*types.Room, error) {
	now := time.Now()
	room := &types.Room{
		Id:           uuid.NewString(),
		Name:         name,
		IsGroup:      true,
		Participants: types.JSONStringSlice{owner.Id},
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.attach(room, owner)
	r.hub.Publish(types.NewEvent(types.EventNameRoomCreated, room, owner.Id, nil))
	return room, nil
}

func (r *Registry) attach(room *types.Room, accounts ...*types.Account) {
	lockAccounts(accounts)
	room.Lock()
	for _, acct := range accounts {
		acct.Rooms[room.Id] = room
	}
	r.storeRoomLocked(room)
	room.Unlock()
	unlockAccounts(accounts)

	r.Lock()
	r.rooms[room.Id] = room
	r.Unlock()
}

// Invite adds a friend of the inviter to a group room. Idempotent for
// accounts already in the room.
func (r *Registry) Invite(room *types.Room, inviter, invitee *types.Account) error {
	if !room.IsGroup {
		return errors.Wrapf(ErrNotGroup, "room %s", room.Id)
	}
	if invitee.Id == inviter.Id {
		return directory.ErrSelfTarget
	}
	if !r.dir.IsFriend(inviter.Id, invitee.Id) {
		return errors.Wrapf(ErrNotFriends, "%s and %s", inviter.Id, invitee.Id)
	}
	invitee.Lock()
	room.Lock()
	if room.HasParticipant(invitee.Id) {
		room.Unlock()
		invitee.Unlock()
		return nil
	}
	room.Participants.Add(invitee.Id)
	room.UpdatedAt = time.Now()
	invitee.Rooms[room.Id] = room
	r.storeRoomLocked(room)
	room.Unlock()
	invitee.Unlock()

	r.hub.Publish(types.NewEvent(types.EventNameJoin, room, inviter.Id, map[string]string{"invitee": invitee.Id}))
	return nil
}

// Leave removes the account from the room and drops the account's index
// entry for exactly this room id. Group rooms get a system notice about the
// departure; direct rooms do not. Empty rooms stay around until the prune
// sweep collects them.
func (r *Registry) Leave(room *types.Room, acct *types.Account) error {
	acct.Lock()
	room.Lock()
	room.Participants.Remove(acct.Id)
	room.UpdatedAt = time.Now()
	delete(acct.Rooms, room.Id)
	r.storeRoomLocked(room)
	nickname := acct.Nickname
	isGroup := room.IsGroup
	room.Unlock()
	acct.Unlock()

	if isGroup {
		notice := fmt.Sprintf("%s left the room", nickname)
		if _, err := r.timeline.Append(room, globals.SystemUserId, notice, 0); err != nil {
			globals.AppLogger.Error("could not append departure notice", "room", room.Id, "error", err)
		}
	}
	r.hub.Publish(types.NewEvent(types.EventNameLeave, room, acct.Id, nil))
	return nil
}

// SetOverviewPin marks the room as starred in room lists. Display
// decoration only, sorting is unaffected.
func (r *Registry) SetOverviewPin(room *types.Room, pinned bool) {
	room.Lock()
	defer room.Unlock()
	room.Pinned = pinned
	room.UpdatedAt = time.Now()
	r.storeRoomLocked(room)
}

// RandomMatch opens a direct room with a random account that neither
// blocks nor is blocked by self. Existing rooms with the chosen peer are
// not reused.
func (r *Registry) RandomMatch(self *types.Account) (*types.Room, error) {
	candidates := make([]*types.Account, 0)
	for _, acct := range r.dir.Accounts() {
		if acct.Id == self.Id {
			continue
		}
		if r.dir.IsBlocked(self.Id, acct.Id) || r.dir.IsBlocked(acct.Id, self.Id) {
			continue
		}
		candidates = append(candidates, acct)
	}
	if len(candidates) == 0 {
		return nil, ErrNoMatch
	}
	peer := candidates[rand.Intn(len(candidates))]
	return r.CreateDirectRoom(self, peer)
}

// PruneEmpty removes rooms every participant has left.
func (r *Registry) PruneEmpty() {
	r.Lock()
	empty := make([]*types.Room, 0)
	for id, room := range r.rooms {
		room.RLock()
		if len(room.Participants) == 0 {
			empty = append(empty, room)
			delete(r.rooms, id)
		}
		room.RUnlock()
	}
	r.Unlock()

	for _, room := range empty {
		globals.AppLogger.Info("pruning empty room", "room", room.Id)
		if r.persister != nil {
			if err := r.persister.DeleteRoom(room); err != nil {
				globals.AppLogger.Error("could not delete room", "room", room.Id, "error", err)
			}
		}
	}
}

// StartPruning schedules PruneEmpty on the given cron expression.
func (r *Registry) StartPruning(schedule string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(schedule, r.PruneEmpty); err != nil {
		return errors.Wrapf(err, "invalid prune schedule %q", schedule)
	}
	c.Start()
	r.cron = c
	return nil
}

func (r *Registry) StopPruning() {
	if r.cron != nil {
		r.cron.Stop()
	}
}

// Restore loads accounts, rooms and messages from the persister and
// rebuilds the in-memory state, including each account's room index from
// the room participant sets. Called once at boot.
func (r *Registry) Restore() error {
	if r.persister == nil {
		return nil
	}
	accounts, err := r.persister.GetAccounts()
	if err != nil {
		return errors.Wrap(err, "could not restore accounts")
	}
	r.dir.Restore(accounts)

	rooms, err := r.persister.GetRooms()
	if err != nil {
		return errors.Wrap(err, "could not restore rooms")
	}
	var lastId int64
	for _, room := range rooms {
		msgs, err := r.persister.GetMessages(room.Id)
		if err != nil {
			return errors.Wrapf(err, "could not restore messages of room %s", room.Id)
		}
		room.Messages = msgs
		for _, msg := range msgs {
			if msg.Id > lastId {
				lastId = msg.Id
			}
		}
		r.rooms[room.Id] = room
		for _, userId := range room.Participants {
			acct, err := r.dir.Get(userId)
			if err != nil {
				globals.AppLogger.Warn("room references unknown account", "room", room.Id, "account", userId)
				continue
			}
			acct.Rooms[room.Id] = room
		}
	}
	r.timeline.SetLastId(lastId)
	globals.AppLogger.Info("state restored", "accounts", len(accounts), "rooms", len(rooms), "lastMessageId", lastId)
	return nil
}

// storeRoomLocked expects the caller to hold the room lock.
func (r *Registry) storeRoomLocked(room *types.Room) {
	if r.persister == nil {
		return
	}
	if err := r.persister.StoreRoom(room); err != nil {
		globals.AppLogger.Error("could not persist room", "room", room.Id, "error", err)
	}
}

func lockAccounts(accounts []*types.Account) {
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Id < accounts[j].Id })
	for _, acct := range accounts {
		acct.Lock()
	}
}

func unlockAccounts(accounts []*types.Account) {
	for i := len(accounts) - 1; i >= 0; i-- {
		accounts[i].Unlock()
	}
}
