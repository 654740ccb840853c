package persistence

import (
	"testing"
	"time"

	"github.com/stanzadev/stanza-chat/config"
	"github.com/stanzadev/stanza-chat/types"
	"github.com/stretchr/testify/assert"
)

func newTestPersister(t *testing.T) Persister {
	t.Helper()
	cfg := &config.Config{
		PersistenceConfig: config.PersistenceConfig{Type: "buntdb", DSN: ":memory:"},
	}
	p, err := NewPersister(cfg)
	assert.NoError(t, err)
	assert.NotNil(t, p)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestNoPersistenceConfigured(t *testing.T) {
	p, err := NewPersister(&config.Config{})
	assert.NoError(t, err)
	assert.Nil(t, p)

	_, err = NewPersister(&config.Config{
		PersistenceConfig: config.PersistenceConfig{Type: "redis", DSN: "x"},
	})
	assert.Error(t, err)
}

func TestAccountRoundTrip(t *testing.T) {
	p := newTestPersister(t)

	acct := &types.Account{
		Id:       "alice",
		Password: "pw",
		Nickname: "Alice",
		Email:    "alice@example.com",
		Friends:  types.JSONStringSlice{"bob"},
		Blocked:  types.JSONStringSlice{},
	}
	assert.NoError(t, p.StoreAccount(acct))

	got := &types.Account{Id: "alice"}
	assert.NoError(t, p.GetAccount(got))
	assert.Equal(t, "Alice", got.Nickname)
	assert.Equal(t, types.JSONStringSlice{"bob"}, got.Friends)

	// upsert
	acct.Nickname = "Allie"
	assert.NoError(t, p.StoreAccount(acct))
	accounts, err := p.GetAccounts()
	assert.NoError(t, err)
	assert.Len(t, accounts, 1)
	assert.Equal(t, "Allie", accounts[0].Nickname)

	assert.NoError(t, p.DeleteAccount(acct))
	assert.NoError(t, p.DeleteAccount(acct))
	assert.Error(t, p.GetAccount(&types.Account{Id: "alice"}))
}

func TestRoomAndMessages(t *testing.T) {
	p := newTestPersister(t)

	room := &types.Room{
		Id:           "room-1",
		Name:         "general",
		IsGroup:      true,
		Participants: types.JSONStringSlice{"alice", "bob"},
		CreatedAt:    time.Now(),
	}
	assert.NoError(t, p.StoreRoom(room))

	msgs := []*types.Message{
		{Id: 1, RoomId: room.Id, SenderId: "alice", Content: "hi", CreatedAt: time.Now()},
		{Id: 2, RoomId: room.Id, SenderId: "bob", Content: "hello", CreatedAt: time.Now()},
		{Id: 10, RoomId: room.Id, SenderId: "alice", Content: "later", CreatedAt: time.Now()},
	}
	assert.NoError(t, p.StoreMessages(room.Id, msgs))

	got, err := p.GetMessages(room.Id)
	assert.NoError(t, err)
	assert.Len(t, got, 3)
	// returned in id order
	assert.Equal(t, int64(1), got[0].Id)
	assert.Equal(t, int64(2), got[1].Id)
	assert.Equal(t, int64(10), got[2].Id)

	// flag updates land
	msgs[0].Deleted = true
	assert.NoError(t, p.StoreMessages(room.Id, msgs[:1]))
	got, err = p.GetMessages(room.Id)
	assert.NoError(t, err)
	assert.True(t, got[0].Deleted)

	rooms, err := p.GetRooms()
	assert.NoError(t, err)
	assert.Len(t, rooms, 1)
	assert.Equal(t, "general", rooms[0].Name)

	// deleting a room takes its messages with it
	assert.NoError(t, p.DeleteRoom(room))
	assert.Error(t, p.GetRoom(&types.Room{Id: room.Id}))
	got, err = p.GetMessages(room.Id)
	assert.NoError(t, err)
	assert.Len(t, got, 0)
}

func TestEventHistory(t *testing.T) {
	p := newTestPersister(t)

	base := time.Now().Add(-time.Hour)
	events := make([]*types.Event, 0, 5)
	for i := 0; i < 5; i++ {
		evt := types.NewEvent(types.EventNameMessage, nil, "alice", nil)
		evt.Created = base.Add(time.Duration(i) * time.Minute)
		events = append(events, evt)
	}
	assert.NoError(t, p.StoreEvents(events))

	var from time.Time
	got, err := p.GetEventHistory(from, time.Now(), 0, 10)
	assert.NoError(t, err)
	assert.Len(t, got, 5)
	// newest first, flagged as history
	assert.Equal(t, events[4].Id, got[0].Id)
	assert.Equal(t, events[0].Id, got[4].Id)
	assert.True(t, got[0].History)

	got, err = p.GetEventHistory(from, time.Now(), 1, 2)
	assert.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, events[3].Id, got[0].Id)

	// the window excludes events outside of it
	got, err = p.GetEventHistory(base.Add(150*time.Second), time.Now(), 0, 10)
	assert.NoError(t, err)
	assert.Len(t, got, 2)
}
