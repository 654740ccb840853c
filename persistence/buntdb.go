package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/stanzadev/stanza-chat/config"
	"github.com/stanzadev/stanza-chat/globals"
	"github.com/stanzadev/stanza-chat/types"
	"github.com/tidwall/buntdb"
)

type BuntDBPersist struct {
	db *buntdb.DB
}

func NewBuntPersister(cfg *config.Config) (Persister, error) {
	db, err := setupBuntDB(cfg)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, nil // no or wrong configuration, ignore the persister
	}
	return &BuntDBPersist{db}, nil
}

func setupBuntDB(cfg *config.Config) (*buntdb.DB, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, nil
	}
	db, err := buntdb.Open(cfg.PersistenceConfig.DSN)
	if err != nil {
		return nil, err
	}
	err = db.CreateIndex("eventsts", "event:*", buntdb.IndexJSON("created"))
	if err != nil && err != buntdb.ErrIndexExists {
		db.Close()
		return nil, err
	}
	return db, nil
}

func accountKey(id string) string { return "account:" + id }
func roomKey(id string) string    { return "room:" + id }
func messageKey(roomId string, msgId int64) string {
	return fmt.Sprintf("message:%s:%020d", roomId, msgId)
}

func (p *BuntDBPersist) setJSON(key string, v interface{}) error {
	ba, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(ba), nil)
		return err
	})
}

func (p *BuntDBPersist) getJSON(key string, v interface{}) error {
	return p.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(key)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(val), v)
	})
}

func (p *BuntDBPersist) StoreAccount(acct *types.Account) error {
	return p.setJSON(accountKey(acct.Id), acct)
}

func (p *BuntDBPersist) GetAccount(acct *types.Account) error {
	if acct.Id == "" {
		return errors.New("no account id")
	}
	return p.getJSON(accountKey(acct.Id), acct)
}

func (p *BuntDBPersist) GetAccounts() ([]*types.Account, error) {
	accounts := make([]*types.Account, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("account:*", func(key, val string) bool {
			acct := &types.Account{}
			if err := json.Unmarshal([]byte(val), acct); err == nil {
				accounts = append(accounts, acct)
			}
			return true
		})
	})
	return accounts, err
}

func (p *BuntDBPersist) DeleteAccount(acct *types.Account) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(accountKey(acct.Id))
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
}

func (p *BuntDBPersist) StoreRoom(room *types.Room) error {
	return p.setJSON(roomKey(room.Id), room)
}

func (p *BuntDBPersist) GetRoom(room *types.Room) error {
	if room.Id == "" {
		return errors.New("no room id")
	}
	return p.getJSON(roomKey(room.Id), room)
}

func (p *BuntDBPersist) GetRooms() ([]*types.Room, error) {
	rooms := make([]*types.Room, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("room:*", func(key, val string) bool {
			room := &types.Room{}
			if err := json.Unmarshal([]byte(val), room); err == nil {
				rooms = append(rooms, room)
			}
			return true
		})
	})
	return rooms, err
}

func (p *BuntDBPersist) DeleteRoom(room *types.Room) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		if _, err := tx.Delete(roomKey(room.Id)); err != nil && err != buntdb.ErrNotFound {
			return err
		}
		// drop the room's messages along with it
		keys := make([]string, 0)
		err := tx.AscendKeys("message:"+room.Id+":*", func(key, val string) bool {
			keys = append(keys, key)
			return true
		})
		if err != nil {
			return err
		}
		for _, key := range keys {
			if _, err := tx.Delete(key); err != nil && err != buntdb.ErrNotFound {
				return err
			}
		}
		return nil
	})
}

func (p *BuntDBPersist) StoreMessages(roomId string, msgs []*types.Message) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		for _, msg := range msgs {
			ba, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			if _, _, err := tx.Set(messageKey(roomId, msg.Id), string(ba), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *BuntDBPersist) GetMessages(roomId string) ([]*types.Message, error) {
	msgs := make([]*types.Message, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		// key order is creation order thanks to the zero-padded message id
		return tx.AscendKeys("message:"+roomId+":*", func(key, val string) bool {
			msg := &types.Message{}
			if err := json.Unmarshal([]byte(val), msg); err == nil {
				msgs = append(msgs, msg)
			}
			return true
		})
	})
	return msgs, err
}

func (p *BuntDBPersist) StoreEvents(events []*types.Event) error {
	return p.db.Update(func(tx *buntdb.Tx) error {
		for _, event := range events {
			ba, err := json.Marshal(event)
			if err != nil {
				globals.AppLogger.Error("could not marshal event", "error", err)
				return err
			}
			if _, _, err := tx.Set("event:"+event.Id, string(ba), nil); err != nil {
				globals.AppLogger.Error("could not store event", "error", err)
				return err
			}
		}
		return nil
	})
}

// GetEventHistory returns a slice of events from db.
//
// Use fromTs/toTs to restrict the time range, and fromIdx/maxCount for
// pagination. The resulting events have the History flag set.
func (p *BuntDBPersist) GetEventHistory(fromTs, toTs time.Time, fromIdx, maxCount int) ([]*types.Event, error) {
	events := make([]*types.Event, 0)

	fromCond := fmt.Sprintf(`{"created":"%s"}`, fromTs.In(time.UTC).Format(time.RFC3339))
	toCond := fmt.Sprintf(`{"created":"%s"}`, toTs.In(time.UTC).Format(time.RFC3339))

	err := p.db.View(func(tx *buntdb.Tx) error {
		currentNo := -1
		count := 0
		return tx.DescendRange("eventsts", toCond, fromCond, func(key, val string) bool {
			currentNo++
			if currentNo < fromIdx {
				return true
			}
			event := &types.Event{}
			if err := json.Unmarshal([]byte(val), event); err == nil {
				event.History = true
				events = append(events, event)
			}
			count++
			return maxCount <= 0 || count < maxCount
		})
	})
	return events, err
}

func (p *BuntDBPersist) Close() error {
	return p.db.Close()
}
