package persistence

import (
	"time"

	"github.com/pkg/errors"
	"github.com/stanzadev/stanza-chat/config"
	"github.com/stanzadev/stanza-chat/types"
)

// A Persister mirrors the in-memory engine state. It is optional: when no
// backend is configured, NewPersister returns nil and every call site is
// expected to nil-guard. The engine never reads through the persister at
// runtime, it only restores from it at boot.
//
// Store* calls are made while the caller holds the entity's lock, so the
// implementations may read the entity's fields without further
// synchronization. Accounts are stored without their room index; membership
// is rebuilt from the rooms' participant sets on restore.
type Persister interface {
	StoreAccount(*types.Account) error
	GetAccount(*types.Account) error
	GetAccounts() ([]*types.Account, error)
	DeleteAccount(*types.Account) error
	StoreRoom(*types.Room) error
	GetRoom(*types.Room) error
	GetRooms() ([]*types.Room, error)
	DeleteRoom(*types.Room) error
	StoreMessages(roomId string, msgs []*types.Message) error
	GetMessages(roomId string) ([]*types.Message, error)
	StoreEvents([]*types.Event) error
	GetEventHistory(fromTs, toTs time.Time, fromIdx, maxCount int) ([]*types.Event, error)
	Close() error
}

// NewPersister returns the backend selected by the configuration, or nil if
// none is configured.
func NewPersister(cfg *config.Config) (Persister, error) {
	switch cfg.PersistenceConfig.Type {
	case "":
		return nil, nil
	case "buntdb":
		return NewBuntPersister(cfg)
	case "sqlite", "postgres":
		return NewGormPersister(cfg)
	}
	return nil, errors.Errorf("unknown persistence type %q", cfg.PersistenceConfig.Type)
}
