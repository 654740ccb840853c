package persistence

import (
	"time"

	"github.com/pkg/errors"
	"github.com/stanzadev/stanza-chat/config"
	"github.com/stanzadev/stanza-chat/types"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormPersist struct {
	db *gorm.DB
}

func NewGormPersister(cfg *config.Config) (Persister, error) {
	db, err := setupGormDB(cfg)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, nil // no or wrong configuration, ignore the persister
	}
	return &GormPersist{db: db}, nil
}

func setupGormDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, nil
	}
	var dial gorm.Dialector
	switch cfg.PersistenceConfig.Type {
	case "postgres":
		dial = postgres.Open(cfg.PersistenceConfig.DSN)

	case "sqlite":
		dial = sqlite.Open(cfg.PersistenceConfig.DSN)

	default:
		return nil, errors.New("invalid gorm configuration")
	}
	db, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	db.Migrator().AutoMigrate(&types.Account{}, &types.Room{}, &types.Message{}, &types.Event{})
	return db, nil
}

func (p *GormPersist) StoreAccount(acct *types.Account) error {
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(acct).Error
}

func (p *GormPersist) GetAccount(acct *types.Account) error {
	return p.db.First(acct).Error
}

func (p *GormPersist) GetAccounts() ([]*types.Account, error) {
	accounts := make([]*types.Account, 0)
	err := p.db.Find(&accounts).Error
	return accounts, err
}

func (p *GormPersist) DeleteAccount(acct *types.Account) error {
	return p.db.Delete(acct).Error
}

func (p *GormPersist) StoreRoom(room *types.Room) error {
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(room).Error
}

func (p *GormPersist) GetRoom(room *types.Room) error {
	return p.db.First(room).Error
}

func (p *GormPersist) GetRooms() ([]*types.Room, error) {
	rooms := make([]*types.Room, 0)
	err := p.db.Find(&rooms).Error
	return rooms, err
}

func (p *GormPersist) DeleteRoom(room *types.Room) error {
	if err := p.db.Where("room_id = ?", room.Id).Delete(&types.Message{}).Error; err != nil {
		return err
	}
	return p.db.Delete(room).Error
}

func (p *GormPersist) StoreMessages(roomId string, msgs []*types.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return p.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&msgs).Error
}

func (p *GormPersist) GetMessages(roomId string) ([]*types.Message, error) {
	msgs := make([]*types.Message, 0)
	err := p.db.Where("room_id = ?", roomId).Order("id").Find(&msgs).Error
	return msgs, err
}

func (p *GormPersist) StoreEvents(events []*types.Event) error {
	if len(events) == 0 {
		return nil
	}
	return p.db.Create(&events).Error
}

func (p *GormPersist) GetEventHistory(fromTs, toTs time.Time, fromIdx, maxCount int) ([]*types.Event, error) {
	events := make([]*types.Event, 0)
	err := p.db.Where("created BETWEEN ? AND ?", fromTs, toTs).Order("created DESC").Limit(maxCount).Offset(fromIdx).Find(&events).Error
	if err != nil {
		return nil, err
	}
	for _, event := range events {
		event.History = true
	}
	return events, nil
}

func (p *GormPersist) Close() error {
	return nil
}
