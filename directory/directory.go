package directory

import (
	"sort"
	"strings"
	"sync"

	"github.com/folkengine/goname"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stanzadev/stanza-chat/config"
	"github.com/stanzadev/stanza-chat/globals"
	"github.com/stanzadev/stanza-chat/hub"
	"github.com/stanzadev/stanza-chat/persistence"
	"github.com/stanzadev/stanza-chat/types"
)

var (
	ErrDuplicateId    = errors.New("account id already taken")
	ErrAuthFailed     = errors.New("authentication failed")
	ErrSelfTarget     = errors.New("operation cannot target the own account")
	ErrUnknownAccount = errors.New("unknown account")
	ErrMissingField   = errors.New("required field is empty")
)

// Directory owns all accounts and the friend/block relationship graph.
// The directory lock only guards the account table; mutations of a single
// account take that account's lock. Friendship is unilateral: each side has
// to add the other, nothing enforces symmetry (except the seed policy, which
// explicitly friends both directions).
type Directory struct {
	accounts map[string]*types.Account
	seedIds  map[string]struct{}

	persister persistence.Persister
	hub       *hub.Hub

	sync.RWMutex
}

func New(persister persistence.Persister, h *hub.Hub) *Directory {
	return &Directory{
		accounts:  make(map[string]*types.Account),
		seedIds:   make(map[string]struct{}),
		persister: persister,
		hub:       h,
	}
}

// Register creates a new account. The id is immutable afterwards.
func (d *Directory) Register(id, password, nickname, email, phone string) (*types.Account, error) {
	id = strings.TrimSpace(id)
	password = strings.TrimSpace(password)
	nickname = strings.TrimSpace(nickname)
	if id == "" || password == "" || nickname == "" {
		return nil, errors.Wrap(ErrMissingField, "id, password and nickname are required")
	}
	if id == globals.SystemUserId {
		// reserved for engine-authored messages
		return nil, errors.Wrapf(ErrDuplicateId, "id %s", id)
	}
	acct := &types.Account{
		Id:       id,
		Password: password,
		Nickname: nickname,
		Email:    strings.TrimSpace(email),
		Phone:    strings.TrimSpace(phone),
		Friends:  types.JSONStringSlice{},
		Blocked:  types.JSONStringSlice{},
		Rooms:    make(map[string]*types.Room),
	}
	d.Lock()
	if _, ok := d.accounts[id]; ok {
		d.Unlock()
		return nil, errors.Wrapf(ErrDuplicateId, "id %s", id)
	}
	d.accounts[id] = acct
	d.Unlock()

	d.storeAccount(acct)
	d.hub.Publish(types.NewEvent(types.EventNameRegister, nil, acct.Id, nil))
	return acct, nil
}

// RegisterGuest creates a throwaway account with a generated nickname, for
// random-match use without prior registration.
func (d *Directory) RegisterGuest() (*types.Account, error) {
	nick := goname.New(goname.FantasyMap).FirstLast() + " (guest)"
	for i := 0; i < 5; i++ {
		id := "guest-" + uuid.NewString()[:8]
		acct, err := d.Register(id, uuid.NewString(), nick, "", "")
		if err == nil {
			return acct, nil
		}
		if !errors.Is(err, ErrDuplicateId) {
			return nil, err
		}
	}
	return nil, errors.Wrap(ErrDuplicateId, "could not allocate a guest id")
}

// Authenticate resolves an account by id and password.
func (d *Directory) Authenticate(id, password string) (*types.Account, error) {
	acct, err := d.Get(id)
	if err != nil {
		return nil, ErrAuthFailed
	}
	acct.RLock()
	defer acct.RUnlock()
	if acct.Password != password {
		return nil, ErrAuthFailed
	}
	return acct, nil
}

// Get resolves an account by id.
func (d *Directory) Get(id string) (*types.Account, error) {
	d.RLock()
	defer d.RUnlock()
	acct, ok := d.accounts[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownAccount, "id %s", id)
	}
	return acct, nil
}

// Accounts returns a snapshot of all accounts, sorted by id.
func (d *Directory) Accounts() []*types.Account {
	d.RLock()
	accounts := make([]*types.Account, 0, len(d.accounts))
	for _, acct := range d.accounts {
		accounts = append(accounts, acct)
	}
	d.RUnlock()
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Id < accounts[j].Id })
	return accounts
}

// AddFriend adds other to self's friend list. No-op if other is already a
// friend or is blocked by self. Unilateral: the reciprocal entry is the
// other side's (or the policy layer's) business.
func (d *Directory) AddFriend(selfId, otherId string) error {
	if selfId == otherId {
		return ErrSelfTarget
	}
	self, err := d.Get(selfId)
	if err != nil {
		return err
	}
	if _, err := d.Get(otherId); err != nil {
		return err
	}
	self.Lock()
	defer self.Unlock()
	if self.HasFriend(otherId) || self.HasBlocked(otherId) {
		return nil
	}
	self.Friends.Add(otherId)
	d.storeAccountLocked(self)
	return nil
}

// RemoveFriend is unilateral and idempotent.
func (d *Directory) RemoveFriend(selfId, otherId string) error {
	self, err := d.Get(selfId)
	if err != nil {
		return err
	}
	self.Lock()
	defer self.Unlock()
	self.Friends.Remove(otherId)
	d.storeAccountLocked(self)
	return nil
}

// Block is idempotent and also removes other from self's friends. The
// reverse (unblocking) does not restore the friendship.
func (d *Directory) Block(selfId, otherId string) error {
	if selfId == otherId {
		return ErrSelfTarget
	}
	self, err := d.Get(selfId)
	if err != nil {
		return err
	}
	if _, err := d.Get(otherId); err != nil {
		return err
	}
	self.Lock()
	defer self.Unlock()
	if self.HasBlocked(otherId) {
		return nil
	}
	self.Blocked.Add(otherId)
	self.Friends.Remove(otherId)
	d.storeAccountLocked(self)
	return nil
}

// Unblock is idempotent.
func (d *Directory) Unblock(selfId, otherId string) error {
	self, err := d.Get(selfId)
	if err != nil {
		return err
	}
	self.Lock()
	defer self.Unlock()
	self.Blocked.Remove(otherId)
	d.storeAccountLocked(self)
	return nil
}

func (d *Directory) IsFriend(selfId, otherId string) bool {
	self, err := d.Get(selfId)
	if err != nil {
		return false
	}
	self.RLock()
	defer self.RUnlock()
	return self.HasFriend(otherId)
}

func (d *Directory) IsBlocked(selfId, otherId string) bool {
	self, err := d.Get(selfId)
	if err != nil {
		return false
	}
	self.RLock()
	defer self.RUnlock()
	return self.HasBlocked(otherId)
}

// FindByEmail resolves the first account with exactly this email address,
// used for id recovery.
func (d *Directory) FindByEmail(email string) (*types.Account, error) {
	for _, acct := range d.Accounts() {
		acct.RLock()
		match := acct.Email == email
		acct.RUnlock()
		if match {
			return acct, nil
		}
	}
	return nil, errors.Wrapf(ErrUnknownAccount, "email %s", email)
}

// RecoverPassword returns the stored credential when both id and email
// match. The credential is opaque to the engine, this mirrors the account
// recovery flow on top of it.
func (d *Directory) RecoverPassword(id, email string) (string, error) {
	acct, err := d.Get(id)
	if err != nil {
		return "", ErrAuthFailed
	}
	acct.RLock()
	defer acct.RUnlock()
	if acct.Email != email {
		return "", ErrAuthFailed
	}
	return acct.Password, nil
}

func (d *Directory) UpdateNickname(id, nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return errors.Wrap(ErrMissingField, "nickname")
	}
	acct, err := d.Get(id)
	if err != nil {
		return err
	}
	acct.Lock()
	defer acct.Unlock()
	acct.Nickname = nickname
	d.storeAccountLocked(acct)
	return nil
}

func (d *Directory) UpdatePassword(id, current, updated string) error {
	updated = strings.TrimSpace(updated)
	if updated == "" {
		return errors.Wrap(ErrMissingField, "password")
	}
	acct, err := d.Get(id)
	if err != nil {
		return err
	}
	acct.Lock()
	defer acct.Unlock()
	if acct.Password != current {
		return ErrAuthFailed
	}
	acct.Password = updated
	d.storeAccountLocked(acct)
	return nil
}

func (d *Directory) UpdateEmail(id, email string) error {
	acct, err := d.Get(id)
	if err != nil {
		return err
	}
	acct.Lock()
	defer acct.Unlock()
	acct.Email = strings.TrimSpace(email)
	d.storeAccountLocked(acct)
	return nil
}

func (d *Directory) UpdatePhone(id, phone string) error {
	acct, err := d.Get(id)
	if err != nil {
		return err
	}
	acct.Lock()
	defer acct.Unlock()
	acct.Phone = strings.TrimSpace(phone)
	d.storeAccountLocked(acct)
	return nil
}

// Seed ensures the configured seed accounts exist and are mutually
// friended. Called once at boot, before any registration.
func (d *Directory) Seed(seeds []config.SeedAccount) error {
	for _, seed := range seeds {
		if _, err := d.Get(seed.Id); err == nil {
			d.markSeed(seed.Id)
			continue
		}
		if _, err := d.Register(seed.Id, seed.Password, seed.Nickname, seed.Email, seed.Phone); err != nil {
			return errors.Wrapf(err, "could not create seed account %s", seed.Id)
		}
		d.markSeed(seed.Id)
	}
	for _, a := range seeds {
		for _, b := range seeds {
			if a.Id == b.Id {
				continue
			}
			if err := d.AddFriend(a.Id, b.Id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Directory) markSeed(id string) {
	d.Lock()
	defer d.Unlock()
	d.seedIds[id] = struct{}{}
}

func (d *Directory) IsSeed(id string) bool {
	d.RLock()
	defer d.RUnlock()
	_, ok := d.seedIds[id]
	return ok
}

// ApplySeedPolicy friends a freshly registered account with every seed
// account, in both directions. An explicit post-registration step, not part
// of account construction; seed accounts themselves are exempt.
func (d *Directory) ApplySeedPolicy(acct *types.Account) {
	if d.IsSeed(acct.Id) {
		return
	}
	d.RLock()
	seedIds := make([]string, 0, len(d.seedIds))
	for id := range d.seedIds {
		seedIds = append(seedIds, id)
	}
	d.RUnlock()
	sort.Strings(seedIds)
	for _, seedId := range seedIds {
		if err := d.AddFriend(acct.Id, seedId); err != nil {
			globals.AppLogger.Error("could not auto-friend seed", "account", acct.Id, "seed", seedId, "error", err)
			continue
		}
		if err := d.AddFriend(seedId, acct.Id); err != nil {
			globals.AppLogger.Error("could not auto-friend back", "account", acct.Id, "seed", seedId, "error", err)
		}
	}
}

// Restore adopts previously persisted accounts. Called once at boot, before
// the directory is in use.
func (d *Directory) Restore(accounts []*types.Account) {
	d.Lock()
	defer d.Unlock()
	for _, acct := range accounts {
		if acct.Rooms == nil {
			acct.Rooms = make(map[string]*types.Room)
		}
		d.accounts[acct.Id] = acct
	}
}

// storeAccountLocked expects the caller to hold the account lock.
func (d *Directory) storeAccountLocked(acct *types.Account) {
	if d.persister == nil {
		return
	}
	if err := d.persister.StoreAccount(acct); err != nil {
		globals.AppLogger.Error("could not persist account", "account", acct.Id, "error", err)
	}
}

func (d *Directory) storeAccount(acct *types.Account) {
	acct.RLock()
	defer acct.RUnlock()
	d.storeAccountLocked(acct)
}
