package directory

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stanzadev/stanza-chat/config"
	"github.com/stretchr/testify/assert"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	d := New(nil, nil)

	acct, err := d.Register("alice", "secret", "Alice", "alice@example.com", "")
	assert.NoError(t, err)
	assert.Equal(t, "alice", acct.Id)

	_, err = d.Register("alice", "other", "Alice II", "", "")
	assert.True(t, errors.Is(err, ErrDuplicateId))

	_, err = d.Register("system", "x", "Sneaky", "", "")
	assert.True(t, errors.Is(err, ErrDuplicateId))

	_, err = d.Register("", "secret", "NoId", "", "")
	assert.True(t, errors.Is(err, ErrMissingField))

	got, err := d.Authenticate("alice", "secret")
	assert.NoError(t, err)
	assert.Same(t, acct, got)

	_, err = d.Authenticate("alice", "wrong")
	assert.Equal(t, ErrAuthFailed, err)
	_, err = d.Authenticate("nobody", "secret")
	assert.Equal(t, ErrAuthFailed, err)
}

func TestFriendAndBlock(t *testing.T) {
	d := New(nil, nil)
	_, err := d.Register("alice", "pw", "Alice", "", "")
	assert.NoError(t, err)
	_, err = d.Register("bob", "pw", "Bob", "", "")
	assert.NoError(t, err)

	assert.Equal(t, ErrSelfTarget, d.AddFriend("alice", "alice"))
	assert.True(t, errors.Is(d.AddFriend("alice", "nobody"), ErrUnknownAccount))

	assert.NoError(t, d.AddFriend("alice", "bob"))
	assert.True(t, d.IsFriend("alice", "bob"))
	// unilateral
	assert.False(t, d.IsFriend("bob", "alice"))

	// adding twice does not duplicate
	assert.NoError(t, d.AddFriend("alice", "bob"))
	alice, _ := d.Get("alice")
	assert.Len(t, alice.Friends, 1)

	// blocking removes the friendship, unblocking does not restore it
	assert.NoError(t, d.Block("alice", "bob"))
	assert.True(t, d.IsBlocked("alice", "bob"))
	assert.False(t, d.IsFriend("alice", "bob"))
	assert.NoError(t, d.Block("alice", "bob"))
	assert.NoError(t, d.Unblock("alice", "bob"))
	assert.False(t, d.IsBlocked("alice", "bob"))
	assert.False(t, d.IsFriend("alice", "bob"))

	// a blocked account cannot be re-added as friend
	assert.NoError(t, d.Block("alice", "bob"))
	assert.NoError(t, d.AddFriend("alice", "bob"))
	assert.False(t, d.IsFriend("alice", "bob"))

	assert.NoError(t, d.RemoveFriend("alice", "bob"))
	assert.NoError(t, d.RemoveFriend("alice", "bob"))
}

func TestSeedPolicy(t *testing.T) {
	d := New(nil, nil)
	seeds := []config.SeedAccount{
		{Id: "test1", Password: "0000", Nickname: "Test One"},
		{Id: "test2", Password: "0000", Nickname: "Test Two"},
		{Id: "test3", Password: "0000", Nickname: "Test Three"},
	}
	assert.NoError(t, d.Seed(seeds))
	assert.True(t, d.IsSeed("test1"))
	assert.True(t, d.IsFriend("test1", "test2"))
	assert.True(t, d.IsFriend("test2", "test1"))
	assert.True(t, d.IsFriend("test3", "test2"))

	// seeding again is a no-op
	assert.NoError(t, d.Seed(seeds))
	t1, _ := d.Get("test1")
	assert.Len(t, t1.Friends, 2)

	acct, err := d.Register("carol", "pw", "Carol", "", "")
	assert.NoError(t, err)
	d.ApplySeedPolicy(acct)
	assert.True(t, d.IsFriend("carol", "test1"))
	assert.True(t, d.IsFriend("test1", "carol"))
	assert.True(t, d.IsFriend("test3", "carol"))

	// the policy does not touch seed accounts themselves
	d.ApplySeedPolicy(t1)
	assert.False(t, d.IsFriend("test1", "test1"))
}

func TestRecovery(t *testing.T) {
	d := New(nil, nil)
	_, err := d.Register("alice", "secret", "Alice", "alice@example.com", "")
	assert.NoError(t, err)

	acct, err := d.FindByEmail("alice@example.com")
	assert.NoError(t, err)
	assert.Equal(t, "alice", acct.Id)
	_, err = d.FindByEmail("nobody@example.com")
	assert.True(t, errors.Is(err, ErrUnknownAccount))

	pw, err := d.RecoverPassword("alice", "alice@example.com")
	assert.NoError(t, err)
	assert.Equal(t, "secret", pw)
	_, err = d.RecoverPassword("alice", "wrong@example.com")
	assert.Equal(t, ErrAuthFailed, err)
	_, err = d.RecoverPassword("nobody", "alice@example.com")
	assert.Equal(t, ErrAuthFailed, err)
}

func TestProfileUpdates(t *testing.T) {
	d := New(nil, nil)
	_, err := d.Register("alice", "secret", "Alice", "", "")
	assert.NoError(t, err)

	assert.NoError(t, d.UpdateNickname("alice", "Allie"))
	assert.True(t, errors.Is(d.UpdateNickname("alice", "  "), ErrMissingField))

	assert.Equal(t, ErrAuthFailed, d.UpdatePassword("alice", "wrong", "next"))
	assert.NoError(t, d.UpdatePassword("alice", "secret", "next"))
	_, err = d.Authenticate("alice", "next")
	assert.NoError(t, err)

	assert.NoError(t, d.UpdateEmail("alice", "allie@example.com"))
	assert.NoError(t, d.UpdatePhone("alice", "555-0100"))
	acct, _ := d.Get("alice")
	assert.Equal(t, "Allie", acct.Nickname)
	assert.Equal(t, "allie@example.com", acct.Email)
	assert.Equal(t, "555-0100", acct.Phone)
}

func TestRegisterGuest(t *testing.T) {
	d := New(nil, nil)
	guest, err := d.RegisterGuest()
	assert.NoError(t, err)
	assert.Contains(t, guest.Nickname, "(guest)")
	assert.NotEmpty(t, guest.Password)

	other, err := d.RegisterGuest()
	assert.NoError(t, err)
	assert.NotEqual(t, guest.Id, other.Id)
}

func TestAccountsSnapshot(t *testing.T) {
	d := New(nil, nil)
	for _, id := range []string{"carol", "alice", "bob"} {
		_, err := d.Register(id, "pw", id, "", "")
		assert.NoError(t, err)
	}
	accounts := d.Accounts()
	assert.Len(t, accounts, 3)
	assert.Equal(t, "alice", accounts[0].Id)
	assert.Equal(t, "bob", accounts[1].Id)
	assert.Equal(t, "carol", accounts[2].Id)
}
