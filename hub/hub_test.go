package hub

import (
	"testing"
	"time"

	"github.com/stanzadev/stanza-chat/config"
	"github.com/stanzadev/stanza-chat/types"
	"github.com/stretchr/testify/assert"
)

func TestMatchEvent(t *testing.T) {
	h := NewHub(&config.Config{}, nil)
	sub := NewSubscriber("alice", "Alice", "")

	evt := types.NewEvent(types.EventNameMessage, nil, "bob", map[string]string{"weight": "42"})

	// empty filters always pass
	assert.True(t, h.matchEvent(sub, evt))
	assert.False(t, h.matchEvent(sub, nil))

	evt.TargetFilter = `Target.Id == "alice"`
	assert.True(t, h.matchEvent(sub, evt))
	evt.TargetFilter = `Target.Id == "carol"`
	assert.False(t, h.matchEvent(sub, evt))

	evt.TargetFilter = `AsInt(Tags["weight"]) == 42`
	assert.True(t, h.matchEvent(sub, evt))

	// subscriber filter applies on top of the target filter
	sub.Filter = `Name == "message"`
	assert.True(t, h.matchEvent(sub, evt))
	sub.Filter = `Name == "register"`
	assert.False(t, h.matchEvent(sub, evt))

	// broken or non-bool filters never pass
	sub.Filter = ""
	evt.TargetFilter = `Name ==`
	assert.False(t, h.matchEvent(sub, evt))
	evt.TargetFilter = `Name`
	assert.False(t, h.matchEvent(sub, evt))
}

func TestHistoryRing(t *testing.T) {
	cfg := &config.Config{HistoryConfig: config.HistoryConfig{HistorySize: 3}}
	h := NewHub(cfg, nil)

	for _, name := range []string{"a", "b", "c", "d", "e"} {
		h.attachHistory(types.NewEvent(name, nil, "alice", nil))
	}
	history := h.GetHistory()
	// only the newest three survive, oldest first
	assert.Len(t, history, 3)
	names := make([]string, 0, len(history))
	for _, evt := range history {
		names = append(names, evt.Name)
	}
	assert.Equal(t, []string{"c", "d", "e"}, names)
}

func TestBroadcast(t *testing.T) {
	h := NewHub(&config.Config{}, nil)
	go h.Run()

	sub := NewSubscriber("alice", "Alice", "")
	h.Register <- sub

	evt := types.NewEvent(types.EventNameMessage, nil, "bob", nil)
	h.Publish(evt)

	select {
	case got := <-sub.Events:
		assert.Len(t, got, 1)
		assert.Equal(t, evt.Id, got[0].Id)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	h.Unregister <- sub
	for range sub.Events {
	}
}
