package hub

import (
	"container/ring"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/stanzadev/stanza-chat/config"
	"github.com/stanzadev/stanza-chat/globals"
	"github.com/stanzadev/stanza-chat/persistence"
	"github.com/stanzadev/stanza-chat/types"
)

const (
	broadcastChannelSize  = 1000
	subscriberChannelSize = 100
	filterCacheSize       = 128
)

// A Subscriber receives the engine's event stream. UserId and Nick identify
// the receiving side for target-filter evaluation; Filter optionally narrows
// the stream further (an expr expression over filter.Env).
type Subscriber struct {
	UserId string
	Nick   string
	Filter string
	Events chan []*types.Event
}

func NewSubscriber(userId, nick, filterSrc string) *Subscriber {
	return &Subscriber{
		UserId: userId,
		Nick:   nick,
		Filter: filterSrc,
		Events: make(chan []*types.Event, subscriberChannelSize),
	}
}

// Hub fans engine events out to the registered subscribers. There is one hub
// per process. It keeps the recent events in a ring buffer which is replayed
// to newly registered subscribers, and it hands every broadcast batch to the
// persister when one is configured.
type Hub struct {
	// registered subscribers
	subscribers map[*Subscriber]struct{}

	Broadcast  chan []*types.Event
	Register   chan *Subscriber
	Unregister chan *Subscriber

	// recent event history in a ring buffer
	historyStart, historyEnd *ring.Ring

	Cfg       *config.Config
	Persister persistence.Persister

	// compiled filter programs keyed by their source
	progCache *lru.Cache

	// guards subscribers and the history ring
	sync.RWMutex
}

func NewHub(cfg *config.Config, persister persistence.Persister) *Hub {
	historySize := cfg.HistorySize()
	// one spare cell: end==start marks the empty ring, so retaining
	// historySize events needs historySize+1 cells
	history := ring.New(historySize + 1)
	cache, _ := lru.New(filterCacheSize)
	hub := &Hub{
		subscribers:  make(map[*Subscriber]struct{}),
		Broadcast:    make(chan []*types.Event, broadcastChannelSize),
		Register:     make(chan *Subscriber),
		Unregister:   make(chan *Subscriber),
		historyStart: history,
		historyEnd:   history,
		Cfg:          cfg,
		Persister:    persister,
		progCache:    cache,
	}
	if persister != nil {
		var t time.Time
		n := time.Now().Add(time.Minute)
		events, err := persister.GetEventHistory(t, n, 0, historySize)
		if err != nil {
			globals.AppLogger.Error("could not load persisted events", "error", err)
		}
		// newest first from the persister, replay in creation order
		for i := len(events) - 1; i >= 0; i-- {
			hub.attachHistory(events[i])
		}
	}
	return hub
}

// Publish hands a batch of events to the hub. Safe on a nil hub, so callers
// without an event stream configured need no guards.
func (h *Hub) Publish(events ...*types.Event) {
	if h == nil || len(events) == 0 {
		return
	}
	h.Broadcast <- events
}

// NoSubscribers returns the number of subscribers registered.
func (h *Hub) NoSubscribers() int {
	h.RLock()
	defer h.RUnlock()
	return len(h.subscribers)
}

func (h *Hub) attachHistory(evt *types.Event) {
	h.Lock()
	defer h.Unlock()
	h.historyEnd.Value = evt
	h.historyEnd = h.historyEnd.Next()
	if h.historyEnd == h.historyStart {
		h.historyStart = h.historyStart.Next()
	}
}

// GetHistory returns the buffered recent events in creation order.
func (h *Hub) GetHistory() []*types.Event {
	h.RLock()
	defer h.RUnlock()
	history := make([]*types.Event, 0)
	for current := h.historyStart; current != h.historyEnd; current = current.Next() {
		history = append(history, current.Value.(*types.Event))
	}
	return history
}

// Run is the main hub event loop handling register, unregister and broadcast.
func (h *Hub) Run() {
	for {
		select {
		case sub := <-h.Register:
			h.Lock()
			h.subscribers[sub] = struct{}{}
			h.Unlock()
			go h.sendHistory(sub)

		case sub := <-h.Unregister:
			h.Lock()
			if _, ok := h.subscribers[sub]; ok {
				delete(h.subscribers, sub)
				close(sub.Events)
			}
			h.Unlock()

		case events := <-h.Broadcast:
			for _, evt := range events {
				h.attachHistory(evt)
			}
			if h.Persister != nil {
				if err := h.Persister.StoreEvents(events); err != nil {
					globals.AppLogger.Error("could not persist events", "error", err)
				}
			}
			h.RLock()
			for sub := range h.subscribers {
				pass := h.filterEvents(sub, events)
				if len(pass) == 0 {
					continue
				}
				select {
				case sub.Events <- pass:
				default:
					globals.AppLogger.Warn("subscriber channel full, dropping events", "user", sub.UserId)
				}
			}
			h.RUnlock()
		}
	}
}

func (h *Hub) sendHistory(sub *Subscriber) {
	history := h.GetHistory()
	pass := h.filterEvents(sub, history)
	if len(pass) == 0 {
		return
	}
	select {
	case sub.Events <- pass:
	default:
		globals.AppLogger.Warn("subscriber channel full, dropping history", "user", sub.UserId)
	}
}

func (h *Hub) filterEvents(sub *Subscriber, events []*types.Event) []*types.Event {
	pass := make([]*types.Event, 0, len(events))
	for _, evt := range events {
		if h.matchEvent(sub, evt) {
			pass = append(pass, evt)
		}
	}
	return pass
}
