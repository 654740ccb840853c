package hub

import (
	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
	"github.com/stanzadev/stanza-chat/filter"
	"github.com/stanzadev/stanza-chat/globals"
	"github.com/stanzadev/stanza-chat/types"
)

func (h *Hub) compileFilter(src string) (*vm.Program, error) {
	if prog, ok := h.progCache.Get(src); ok {
		return prog.(*vm.Program), nil
	}
	prog, err := expr.Compile(src, expr.Env(filter.Env{}))
	if err != nil {
		return nil, err
	}
	h.progCache.Add(src, prog)
	return prog, nil
}

// matchEvent decides whether evt is delivered to sub: the event's target
// filter and the subscriber's own filter must both pass (an empty filter
// always passes, a filter that does not compile or does not evaluate to a
// bool never does).
func (h *Hub) matchEvent(sub *Subscriber, evt *types.Event) bool {
	if evt == nil {
		return false
	}
	for _, src := range []string{evt.TargetFilter, sub.Filter} {
		if src == "" {
			continue
		}
		prog, err := h.compileFilter(src)
		if err != nil {
			globals.AppLogger.Error("could not compile filter", "filter", src, "error", err)
			return false
		}
		env := filter.Env{
			Room:          filter.Room{Id: evt.RoomId},
			Source:        filter.Source{Id: evt.SenderId},
			Target:        filter.Target{Id: sub.UserId, Nick: sub.Nick},
			Name:          evt.Name,
			Created:       evt.Created.Unix(),
			Tags:          evt.Tags,
			AsInt:         filter.AsInt,
			AsFloat:       filter.AsFloat,
			AsStringSlice: filter.AsStringSlice,
		}
		res, err := expr.Run(prog, env)
		if err != nil {
			globals.AppLogger.Error("could not run filter", "filter", src, "error", err)
			return false
		}
		if bRes, ok := res.(bool); !ok || !bRes {
			return false
		}
	}
	return true
}
