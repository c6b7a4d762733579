package monitor

import (
	"github.com/rs/zerolog/log"

	"github.com/joe-el-khoury/fbzmq/internal/wire"
)

// Dispatcher maps one decoded request onto a store operation and, for
// mutating commands, a pending publication. It holds no state of its own
// beyond the store it drives.
type Dispatcher struct {
	store *Store
}

func NewDispatcher(store *Store) *Dispatcher {
	return &Dispatcher{store: store}
}

// Dispatch applies req and returns the response plus the publication it
// produced, if any. A malformed or unknown request refuses cleanly: the
// store is untouched and nothing is published.
func (d *Dispatcher) Dispatch(req wire.Request) (wire.Response, *wire.Publication) {
	if err := req.Validate(); err != nil {
		log.Warn().Err(err).Msg("request refused")
		return wire.Response{Success: false}, nil
	}

	switch req.Cmd {
	case wire.CmdSetCounterValues:
		touched := make(map[string]wire.Counter, len(req.SetParams.Counters))
		for name, counter := range req.SetParams.Counters {
			d.store.Set(name, counter.Value)
			touched[name] = counter
		}
		return wire.Response{Success: true}, &wire.Publication{
			Type:       wire.CounterPubType,
			CounterPub: &wire.CounterPub{Counters: touched},
		}

	case wire.CmdBumpCounter:
		touched := make(map[string]wire.Counter, len(req.BumpParams.CounterNames))
		for _, name := range req.BumpParams.CounterNames {
			touched[name] = wire.Counter{Value: d.store.Bump(name)}
		}
		return wire.Response{Success: true}, &wire.Publication{
			Type:       wire.CounterPubType,
			CounterPub: &wire.CounterPub{Counters: touched},
		}

	case wire.CmdGetCounterValues:
		return wire.Response{
			Success:  true,
			Counters: toWireCounters(d.store.Get(req.GetParams.CounterNames)),
		}, nil

	case wire.CmdDumpAllCounterNames:
		return wire.Response{
			Success:      true,
			CounterNames: d.store.Names(),
		}, nil

	case wire.CmdDumpAllCounterData:
		return wire.Response{
			Success:  true,
			Counters: toWireCounters(d.store.DumpAll()),
		}, nil

	case wire.CmdLogEvent:
		eventLog := *req.EventLog
		return wire.Response{Success: true}, &wire.Publication{
			Type:     wire.EventLogPubType,
			EventLog: &eventLog,
		}

	default:
		// Validate already rejected unknown commands; kept so the switch
		// stays total.
		return wire.Response{Success: false}, nil
	}
}

func toWireCounters(values map[string]int64) map[string]wire.Counter {
	out := make(map[string]wire.Counter, len(values))
	for name, value := range values {
		out[name] = wire.Counter{Value: value}
	}
	return out
}
