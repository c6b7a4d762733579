package wire

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest     = errors.New("wire: invalid request")
	ErrInvalidPublication = errors.New("wire: invalid publication")
	ErrUnknownCommand     = errors.New("wire: unknown command")
)

// Command selects the monitor operation carried by a Request.
type Command uint32

const (
	CmdSetCounterValues Command = iota + 1
	CmdGetCounterValues
	CmdDumpAllCounterNames
	CmdDumpAllCounterData
	CmdBumpCounter
	CmdLogEvent
)

var commandStrings = map[Command]string{
	CmdSetCounterValues:    "SET_COUNTER_VALUES",
	CmdGetCounterValues:    "GET_COUNTER_VALUES",
	CmdDumpAllCounterNames: "DUMP_ALL_COUNTER_NAMES",
	CmdDumpAllCounterData:  "DUMP_ALL_COUNTER_DATA",
	CmdBumpCounter:         "BUMP_COUNTER",
	CmdLogEvent:            "LOG_EVENT",
}

func (c Command) String() string {
	if s, ok := commandStrings[c]; ok {
		return s
	}
	return fmt.Sprintf("COMMAND(%d)", uint32(c))
}

// PubType selects the payload variant carried by a Publication.
type PubType uint32

const (
	CounterPubType PubType = iota + 1
	EventLogPubType
)

func (p PubType) String() string {
	switch p {
	case CounterPubType:
		return "COUNTER_PUB"
	case EventLogPubType:
		return "EVENT_LOG_PUB"
	default:
		return fmt.Sprintf("PUB(%d)", uint32(p))
	}
}

// Counter is one named monitor metric value. The name is the map key
// everywhere a Counter travels.
type Counter struct {
	Value int64 `codec:"value"`
}

// SetParams is the SET_COUNTER_VALUES payload.
type SetParams struct {
	Counters map[string]Counter `codec:"counters"`
}

// GetParams is the GET_COUNTER_VALUES payload.
type GetParams struct {
	CounterNames []string `codec:"counter_names"`
}

// BumpParams is the BUMP_COUNTER payload.
type BumpParams struct {
	CounterNames []string `codec:"counter_names"`
}

// EventLog is the LOG_EVENT payload and the EVENT_LOG_PUB body. Sample
// order is preserved on the wire.
type EventLog struct {
	Category string   `codec:"category"`
	Samples  []string `codec:"samples"`
}

// Request is the reply-channel envelope: a command discriminant plus
// exactly one payload variant.
type Request struct {
	Cmd        Command     `codec:"cmd"`
	SetParams  *SetParams  `codec:"set_params,omitempty"`
	GetParams  *GetParams  `codec:"get_params,omitempty"`
	BumpParams *BumpParams `codec:"bump_params,omitempty"`
	EventLog   *EventLog   `codec:"event_log,omitempty"`
}

func (r Request) Validate() error {
	variants := 0
	if r.SetParams != nil {
		variants++
	}
	if r.GetParams != nil {
		variants++
	}
	if r.BumpParams != nil {
		variants++
	}
	if r.EventLog != nil {
		variants++
	}

	switch r.Cmd {
	case CmdSetCounterValues:
		if r.SetParams == nil || variants != 1 {
			return fmt.Errorf("%w: %s requires set_params only", ErrInvalidRequest, r.Cmd)
		}
	case CmdGetCounterValues:
		if r.GetParams == nil || variants != 1 {
			return fmt.Errorf("%w: %s requires get_params only", ErrInvalidRequest, r.Cmd)
		}
	case CmdBumpCounter:
		if r.BumpParams == nil || variants != 1 {
			return fmt.Errorf("%w: %s requires bump_params only", ErrInvalidRequest, r.Cmd)
		}
	case CmdLogEvent:
		if r.EventLog == nil || variants != 1 {
			return fmt.Errorf("%w: %s requires event_log only", ErrInvalidRequest, r.Cmd)
		}
	case CmdDumpAllCounterNames, CmdDumpAllCounterData:
		if variants != 0 {
			return fmt.Errorf("%w: %s carries no payload", ErrInvalidRequest, r.Cmd)
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownCommand, uint32(r.Cmd))
	}
	return nil
}

// Response is the reply-channel answer. At most one payload field is set,
// depending on the command answered.
type Response struct {
	Success      bool               `codec:"success"`
	CounterNames []string           `codec:"counter_names,omitempty"`
	Counters     map[string]Counter `codec:"counters,omitempty"`
}

// CounterPub carries exactly the counters touched by the triggering
// command, never the full store.
type CounterPub struct {
	Counters map[string]Counter `codec:"counters"`
}

// Publication is one broadcast record on the publish channel.
type Publication struct {
	Type       PubType     `codec:"pub_type"`
	CounterPub *CounterPub `codec:"counter_pub,omitempty"`
	EventLog   *EventLog   `codec:"event_log_pub,omitempty"`
}

func (p Publication) Validate() error {
	switch p.Type {
	case CounterPubType:
		if p.CounterPub == nil || p.EventLog != nil {
			return fmt.Errorf("%w: COUNTER_PUB requires counter_pub only", ErrInvalidPublication)
		}
	case EventLogPubType:
		if p.EventLog == nil || p.CounterPub != nil {
			return fmt.Errorf("%w: EVENT_LOG_PUB requires event_log_pub only", ErrInvalidPublication)
		}
	default:
		return fmt.Errorf("%w: unknown pub type %d", ErrInvalidPublication, uint32(p.Type))
	}
	return nil
}
