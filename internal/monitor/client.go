package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/joe-el-khoury/fbzmq/internal/transport"
	"github.com/joe-el-khoury/fbzmq/internal/wire"
)

var ErrRequestRefused = errors.New("monitor: request refused by service")

const defaultReadTimeout = 5 * time.Second

// Client is a convenience caller for a monitor's reply and publish
// channels. Each request dials a fresh connection, exchanges once, and
// disconnects, so a Client is safe for concurrent use.
type Client struct {
	replyAddr string
	pubAddr   string
	timeout   time.Duration
}

func NewClient(replyAddr, pubAddr string) *Client {
	return &Client{
		replyAddr: replyAddr,
		pubAddr:   pubAddr,
		timeout:   defaultReadTimeout,
	}
}

// SetCounters upserts the given counters.
func (c *Client) SetCounters(counters map[string]int64) error {
	set := make(map[string]wire.Counter, len(counters))
	for name, value := range counters {
		set[name] = wire.Counter{Value: value}
	}
	_, err := c.exchange(wire.Request{
		Cmd:       wire.CmdSetCounterValues,
		SetParams: &wire.SetParams{Counters: set},
	})
	return err
}

// GetCounters fetches the named counters; names the service does not
// know are absent from the result.
func (c *Client) GetCounters(names ...string) (map[string]int64, error) {
	resp, err := c.exchange(wire.Request{
		Cmd:       wire.CmdGetCounterValues,
		GetParams: &wire.GetParams{CounterNames: names},
	})
	if err != nil {
		return nil, err
	}
	return fromWireCounters(resp.Counters), nil
}

// BumpCounters increments each named counter by one, creating absent
// ones at 1.
func (c *Client) BumpCounters(names ...string) error {
	_, err := c.exchange(wire.Request{
		Cmd:        wire.CmdBumpCounter,
		BumpParams: &wire.BumpParams{CounterNames: names},
	})
	return err
}

// DumpCounters fetches the full counter mapping.
func (c *Client) DumpCounters() (map[string]int64, error) {
	resp, err := c.exchange(wire.Request{Cmd: wire.CmdDumpAllCounterData})
	if err != nil {
		return nil, err
	}
	return fromWireCounters(resp.Counters), nil
}

// CounterNames fetches every counter name the service holds.
func (c *Client) CounterNames() ([]string, error) {
	resp, err := c.exchange(wire.Request{Cmd: wire.CmdDumpAllCounterNames})
	if err != nil {
		return nil, err
	}
	return resp.CounterNames, nil
}

// LogEvent submits one event-log record for broadcast. Sample order is
// preserved.
func (c *Client) LogEvent(category string, samples ...string) error {
	_, err := c.exchange(wire.Request{
		Cmd:      wire.CmdLogEvent,
		EventLog: &wire.EventLog{Category: category, Samples: samples},
	})
	return err
}

// Subscribe connects to the publish channel and invokes handle for every
// publication until ctx is done. Publications emitted before the
// connection completed are never seen.
func (c *Client) Subscribe(ctx context.Context, handle func(wire.Publication)) error {
	sub, err := transport.ConnectSub(c.pubAddr)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := sub.Recv(c.timeout)
		if errors.Is(err, transport.ErrTimeout) {
			continue
		}
		if err != nil {
			return err
		}

		var pub wire.Publication
		if err := wire.DecodeBytes(msg, &pub); err != nil {
			log.Warn().Err(err).Msg("undecodable publication")
			continue
		}
		handle(pub)
	}
}

func (c *Client) exchange(req wire.Request) (wire.Response, error) {
	sock, err := transport.ConnectReq(c.replyAddr)
	if err != nil {
		return wire.Response{}, err
	}
	defer sock.Close()

	out, err := wire.EncodeBytes(req)
	if err != nil {
		return wire.Response{}, fmt.Errorf("monitor: encode request: %w", err)
	}
	if err := sock.Send(out); err != nil {
		return wire.Response{}, fmt.Errorf("monitor: send request: %w", err)
	}

	in, err := sock.Recv(c.timeout)
	if err != nil {
		return wire.Response{}, fmt.Errorf("monitor: receive reply: %w", err)
	}
	var resp wire.Response
	if err := wire.DecodeBytes(in, &resp); err != nil {
		return wire.Response{}, fmt.Errorf("monitor: decode reply: %w", err)
	}
	if !resp.Success {
		return resp, fmt.Errorf("%w: %s", ErrRequestRefused, req.Cmd)
	}
	return resp, nil
}

func fromWireCounters(counters map[string]wire.Counter) map[string]int64 {
	out := make(map[string]int64, len(counters))
	for name, counter := range counters {
		out[name] = counter.Value
	}
	return out
}
