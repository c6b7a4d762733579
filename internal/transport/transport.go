// Package transport owns the reply and publish channel sockets.
//
// Ownership boundary:
// - socket capability interfaces consumed by the monitor core
// - frame primitives for whole-message delivery over tcp
// - the inproc registry transport for same-process endpoints
//
// Addresses are scheme-prefixed: "tcp://host:port" or "inproc://name".
package transport

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrTimeout           = errors.New("transport: receive timed out")
	ErrClosed            = errors.New("transport: socket closed")
	ErrPendingReply      = errors.New("transport: previous request not yet answered")
	ErrNoPendingRequest  = errors.New("transport: no request awaiting a reply")
	ErrUnsupportedScheme = errors.New("transport: unsupported address scheme")
	ErrAddrInUse         = errors.New("transport: address already bound")
	ErrNoEndpoint        = errors.New("transport: no endpoint bound at address")
)

const defaultConnectTimeout = 5 * time.Second

// RepSocket is the reply-role server endpoint. Delivery alternates
// strictly: Recv hands out one request, Send must answer it before the
// next Recv succeeds.
type RepSocket interface {
	Recv(timeout time.Duration) ([]byte, error)
	Send(reply []byte) error
	Close() error
}

// ReqSocket is the reply-role client endpoint: one Send, one Recv, per
// exchange.
type ReqSocket interface {
	Send(msg []byte) error
	Recv(timeout time.Duration) ([]byte, error)
	Close() error
}

// PubSocket is the publish-role server endpoint. Send fans the message
// out to every currently connected subscriber; subscribers that connect
// afterwards never see it.
type PubSocket interface {
	Send(msg []byte) error
	SubscriberCount() int
	Close() error
}

// SubSocket is the publish-role client endpoint.
type SubSocket interface {
	Recv(timeout time.Duration) ([]byte, error)
	Close() error
}

// OverflowPolicy decides what Send does when a subscriber queue is full.
type OverflowPolicy string

const (
	// OverflowDrop discards the message for that subscriber only.
	OverflowDrop OverflowPolicy = "drop"
	// OverflowBlock stalls the producer until the subscriber drains.
	OverflowBlock OverflowPolicy = "block"
)

// PubConfig bounds per-subscriber buffering on a publish socket.
type PubConfig struct {
	QueueDepth int
	Policy     OverflowPolicy
	// OnDrop is invoked once per discarded message under OverflowDrop.
	OnDrop func(subscriberID string)
}

func DefaultPubConfig() PubConfig {
	return PubConfig{
		QueueDepth: 1024,
		Policy:     OverflowDrop,
	}
}

func (c PubConfig) validate() error {
	if c.QueueDepth <= 0 {
		return fmt.Errorf("transport: invalid queue depth %d", c.QueueDepth)
	}
	if c.Policy != OverflowDrop && c.Policy != OverflowBlock {
		return fmt.Errorf("transport: invalid overflow policy %q", c.Policy)
	}
	return nil
}

// BindRep binds the reply endpoint at addr.
func BindRep(addr string) (RepSocket, error) {
	scheme, rest, err := splitAddr(addr)
	if err != nil {
		return nil, err
	}
	switch scheme {
	case "tcp":
		return bindTCPRep(rest)
	case "inproc":
		return bindInprocRep(rest)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
}

// ConnectReq connects a request client to the reply endpoint at addr.
func ConnectReq(addr string) (ReqSocket, error) {
	scheme, rest, err := splitAddr(addr)
	if err != nil {
		return nil, err
	}
	switch scheme {
	case "tcp":
		return connectTCPReq(rest)
	case "inproc":
		return connectInprocReq(rest)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
}

// BindPub binds the publish endpoint at addr.
func BindPub(addr string, cfg PubConfig) (PubSocket, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	scheme, rest, err := splitAddr(addr)
	if err != nil {
		return nil, err
	}
	switch scheme {
	case "tcp":
		return bindTCPPub(rest, cfg)
	case "inproc":
		return bindInprocPub(rest, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
}

// ConnectSub connects a subscriber to the publish endpoint at addr.
func ConnectSub(addr string) (SubSocket, error) {
	scheme, rest, err := splitAddr(addr)
	if err != nil {
		return nil, err
	}
	switch scheme {
	case "tcp":
		return connectTCPSub(rest)
	case "inproc":
		return connectInprocSub(rest)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
}

func splitAddr(addr string) (scheme, rest string, err error) {
	scheme, rest, ok := strings.Cut(addr, "://")
	if !ok || strings.TrimSpace(scheme) == "" || strings.TrimSpace(rest) == "" {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, addr)
	}
	return scheme, rest, nil
}
