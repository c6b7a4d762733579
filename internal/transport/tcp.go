package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type tcpExchange struct {
	payload []byte
	conn    net.Conn
}

// tcpRep serves the reply role over a tcp listener. Requests from all
// connected clients funnel into one ordered delivery point so the
// request/response alternation holds socket-wide.
type tcpRep struct {
	ln     net.Listener
	reqCh  chan tcpExchange
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	pending net.Conn
	conns   map[net.Conn]struct{}

	limits Limits
}

func bindTCPRep(hostport string) (*tcpRep, error) {
	ln, err := net.Listen("tcp", hostport)
	if err != nil {
		return nil, fmt.Errorf("transport: bind rep %s: %w", hostport, err)
	}
	s := &tcpRep{
		ln:     ln,
		reqCh:  make(chan tcpExchange),
		closed: make(chan struct{}),
		conns:  make(map[net.Conn]struct{}),
		limits: DefaultLimits(),
	}
	go s.acceptLoop()
	return s, nil
}

func (s *tcpRep) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.closed:
			default:
				log.Warn().Err(err).Msg("rep accept failed")
			}
			return
		}
		go s.serveConn(conn)
	}
}

func (s *tcpRep) serveConn(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()
	for {
		payload, err := ReadFrame(conn, s.limits)
		if err != nil {
			return
		}
		select {
		case s.reqCh <- tcpExchange{payload: payload, conn: conn}:
		case <-s.closed:
			return
		}
	}
}

func (s *tcpRep) Recv(timeout time.Duration) ([]byte, error) {
	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		return nil, ErrPendingReply
	}
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ex := <-s.reqCh:
		s.mu.Lock()
		s.pending = ex.conn
		s.mu.Unlock()
		return ex.payload, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-s.closed:
		return nil, ErrClosed
	}
}

func (s *tcpRep) Send(reply []byte) error {
	s.mu.Lock()
	conn := s.pending
	s.pending = nil
	s.mu.Unlock()
	if conn == nil {
		return ErrNoPendingRequest
	}
	if err := WriteFrame(conn, reply, s.limits); err != nil {
		conn.Close()
		return fmt.Errorf("transport: send reply: %w", err)
	}
	return nil
}

func (s *tcpRep) Close() error {
	s.once.Do(func() {
		close(s.closed)
		s.ln.Close()
		s.mu.Lock()
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()
	})
	return nil
}

// Addr reports the bound listener address, useful with ":0" binds.
func (s *tcpRep) Addr() string {
	return "tcp://" + s.ln.Addr().String()
}

type tcpReq struct {
	conn   net.Conn
	limits Limits
}

func connectTCPReq(hostport string) (*tcpReq, error) {
	conn, err := net.DialTimeout("tcp", hostport, defaultConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("transport: connect req %s: %w", hostport, err)
	}
	return &tcpReq{conn: conn, limits: DefaultLimits()}, nil
}

func (c *tcpReq) Send(msg []byte) error {
	return WriteFrame(c.conn, msg, c.limits)
}

func (c *tcpReq) Recv(timeout time.Duration) ([]byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	payload, err := ReadFrame(c.conn, c.limits)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, ErrTimeout
		}
		return nil, err
	}
	return payload, nil
}

func (c *tcpReq) Close() error {
	return c.conn.Close()
}

type tcpSubscriber struct {
	id    string
	conn  net.Conn
	queue chan []byte
	done  chan struct{}
	once  sync.Once
}

func (s *tcpSubscriber) stop() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// tcpPub serves the publish role: every Send fans out to all live
// subscriber connections through per-subscriber bounded queues so one
// slow reader cannot reorder or stall another.
type tcpPub struct {
	ln     net.Listener
	cfg    PubConfig
	closed chan struct{}
	once   sync.Once

	mu   sync.Mutex
	subs map[string]*tcpSubscriber

	limits Limits
}

func bindTCPPub(hostport string, cfg PubConfig) (*tcpPub, error) {
	ln, err := net.Listen("tcp", hostport)
	if err != nil {
		return nil, fmt.Errorf("transport: bind pub %s: %w", hostport, err)
	}
	s := &tcpPub{
		ln:     ln,
		cfg:    cfg,
		closed: make(chan struct{}),
		subs:   make(map[string]*tcpSubscriber),
		limits: DefaultLimits(),
	}
	go s.acceptLoop()
	return s, nil
}

func (s *tcpPub) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.closed:
			default:
				log.Warn().Err(err).Msg("pub accept failed")
			}
			return
		}
		sub := &tcpSubscriber{
			id:    uuid.NewString(),
			conn:  conn,
			queue: make(chan []byte, s.cfg.QueueDepth),
			done:  make(chan struct{}),
		}
		s.mu.Lock()
		s.subs[sub.id] = sub
		s.mu.Unlock()
		log.Debug().Str("subscriber", sub.id).Msg("subscriber connected")
		go s.writeLoop(sub)
	}
}

func (s *tcpPub) writeLoop(sub *tcpSubscriber) {
	defer func() {
		s.mu.Lock()
		delete(s.subs, sub.id)
		s.mu.Unlock()
		sub.stop()
		log.Debug().Str("subscriber", sub.id).Msg("subscriber detached")
	}()
	for {
		select {
		case msg := <-sub.queue:
			if err := WriteFrame(sub.conn, msg, s.limits); err != nil {
				return
			}
		case <-sub.done:
			return
		case <-s.closed:
			return
		}
	}
}

func (s *tcpPub) Send(msg []byte) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}

	s.mu.Lock()
	subs := make([]*tcpSubscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		switch s.cfg.Policy {
		case OverflowBlock:
			select {
			case sub.queue <- msg:
			case <-sub.done:
			case <-s.closed:
				return ErrClosed
			}
		default: // OverflowDrop
			select {
			case sub.queue <- msg:
			default:
				if s.cfg.OnDrop != nil {
					s.cfg.OnDrop(sub.id)
				}
			}
		}
	}
	return nil
}

// Addr reports the bound listener address, useful with ":0" binds.
func (s *tcpPub) Addr() string {
	return "tcp://" + s.ln.Addr().String()
}

func (s *tcpPub) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *tcpPub) Close() error {
	s.once.Do(func() {
		close(s.closed)
		s.ln.Close()
		s.mu.Lock()
		for _, sub := range s.subs {
			sub.stop()
		}
		s.mu.Unlock()
	})
	return nil
}

type tcpSub struct {
	conn   net.Conn
	limits Limits
}

func connectTCPSub(hostport string) (*tcpSub, error) {
	conn, err := net.DialTimeout("tcp", hostport, defaultConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("transport: connect sub %s: %w", hostport, err)
	}
	return &tcpSub{conn: conn, limits: DefaultLimits()}, nil
}

func (c *tcpSub) Recv(timeout time.Duration) ([]byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	payload, err := ReadFrame(c.conn, c.limits)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, ErrTimeout
		}
		return nil, err
	}
	return payload, nil
}

func (c *tcpSub) Close() error {
	return c.conn.Close()
}
