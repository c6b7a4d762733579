package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Process-local endpoint registry. Bind claims a name, Close releases it;
// connectors look names up at connect time, so bind must happen first.
var (
	inprocMu   sync.Mutex
	inprocReps = make(map[string]*inprocRep)
	inprocPubs = make(map[string]*inprocPub)
)

type inprocExchange struct {
	payload []byte
	replyCh chan []byte
}

type inprocRep struct {
	name   string
	reqCh  chan inprocExchange
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	pending chan []byte
}

func bindInprocRep(name string) (*inprocRep, error) {
	inprocMu.Lock()
	defer inprocMu.Unlock()
	if _, ok := inprocReps[name]; ok {
		return nil, fmt.Errorf("%w: inproc://%s", ErrAddrInUse, name)
	}
	s := &inprocRep{
		name:   name,
		reqCh:  make(chan inprocExchange),
		closed: make(chan struct{}),
	}
	inprocReps[name] = s
	return s, nil
}

func (s *inprocRep) Recv(timeout time.Duration) ([]byte, error) {
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
		s.pending = ex.replyCh
		s.mu.Unlock()
		return ex.payload, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-s.closed:
		return nil, ErrClosed
	}
}

func (s *inprocRep) Send(reply []byte) error {
	s.mu.Lock()
	replyCh := s.pending
	s.pending = nil
	s.mu.Unlock()
	if replyCh == nil {
		return ErrNoPendingRequest
	}
	replyCh <- reply
	return nil
}

func (s *inprocRep) Close() error {
	s.once.Do(func() {
		inprocMu.Lock()
		delete(inprocReps, s.name)
		inprocMu.Unlock()
		close(s.closed)
	})
	return nil
}

type inprocReq struct {
	rep *inprocRep

	mu      sync.Mutex
	replyCh chan []byte
}

func connectInprocReq(name string) (*inprocReq, error) {
	inprocMu.Lock()
	rep, ok := inprocReps[name]
	inprocMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: inproc://%s", ErrNoEndpoint, name)
	}
	return &inprocReq{rep: rep}, nil
}

func (c *inprocReq) Send(msg []byte) error {
	ex := inprocExchange{payload: msg, replyCh: make(chan []byte, 1)}
	select {
	case c.rep.reqCh <- ex:
	case <-c.rep.closed:
		return ErrClosed
	}
	c.mu.Lock()
	c.replyCh = ex.replyCh
	c.mu.Unlock()
	return nil
}

func (c *inprocReq) Recv(timeout time.Duration) ([]byte, error) {
	c.mu.Lock()
	replyCh := c.replyCh
	c.replyCh = nil
	c.mu.Unlock()
	if replyCh == nil {
		return nil, ErrNoPendingRequest
	}

	// A reply already in flight wins over a concurrently closing endpoint.
	select {
	case reply := <-replyCh:
		return reply, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case reply := <-replyCh:
		return reply, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-c.rep.closed:
		return nil, ErrClosed
	}
}

func (c *inprocReq) Close() error {
	return nil
}

type inprocSubscriber struct {
	id    string
	queue chan []byte
	done  chan struct{}
	once  sync.Once
}

func (s *inprocSubscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

type inprocPub struct {
	name   string
	cfg    PubConfig
	closed chan struct{}
	once   sync.Once

	mu   sync.Mutex
	subs map[string]*inprocSubscriber
}

func bindInprocPub(name string, cfg PubConfig) (*inprocPub, error) {
	inprocMu.Lock()
	defer inprocMu.Unlock()
	if _, ok := inprocPubs[name]; ok {
		return nil, fmt.Errorf("%w: inproc://%s", ErrAddrInUse, name)
	}
	s := &inprocPub{
		name:   name,
		cfg:    cfg,
		closed: make(chan struct{}),
		subs:   make(map[string]*inprocSubscriber),
	}
	inprocPubs[name] = s
	return s, nil
}

func (s *inprocPub) Send(msg []byte) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}

	s.mu.Lock()
	subs := make([]*inprocSubscriber, 0, len(s.subs))
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

func (s *inprocPub) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *inprocPub) Close() error {
	s.once.Do(func() {
		inprocMu.Lock()
		delete(inprocPubs, s.name)
		inprocMu.Unlock()
		close(s.closed)
		s.mu.Lock()
		for _, sub := range s.subs {
			sub.stop()
		}
		s.mu.Unlock()
	})
	return nil
}

func (s *inprocPub) attach(sub *inprocSubscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}
	s.subs[sub.id] = sub
	return nil
}

func (s *inprocPub) detach(id string) {
	s.mu.Lock()
	delete(s.subs, id)
	s.mu.Unlock()
}

type inprocSub struct {
	pub *inprocPub
	sub *inprocSubscriber
}

func connectInprocSub(name string) (*inprocSub, error) {
	inprocMu.Lock()
	pub, ok := inprocPubs[name]
	inprocMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: inproc://%s", ErrNoEndpoint, name)
	}
	sub := &inprocSubscriber{
		id:    uuid.NewString(),
		queue: make(chan []byte, pub.cfg.QueueDepth),
		done:  make(chan struct{}),
	}
	if err := pub.attach(sub); err != nil {
		return nil, err
	}
	return &inprocSub{pub: pub, sub: sub}, nil
}

func (c *inprocSub) Recv(timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg := <-c.sub.queue:
		return msg, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-c.sub.done:
		// Drain what was queued before the publisher went away.
		select {
		case msg := <-c.sub.queue:
			return msg, nil
		default:
			return nil, ErrClosed
		}
	}
}

func (c *inprocSub) Close() error {
	c.pub.detach(c.sub.id)
	c.sub.stop()
	return nil
}
