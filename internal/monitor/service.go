package monitor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/joe-el-khoury/fbzmq/internal/observability"
	"github.com/joe-el-khoury/fbzmq/internal/transport"
	"github.com/joe-el-khoury/fbzmq/internal/wire"
)

// Phase describes service lifecycle transitions. The progression is
// linear: created -> running -> stopping -> stopped.
type Phase string

const (
	PhaseCreated  Phase = "created"
	PhaseRunning  Phase = "running"
	PhaseStopping Phase = "stopping"
	PhaseStopped  Phase = "stopped"
)

// ServiceConfig configures the monitor endpoints and control loop.
type ServiceConfig struct {
	ReplyAddr    string
	PubAddr      string
	PollInterval time.Duration
	Pub          transport.PubConfig
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ReplyAddr:    "tcp://127.0.0.1:5566",
		PubAddr:      "tcp://127.0.0.1:5567",
		PollInterval: 100 * time.Millisecond,
		Pub:          transport.DefaultPubConfig(),
	}
}

// Service owns the monitor control loop: receive one request, dispatch,
// reply, forward any resulting publication. The loop runs on the caller's
// goroutine; the store never leaves it.
type Service struct {
	cfg        ServiceConfig
	store      *Store
	dispatcher *Dispatcher

	mu    sync.Mutex
	phase Phase

	ready     chan struct{}
	readyOnce sync.Once
	runErr    error

	stop     chan struct{}
	stopOnce sync.Once
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultServiceConfig().PollInterval
	}
	if cfg.Pub.QueueDepth <= 0 {
		cfg.Pub.QueueDepth = transport.DefaultPubConfig().QueueDepth
	}
	if cfg.Pub.Policy == "" {
		cfg.Pub.Policy = transport.DefaultPubConfig().Policy
	}
	if cfg.Pub.OnDrop == nil {
		cfg.Pub.OnDrop = func(string) { observability.RecordDroppedPublication() }
	}
	store := NewStore()
	return &Service{
		cfg:        cfg,
		store:      store,
		dispatcher: NewDispatcher(store),
		phase:      PhaseCreated,
		ready:      make(chan struct{}),
		stop:       make(chan struct{}),
	}
}

// Run binds both endpoints and drives the control loop until Stop. A bind
// failure is fatal: Run returns before ever reaching running, and ready
// waiters are released with the failure.
func (s *Service) Run() error {
	repSock, err := transport.BindRep(s.cfg.ReplyAddr)
	if err != nil {
		return s.failStartup(fmt.Errorf("monitor: bind reply endpoint: %w", err))
	}
	defer repSock.Close()

	pubSock, err := transport.BindPub(s.cfg.PubAddr, s.cfg.Pub)
	if err != nil {
		return s.failStartup(fmt.Errorf("monitor: bind publish endpoint: %w", err))
	}
	defer pubSock.Close()

	broadcaster := NewBroadcaster(pubSock)

	s.setPhase(PhaseRunning)
	s.readyOnce.Do(func() { close(s.ready) })
	log.Info().
		Str("reply_addr", s.cfg.ReplyAddr).
		Str("pub_addr", s.cfg.PubAddr).
		Msg("monitor running")

	for !s.stopping() {
		s.serveOne(repSock, broadcaster)
	}

	s.setPhase(PhaseStopped)
	log.Info().Msg("monitor stopped")
	return nil
}

// serveOne handles at most one request/response exchange, waiting no
// longer than the poll interval so the stop flag stays observable.
func (s *Service) serveOne(repSock transport.RepSocket, broadcaster *Broadcaster) {
	msg, err := repSock.Recv(s.cfg.PollInterval)
	if err != nil {
		switch {
		case errors.Is(err, transport.ErrTimeout):
		case errors.Is(err, transport.ErrClosed):
			s.Stop()
		default:
			log.Error().Err(err).Msg("receive failed")
		}
		return
	}

	start := time.Now()
	var resp wire.Response
	var pub *wire.Publication

	var req wire.Request
	if err := wire.DecodeBytes(msg, &req); err != nil {
		// Malformed bytes never reach the dispatcher: refuse without
		// touching the store.
		observability.RecordDecodeError()
		log.Warn().Err(err).Msg("undecodable request")
		resp = wire.Response{Success: false}
	} else {
		resp, pub = s.dispatcher.Dispatch(req)
		observability.RecordRequest(req.Cmd.String(), resp.Success, time.Since(start))
	}

	out, err := wire.EncodeBytes(resp)
	if err != nil {
		log.Error().Err(err).Msg("encode response failed")
		out, _ = wire.EncodeBytes(wire.Response{Success: false})
	}
	if err := repSock.Send(out); err != nil {
		// Transport failure loses this exchange only; the loop goes on.
		log.Warn().Err(err).Msg("reply send failed")
		return
	}

	if pub != nil {
		if err := broadcaster.Broadcast(*pub); err != nil {
			log.Warn().Err(err).Msg("broadcast failed")
		}
	}
}

// WaitUntilRunning blocks until both endpoints are bound and the loop is
// accepting requests, or until startup has failed, in which case the
// startup error is returned instead of blocking forever.
func (s *Service) WaitUntilRunning() error {
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runErr
}

// Stop requests loop shutdown. It is idempotent, callable from any
// goroutine, and observed within one poll interval; an in-flight exchange
// is answered first.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		if s.phase == PhaseRunning {
			s.phase = PhaseStopping
		}
		s.mu.Unlock()
		close(s.stop)
	})
}

func (s *Service) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Service) stopping() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *Service) setPhase(phase Phase) {
	s.mu.Lock()
	s.phase = phase
	s.mu.Unlock()
}

func (s *Service) failStartup(err error) error {
	s.mu.Lock()
	s.runErr = err
	s.phase = PhaseStopped
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })
	return err
}
