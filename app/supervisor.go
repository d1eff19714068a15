package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/artpar/tablegate/domain/route"
	"github.com/rs/zerolog"
)

// State is the supervisor loop state.
type State int32

const (
	StateIdle State = iota
	StateAwaitingMessage
	StateReconfiguring
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAwaitingMessage:
		return "AWAITING_MESSAGE"
	case StateReconfiguring:
		return "RECONFIGURING"
	default:
		return "UNKNOWN"
	}
}

// Outcomes reported for handled control messages.
const (
	OutcomeStarted     = "started"
	OutcomeBuildFailed = "build_failed"
	OutcomeBindFailed  = "bind_failed"
	OutcomeCancelled   = "cancelled"
	OutcomeIgnored     = "ignored"
)

// TableBuilder produces the route table for a new listener.
type TableBuilder interface {
	Build(ctx context.Context) (route.Table, error)
}

// HandlerFactory returns the handler a new listener serves for table.
type HandlerFactory func(table route.Table) http.Handler

// ListenerSettings configures the next listener to be spawned.
type ListenerSettings struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// DrainTimeout bounds how long a cancelled listener waits for in-flight
	// requests. Zero closes connections immediately.
	DrainTimeout time.Duration
}

// Event describes one handled control message.
type Event struct {
	Message ControlMessage
	Outcome string
	Live    int // handles held after the message was handled
	Err     error
}

// SupervisorConfig wires a supervisor.
type SupervisorConfig struct {
	Builder  TableBuilder
	Handler  HandlerFactory
	Settings func() ListenerSettings

	Metrics Metrics
	// OnEvent, if set, is called from the loop goroutine after every message.
	OnEvent func(Event)
}

// ListenerHandle is the cancellation handle of one running listener.
type ListenerHandle struct {
	table  route.Table
	addr   net.Addr
	cancel context.CancelFunc
	done   chan struct{}
}

// Table returns the route table the listener serves.
func (h *ListenerHandle) Table() route.Table { return h.table }

// Addr returns the bound address.
func (h *ListenerHandle) Addr() net.Addr { return h.addr }

// Cancel stops the listener. It does not wait; see Done.
func (h *ListenerHandle) Cancel() { h.cancel() }

// Done is closed once the listener has stopped serving.
func (h *ListenerHandle) Done() <-chan struct{} { return h.done }

// Supervisor owns the control mailbox and the live listener handles. It
// reconfigures the server by reacting to Start and Restart messages.
//
// The handle collection is touched only by the Run goroutine.
type Supervisor struct {
	mailbox *Mailbox
	cfg     SupervisorConfig
	metrics Metrics
	logger  zerolog.Logger

	handles []*ListenerHandle
	state   atomic.Int32

	mu   sync.RWMutex
	addr net.Addr
}

// NewSupervisor creates a supervisor with an empty mailbox.
func NewSupervisor(cfg SupervisorConfig, logger zerolog.Logger) *Supervisor {
	return &Supervisor{
		mailbox: NewMailbox(),
		cfg:     cfg,
		metrics: metricsOrNoop(cfg.Metrics),
		logger:  logger.With().Str("component", "supervisor").Logger(),
	}
}

// Send enqueues msg. Safe for concurrent use.
func (s *Supervisor) Send(msg ControlMessage) error {
	return s.mailbox.Send(msg)
}

// Restart enqueues Restart.
func (s *Supervisor) Restart() error {
	return s.mailbox.Send(Restart)
}

// Close closes the control channel. Run returns ErrChannelClosed once the
// queued messages are handled.
func (s *Supervisor) Close() {
	s.mailbox.Close()
}

// State returns the current loop state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Addr returns the address of the most recently started listener, or nil.
func (s *Supervisor) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Run processes control messages until ctx is done or the control channel
// is closed. Every live listener is cancelled before Run returns. A closed
// channel yields ErrChannelClosed.
func (s *Supervisor) Run(ctx context.Context) error {
	defer func() {
		s.stopAll()
		s.state.Store(int32(StateIdle))
	}()

	for {
		s.state.Store(int32(StateAwaitingMessage))

		msg, err := s.mailbox.Receive(ctx)
		if err != nil {
			if errors.Is(err, ErrChannelClosed) {
				s.logger.Error().Err(err).Msg("control channel closed")
			}
			return err
		}

		s.state.Store(int32(StateReconfiguring))
		s.handle(ctx, msg)
	}
}

func (s *Supervisor) handle(ctx context.Context, msg ControlMessage) {
	switch msg {
	case Start:
		s.start(ctx)
	case Restart:
		s.restart()
	default:
		s.logger.Warn().Stringer("message", msg).Msg("ignoring unknown control message")
		s.emit(Event{Message: msg, Outcome: OutcomeIgnored, Live: len(s.handles)})
	}
}

func (s *Supervisor) start(ctx context.Context) {
	table, err := s.cfg.Builder.Build(ctx)
	if err != nil {
		s.logger.Error().Err(err).Int("live", len(s.handles)).Msg("route table build failed, keeping current listener")
		s.emit(Event{Message: Start, Outcome: OutcomeBuildFailed, Live: len(s.handles), Err: err})
		return
	}

	h, err := s.spawn(ctx, table)
	if err != nil {
		// Back-to-back STARTs on a fixed address collide with the listener
		// the first one spawned; the server is still up.
		evt := s.logger.Error()
		if len(s.handles) > 0 {
			evt = s.logger.Warn()
		}
		evt.Err(err).Int("live", len(s.handles)).Msg("listener bind failed, keeping current listener")
		s.emit(Event{Message: Start, Outcome: OutcomeBindFailed, Live: len(s.handles), Err: err})
		return
	}

	s.handles = append(s.handles, h)

	s.mu.Lock()
	s.addr = h.addr
	s.mu.Unlock()

	s.logger.Info().
		Str("addr", h.addr.String()).
		Strs("entities", table.Entities()).
		Int("bindings", len(table.Bindings)).
		Msg("listener started")
	s.emit(Event{Message: Start, Outcome: OutcomeStarted, Live: len(s.handles)})
}

func (s *Supervisor) restart() {
	n := len(s.handles)
	s.stopAll()
	s.logger.Info().Int("cancelled", n).Msg("listeners cancelled")
	s.emit(Event{Message: Restart, Outcome: OutcomeCancelled, Live: 0})

	if err := s.mailbox.Send(Start); err != nil {
		s.logger.Warn().Err(err).Msg("cannot enqueue START")
	}
}

// stopAll cancels every handle, waits for each listener to release its
// socket and clears the collection.
func (s *Supervisor) stopAll() {
	for _, h := range s.handles {
		h.Cancel()
	}
	for _, h := range s.handles {
		<-h.Done()
	}
	s.handles = nil
}

func (s *Supervisor) spawn(ctx context.Context, table route.Table) (*ListenerHandle, error) {
	settings := s.cfg.Settings()

	ln, err := net.Listen("tcp", settings.Addr)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Handler:           s.cfg.Handler(table),
		ReadTimeout:       settings.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      settings.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	lctx, cancel := context.WithCancel(ctx)
	h := &ListenerHandle{
		table:  table,
		addr:   ln.Addr(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	logger := s.logger.With().Str("addr", h.addr.String()).Logger()

	go func() {
		defer close(h.done)

		errc := make(chan error, 1)
		go func() { errc <- srv.Serve(ln) }()

		select {
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("listener failed")
			}
			return
		case <-lctx.Done():
		}

		stopServer(srv, settings.DrainTimeout, logger)
		<-errc
		logger.Debug().Msg("listener stopped")
	}()

	return h, nil
}

func stopServer(srv *http.Server, drain time.Duration, logger zerolog.Logger) {
	if drain <= 0 {
		srv.Close()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), drain)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Dur("drain_timeout", drain).Msg("drain timed out, closing connections")
		srv.Close()
	}
}

func (s *Supervisor) emit(ev Event) {
	s.metrics.ObserveReconfiguration(ev.Message.String(), ev.Outcome)
	s.metrics.SetLiveListeners(ev.Live)
	if s.cfg.OnEvent != nil {
		s.cfg.OnEvent(ev)
	}
}
