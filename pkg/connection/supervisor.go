package connection

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Supervisor errors.
var (
	ErrSupervisorClosed = errors.New("supervisor closed")
	ErrAlreadyConnected = errors.New("already connected")
)

// ConnectTimeout bounds one connect attempt, handshake included.
const ConnectTimeout = 30 * time.Second

// Connectable is the slice of a device session the supervisor drives.
type Connectable interface {
	Connect(ctx context.Context, retryHandshake bool) error
	Disconnect() error
}

// Supervisor owns the reconnection policy for one appliance session. The
// session reports connection loss via NotifyConnectionLost; the supervisor
// waits out the backoff and reconnects until closed.
type Supervisor struct {
	mu sync.Mutex

	session Connectable
	backoff *Backoff

	connected bool
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	retryCh chan struct{}

	onConnected    func()
	onDisconnected func()
	onRetry        func(attempt int, delay time.Duration)
}

// NewSupervisor creates a supervisor over a session. Start must be called
// before connection-loss notifications have any effect.
func NewSupervisor(session Connectable, backoff *Backoff) *Supervisor {
	if backoff == nil {
		backoff = NewBackoff()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		session: session,
		backoff: backoff,
		ctx:     ctx,
		cancel:  cancel,
		retryCh: make(chan struct{}, 1),
	}
}

// OnConnected sets a callback invoked after each successful (re)connect.
func (s *Supervisor) OnConnected(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConnected = fn
}

// OnDisconnected sets a callback invoked when connection loss is reported.
func (s *Supervisor) OnDisconnected(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDisconnected = fn
}

// OnRetry sets a callback invoked before each backoff wait.
func (s *Supervisor) OnRetry(fn func(attempt int, delay time.Duration)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRetry = fn
}

// Start connects the session and launches the background retry loop. The
// initial attempt's failure is returned; the loop keeps retrying either way.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSupervisorClosed
	}
	if s.connected {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.mu.Unlock()

	s.wg.Add(1)
	go s.retryLoop()

	err := s.connectOnce(ctx)
	if err != nil {
		s.signalRetry()
	}
	return err
}

// Adopt places an externally established connection under supervision: the
// retry loop starts and later loss notifications trigger reconnects. Used
// after pairing, which connects the session itself while probing tokens.
func (s *Supervisor) Adopt() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSupervisorClosed
	}
	if s.connected {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.connected = true
	s.backoff.Reset()
	cb := s.onConnected
	s.mu.Unlock()

	s.wg.Add(1)
	go s.retryLoop()

	if cb != nil {
		cb()
	}
	return nil
}

// NotifyConnectionLost reports that the session dropped. The retry loop wakes
// up and reconnects with backoff.
func (s *Supervisor) NotifyConnectionLost() {
	s.mu.Lock()
	if s.closed || !s.connected {
		s.mu.Unlock()
		return
	}
	s.connected = false
	cb := s.onDisconnected
	s.mu.Unlock()

	if cb != nil {
		cb()
	}
	s.signalRetry()
}

// Close stops the retry loop and disconnects the session.
func (s *Supervisor) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	_ = s.session.Disconnect()
}

// Connected reports whether the session is currently up.
func (s *Supervisor) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Supervisor) signalRetry() {
	select {
	case s.retryCh <- struct{}{}:
	default:
	}
}

func (s *Supervisor) connectOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	if err := s.session.Connect(ctx, true); err != nil {
		return err
	}

	s.mu.Lock()
	s.connected = true
	s.backoff.Reset()
	cb := s.onConnected
	s.mu.Unlock()

	if cb != nil {
		cb()
	}
	return nil
}

func (s *Supervisor) retryLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.retryCh:
		}

		for {
			s.mu.Lock()
			done := s.closed || s.connected
			s.mu.Unlock()
			if done {
				break
			}

			delay := s.backoff.Next()
			s.mu.Lock()
			onRetry := s.onRetry
			attempts := s.backoff.Attempts()
			s.mu.Unlock()
			if onRetry != nil {
				onRetry(attempts, delay)
			}

			select {
			case <-s.ctx.Done():
				return
			case <-time.After(delay):
			}

			if err := s.connectOnce(s.ctx); err == nil {
				break
			}
		}
	}
}
