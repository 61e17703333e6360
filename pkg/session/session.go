package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kovapatrik/homebridge-midea-ac/pkg/ac"
	"github.com/kovapatrik/homebridge-midea-ac/pkg/cloud"
	"github.com/kovapatrik/homebridge-midea-ac/pkg/log"
	"github.com/kovapatrik/homebridge-midea-ac/pkg/security"
	"github.com/kovapatrik/homebridge-midea-ac/pkg/transport"
	"github.com/kovapatrik/homebridge-midea-ac/pkg/wire"
)

// Session errors.
var (
	// ErrConnection wraps handshake and transport failures during connect.
	ErrConnection = errors.New("connection failed")

	// ErrNotConnected indicates a send on a session that is not Connected.
	ErrNotConnected = errors.New("session not connected")

	// ErrNoCredentials indicates a connect before SetCredentials.
	ErrNoCredentials = errors.New("credentials not set")
)

// handshakeTimeout bounds the wait for the key-exchange response when the
// caller's context carries no deadline of its own.
const handshakeTimeout = 8 * time.Second

// State is the session lifecycle state.
type State uint8

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected State = iota

	// StateHandshaking indicates the key exchange is in progress.
	StateHandshaking

	// StateConnected indicates an established, encrypted session.
	StateConnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "HANDSHAKING"
	case StateConnected:
		return "CONNECTED"
	default:
		return "DISCONNECTED"
	}
}

// Config configures a device session.
type Config struct {
	// Device identifies the appliance. Required.
	Device DeviceInfo

	// Logger receives session events. Defaults to a no-op logger.
	Logger log.Logger

	// OnChange is invoked from the receive loop with each non-empty
	// change-set after an inbound merge.
	OnChange func(ac.ChangeSet)

	// OnDisconnect is invoked once per connection when the receive loop
	// terminates. A supervisor hooks reconnection here.
	OnDisconnect func(err error)
}

// Session drives one appliance over one connection. All attribute state is
// owned by the embedded synchronizer; the receive loop is its only writer
// while the session is connected.
type Session struct {
	device DeviceInfo
	logger log.Logger

	onChange     func(ac.ChangeSet)
	onDisconnect func(error)

	client *transport.Client
	sec    *security.Session
	sync   *ac.Synchronizer

	mu         sync.Mutex
	state      State
	conn       *transport.Conn
	connID     string
	creds      cloud.Credentials
	endianness cloud.TokenEndianness
	wg         sync.WaitGroup
}

// New creates a session for one appliance.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Session{
		device:       cfg.Device,
		logger:       logger,
		onChange:     cfg.OnChange,
		onDisconnect: cfg.OnDisconnect,
		client:       transport.NewClient(transport.ClientConfig{Logger: logger}),
		sec:          security.NewSession(rand.Reader),
		sync:         ac.NewSynchronizer(),
	}
}

// Device returns the appliance identity.
func (s *Session) Device() DeviceInfo {
	return s.device
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attributes returns a snapshot of the synchronizer's attribute values.
func (s *Session) Attributes() map[string]wire.Value {
	return s.sync.Attributes()
}

// SetCredentials supplies the token/key pair for the handshake, as restored
// from persistence or freshly acquired from the account service.
func (s *Session) SetCredentials(creds cloud.Credentials, endianness cloud.TokenEndianness) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
	s.endianness = endianness
}

// Credentials returns the current token/key pair and its endianness.
func (s *Session) Credentials() (cloud.Credentials, cloud.TokenEndianness) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds, s.endianness
}

// Pair acquires credentials through the gate and connects, probing token
// endianness in the fixed little-then-big order. The first serialization
// whose token completes the handshake wins; there is never a third attempt.
func (s *Session) Pair(ctx context.Context, gate *cloud.Gate) error {
	var lastErr error
	for _, endianness := range cloud.EndiannessOrder {
		creds, err := gate.Acquire(ctx, s.device.ID, endianness)
		if err != nil {
			lastErr = err
			continue
		}
		s.SetCredentials(creds, endianness)
		if err := s.Connect(ctx, false); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = cloud.ErrCredential
	}
	return fmt.Errorf("pairing failed: %w", lastErr)
}

// Connect opens the transport and performs the key exchange. On handshake
// failure one retry is attempted when retryHandshake is set; any terminal
// failure leaves the session Disconnected and returns ErrConnection. The
// attempt is bounded by ctx.
func (s *Session) Connect(ctx context.Context, retryHandshake bool) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return fmt.Errorf("%w: connect while %s", ErrConnection, s.state)
	}
	if s.device.ProtocolVersion >= 3 && len(s.creds.Token) == 0 {
		s.mu.Unlock()
		return ErrNoCredentials
	}
	creds := s.creds
	endianness := s.endianness
	connID := uuid.NewString()
	s.connID = connID
	s.setStateLocked(StateHandshaking, "connect")
	s.mu.Unlock()

	err := s.establish(ctx, connID, creds, endianness)
	if err != nil && retryHandshake && errors.Is(err, security.ErrHandshakeFailed) {
		err = s.establish(ctx, connID, creds, endianness)
	}
	if err != nil {
		s.mu.Lock()
		s.teardownLocked()
		s.setStateLocked(StateDisconnected, err.Error())
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	s.mu.Lock()
	s.setStateLocked(StateConnected, "handshake complete")
	conn := s.conn
	s.mu.Unlock()

	s.wg.Add(1)
	go s.receiveLoop(conn, connID)
	return nil
}

// establish dials and, on protocol v3, runs the key exchange.
func (s *Session) establish(ctx context.Context, connID string, creds cloud.Credentials, endianness cloud.TokenEndianness) error {
	conn, err := s.client.Connect(ctx, s.device.Addr(), connID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	if s.device.ProtocolVersion < 3 {
		return nil
	}

	if err := s.handshake(ctx, conn, connID, creds, endianness); err != nil {
		s.mu.Lock()
		s.teardownLocked()
		s.mu.Unlock()
		return err
	}
	return nil
}

// handshake sends the token and derives the per-session stream key.
func (s *Session) handshake(ctx context.Context, conn *transport.Conn, connID string, creds cloud.Credentials, endianness cloud.TokenEndianness) error {
	s.sec.Reset()

	request, err := s.sec.HandshakeRequest(creds.Token)
	if err != nil {
		return err
	}
	if err := conn.Send(request); err != nil {
		return err
	}

	timeout := handshakeTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	frame, err := conn.Receive(timeout)
	if err != nil {
		return fmt.Errorf("%w: %v", security.ErrHandshakeFailed, err)
	}
	msgType, payload, err := s.sec.Decode(frame)
	if err != nil {
		return err
	}
	if msgType != security.MsgTypeHandshakeResponse {
		return fmt.Errorf("%w: unexpected message type 0x%X", security.ErrHandshakeFailed, msgType)
	}

	err = s.sec.DeriveKey(payload, creds.Key)
	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerSession,
		Category:     log.CategoryHandshake,
		RemoteAddr:   s.device.Addr(),
		DeviceID:     s.device.ID,
		Handshake: &log.HandshakeEvent{
			Endianness: endianness.String(),
			Success:    err == nil,
		},
	})
	return err
}

// Disconnect closes the connection and returns the session to Disconnected.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.teardownLocked()
	s.setStateLocked(StateDisconnected, "disconnect requested")
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// BuildQuery returns the ordered queries to send after (re)connecting. The
// set differs by detected protocol family.
func (s *Session) BuildQuery() []ac.Command {
	return s.sync.BuildQueries()
}

// Query sends the full (re)connect query sequence.
func (s *Session) Query() error {
	for _, cmd := range s.BuildQuery() {
		if err := s.Send(cmd); err != nil {
			return err
		}
	}
	return nil
}

// SetAttributes routes desired attribute writes through the synchronizer and
// transmits the resulting commands in order. Fire-and-forget: confirmation
// arrives as a later status report.
func (s *Session) SetAttributes(requests []ac.SetRequest) error {
	for _, cmd := range s.sync.BuildCommand(requests) {
		if err := s.Send(cmd); err != nil {
			return err
		}
	}
	return nil
}

// SetTargetTemperature sends one command carrying the new setpoint; a
// non-zero mode also selects the mode and powers the unit on.
func (s *Session) SetTargetTemperature(value float64, mode int64) error {
	return s.Send(s.sync.SetTargetTemperature(value, mode))
}

// SetSwing sends the swing louvre command.
func (s *Session) SetSwing(horizontal, vertical bool) error {
	return s.Send(s.sync.SetSwing(horizontal, vertical))
}

// Send frames, encrypts and transmits one command without waiting for a
// response. Transport failures transition the session to Disconnected.
func (s *Session) Send(cmd ac.Command) error {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	conn := s.conn
	connID := s.connID
	s.mu.Unlock()

	frame := wire.EncodeFrame(s.device.Type, s.device.ProtocolVersion, cmd.FrameType, cmd.Body)
	packet := security.BuildPacket(s.device.ID, security.EncryptBody(frame), time.Now())

	payload := packet
	if s.device.ProtocolVersion >= 3 {
		var err error
		payload, err = s.sec.Encode(packet, security.MsgTypeEncryptedRequest)
		if err != nil {
			return fmt.Errorf("failed to encode frame: %w", err)
		}
	}

	if err := conn.Send(payload); err != nil {
		s.connectionLost(err)
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    log.DirectionOut,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		RemoteAddr:   s.device.Addr(),
		DeviceID:     s.device.ID,
		Message: &log.MessageEvent{
			FrameType: uint8(cmd.FrameType),
			BodyType:  cmd.Body[0],
			BodyLen:   len(cmd.Body),
		},
	})

	// The appliance does not acknowledge sets; commit the requested values
	// so readers see them until the next status report corrects the cache.
	s.sync.Commit(cmd.Apply)
	return nil
}

// receiveLoop decrypts and merges inbound frames until the connection drops.
func (s *Session) receiveLoop(conn *transport.Conn, connID string) {
	defer s.wg.Done()

	var loopErr error
	for {
		frame, err := conn.Receive(0)
		if err != nil {
			loopErr = err
			break
		}
		s.handleFrame(frame, connID)
	}

	s.mu.Lock()
	current := s.conn == conn
	s.mu.Unlock()
	if current {
		s.connectionLost(loopErr)
	}
	if s.onDisconnect != nil {
		s.onDisconnect(loopErr)
	}
}

// handleFrame processes one inbound frame. Every failure here is local: the
// frame is logged and dropped, the connection stays up.
func (s *Session) handleFrame(frame []byte, connID string) {
	packet := frame
	if s.device.ProtocolVersion >= 3 {
		msgType, payload, err := s.sec.Decode(frame)
		if err != nil {
			s.logError(connID, log.LayerTransport, err, "decode stream frame")
			return
		}
		if msgType != security.MsgTypeEncryptedResponse {
			return
		}
		packet = payload
	}

	raw, err := security.ExtractBody(packet)
	if err != nil {
		s.logError(connID, log.LayerTransport, err, "extract packet body")
		return
	}

	decoded, err := wire.DecodeFrame(raw)
	if err != nil {
		s.logError(connID, log.LayerWire, err, "decode device frame")
		return
	}
	if decoded.Type != wire.FrameTypeResponse && decoded.Type != wire.FrameTypeAbnormalReport {
		return
	}

	update, err := ac.DecodeResponse(decoded)
	if err != nil {
		s.logError(connID, log.LayerWire, err, "decode response body")
		return
	}

	changed := s.sync.ProcessIncoming(update)

	names := make([]string, 0, len(changed))
	for name := range changed {
		names = append(names, name)
	}
	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		RemoteAddr:   s.device.Addr(),
		DeviceID:     s.device.ID,
		Message: &log.MessageEvent{
			FrameType: uint8(decoded.Type),
			BodyType:  decoded.Body[0],
			BodyLen:   len(decoded.Body),
			Changed:   names,
		},
	})

	if len(changed) > 0 && s.onChange != nil {
		s.onChange(changed)
	}

	// A capability enumeration only advertises tag support; fetch the
	// advertised tags' current state right away.
	if cmd, ok := s.sync.TakeFollowUpQuery(); ok {
		if err := s.Send(cmd); err != nil {
			s.logError(connID, log.LayerSession, err, "follow-up tag query")
		}
	}
}

// connectionLost tears down the current connection and records the cause.
func (s *Session) connectionLost(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return
	}
	s.teardownLocked()
	reason := "connection lost"
	if err != nil {
		reason = err.Error()
	}
	s.setStateLocked(StateDisconnected, reason)
}

func (s *Session) teardownLocked() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.sec.Reset()
}

func (s *Session) setStateLocked(state State, reason string) {
	old := s.state
	s.state = state
	if old == state {
		return
	}
	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.connID,
		Layer:        log.LayerSession,
		Category:     log.CategoryState,
		RemoteAddr:   s.device.Addr(),
		DeviceID:     s.device.ID,
		StateChange: &log.StateChangeEvent{
			OldState: old.String(),
			NewState: state.String(),
			Reason:   reason,
		},
	})
}

func (s *Session) logError(connID string, layer log.Layer, err error, context string) {
	s.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    log.DirectionIn,
		Layer:        layer,
		Category:     log.CategoryError,
		RemoteAddr:   s.device.Addr(),
		DeviceID:     s.device.ID,
		Error: &log.ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: context,
		},
	})
}
