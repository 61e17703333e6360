package cloud

import (
	"context"
	"errors"
	"sync"
)

// ErrCredential indicates login or token retrieval failed. Surfaced to the
// onboarding caller; never fatal to the process.
var ErrCredential = errors.New("credential retrieval failed")

// TokenEndianness selects how the device identifier was serialized when the
// account service minted the token.
type TokenEndianness uint8

const (
	TokenLittleEndian TokenEndianness = iota
	TokenBigEndian
)

// String returns the endianness name.
func (e TokenEndianness) String() string {
	if e == TokenBigEndian {
		return "big"
	}
	return "little"
}

// EndiannessOrder is the fixed probe order on first pairing.
var EndiannessOrder = []TokenEndianness{TokenLittleEndian, TokenBigEndian}

// Credentials is one token/key pair for the local handshake.
type Credentials struct {
	Token []byte
	Key   []byte
}

// Provider supplies handshake credentials from the vendor account service.
type Provider interface {
	// Login establishes an account session. Idempotent once logged in.
	Login(ctx context.Context) error

	// GetToken fetches the token/key pair for one appliance under the given
	// identifier serialization. An empty token means the serialization was
	// wrong for this appliance.
	GetToken(ctx context.Context, deviceID uint64, endianness TokenEndianness) (Credentials, error)
}

// Gate serializes credential acquisition across concurrently onboarding
// devices. One gate is shared per provider.
type Gate struct {
	mu       sync.Mutex
	provider Provider
}

// NewGate wraps a provider with the onboarding gate.
func NewGate(provider Provider) *Gate {
	return &Gate{provider: provider}
}

// Acquire logs in and fetches a token/key pair while holding the gate. Only
// one acquisition runs at a time process-wide; ctx cancellation during the
// wait or the flow releases the gate cleanly.
func (g *Gate) Acquire(ctx context.Context, deviceID uint64, endianness TokenEndianness) (Credentials, error) {
	if err := g.lock(ctx); err != nil {
		return Credentials{}, err
	}
	defer g.mu.Unlock()

	if err := g.provider.Login(ctx); err != nil {
		return Credentials{}, errors.Join(ErrCredential, err)
	}
	creds, err := g.provider.GetToken(ctx, deviceID, endianness)
	if err != nil {
		return Credentials{}, errors.Join(ErrCredential, err)
	}
	if len(creds.Token) == 0 {
		return Credentials{}, ErrCredential
	}
	return creds, nil
}

// lock acquires the gate mutex, abandoning the wait if ctx is done first.
func (g *Gate) lock(ctx context.Context) error {
	acquired := make(chan struct{})
	go func() {
		g.mu.Lock()
		close(acquired)
	}()
	select {
	case <-acquired:
		return nil
	case <-ctx.Done():
		go func() {
			<-acquired
			g.mu.Unlock()
		}()
		return ctx.Err()
	}
}
