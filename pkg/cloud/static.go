package cloud

import (
	"context"
	"fmt"
	"sync"
)

// StaticProvider serves pre-configured token/key pairs, for installations
// where pairing happened elsewhere and the host platform supplies the
// material directly. It ignores endianness: a stored pair is already the
// right serialization.
type StaticProvider struct {
	mu    sync.Mutex
	creds map[uint64]Credentials
}

// NewStaticProvider creates an empty static provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{creds: make(map[uint64]Credentials)}
}

// Add registers a token/key pair for one device.
func (p *StaticProvider) Add(deviceID uint64, creds Credentials) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.creds[deviceID] = creds
}

// Login is a no-op; the material is already local.
func (p *StaticProvider) Login(ctx context.Context) error {
	return nil
}

// GetToken returns the stored pair for deviceID.
func (p *StaticProvider) GetToken(ctx context.Context, deviceID uint64, endianness TokenEndianness) (Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	creds, ok := p.creds[deviceID]
	if !ok {
		return Credentials{}, fmt.Errorf("%w: no stored credentials for device %d", ErrCredential, deviceID)
	}
	return creds, nil
}

var _ Provider = (*StaticProvider)(nil)
