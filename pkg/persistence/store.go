package persistence

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/kovapatrik/homebridge-midea-ac/pkg/cloud"
)

// StateVersion is the current version of the credential file format.
const StateVersion = 1

// credentialState is the on-disk file layout. Device IDs serialize as
// decimal strings because JSON object keys cannot be numbers.
type credentialState struct {
	Version int                         `json:"version"`
	SavedAt time.Time                   `json:"saved_at"`
	Devices map[string]DeviceCredential `json:"devices,omitempty"`
}

// DeviceCredential is one persisted token/key pair.
type DeviceCredential struct {
	// Token and Key are hex-encoded handshake material.
	Token string `json:"token"`
	Key   string `json:"key"`

	// Endianness records which identifier serialization minted the token
	// ("little" or "big"), so reconnects skip the probe.
	Endianness string `json:"endianness,omitempty"`

	// PairedAt is when the pair was first acquired.
	PairedAt time.Time `json:"paired_at,omitempty"`
}

// CredentialStore manages the credential file.
type CredentialStore struct {
	mu   sync.Mutex
	path string
}

// NewCredentialStore creates a store backed by path.
func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{path: path}
}

// Save persists one device's credentials, creating or rewriting its entry.
func (s *CredentialStore) Save(deviceID uint64, creds cloud.Credentials, endianness cloud.TokenEndianness) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadLocked()
	if err != nil {
		return err
	}
	if state.Devices == nil {
		state.Devices = make(map[string]DeviceCredential)
	}

	state.Devices[strconv.FormatUint(deviceID, 10)] = DeviceCredential{
		Token:      hex.EncodeToString(creds.Token),
		Key:        hex.EncodeToString(creds.Key),
		Endianness: endianness.String(),
		PairedAt:   time.Now(),
	}

	return s.saveLocked(state)
}

// Load returns one device's credentials. The second return is false when the
// device has never been paired.
func (s *CredentialStore) Load(deviceID uint64) (cloud.Credentials, cloud.TokenEndianness, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadLocked()
	if err != nil {
		return cloud.Credentials{}, 0, false, err
	}

	entry, ok := state.Devices[strconv.FormatUint(deviceID, 10)]
	if !ok {
		return cloud.Credentials{}, 0, false, nil
	}

	token, err := hex.DecodeString(entry.Token)
	if err != nil {
		return cloud.Credentials{}, 0, false, fmt.Errorf("corrupt token for device %d: %w", deviceID, err)
	}
	key, err := hex.DecodeString(entry.Key)
	if err != nil {
		return cloud.Credentials{}, 0, false, fmt.Errorf("corrupt key for device %d: %w", deviceID, err)
	}

	endianness := cloud.TokenLittleEndian
	if entry.Endianness == cloud.TokenBigEndian.String() {
		endianness = cloud.TokenBigEndian
	}

	return cloud.Credentials{Token: token, Key: key}, endianness, true, nil
}

// Forget removes one device's entry, for re-pairing.
func (s *CredentialStore) Forget(deviceID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadLocked()
	if err != nil {
		return err
	}
	key := strconv.FormatUint(deviceID, 10)
	if _, ok := state.Devices[key]; !ok {
		return nil
	}
	delete(state.Devices, key)
	return s.saveLocked(state)
}

func (s *CredentialStore) loadLocked() (*credentialState, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &credentialState{}, nil
	}
	if err != nil {
		return nil, err
	}

	state := &credentialState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *CredentialStore) saveLocked(state *credentialState) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	state.SavedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}
