package persistence

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/kovapatrik/homebridge-midea-ac/pkg/cloud"
)

func tempStore(t *testing.T) (*CredentialStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	return NewCredentialStore(path), path
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, _ := tempStore(t)
	creds := cloud.Credentials{
		Token: bytes.Repeat([]byte{0xAB}, 64),
		Key:   bytes.Repeat([]byte{0xCD}, 32),
	}

	if err := store.Save(48734896523, creds, cloud.TokenBigEndian); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, endianness, found, err := store.Load(48734896523)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !found {
		t.Fatal("saved device not found")
	}
	if !bytes.Equal(got.Token, creds.Token) || !bytes.Equal(got.Key, creds.Key) {
		t.Error("credentials mismatch after round trip")
	}
	if endianness != cloud.TokenBigEndian {
		t.Errorf("endianness = %v, want big", endianness)
	}
}

func TestLoadUnknownDevice(t *testing.T) {
	store, _ := tempStore(t)
	_, _, found, err := store.Load(1234)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if found {
		t.Error("unknown device reported as found")
	}
}

func TestSavePreservesOtherDevices(t *testing.T) {
	store, _ := tempStore(t)
	first := cloud.Credentials{Token: []byte{0x01}, Key: []byte{0x02}}
	second := cloud.Credentials{Token: []byte{0x03}, Key: []byte{0x04}}

	if err := store.Save(1, first, cloud.TokenLittleEndian); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(2, second, cloud.TokenBigEndian); err != nil {
		t.Fatal(err)
	}

	got, _, found, err := store.Load(1)
	if err != nil || !found {
		t.Fatalf("first device lost: found=%t err=%v", found, err)
	}
	if !bytes.Equal(got.Token, first.Token) {
		t.Error("first device token overwritten")
	}
}

func TestForget(t *testing.T) {
	store, _ := tempStore(t)
	creds := cloud.Credentials{Token: []byte{0x01}, Key: []byte{0x02}}
	if err := store.Save(7, creds, cloud.TokenLittleEndian); err != nil {
		t.Fatal(err)
	}

	if err := store.Forget(7); err != nil {
		t.Fatalf("Forget failed: %v", err)
	}
	_, _, found, err := store.Load(7)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("device still present after Forget")
	}

	// Forgetting a device that was never saved is not an error.
	if err := store.Forget(99); err != nil {
		t.Errorf("Forget on absent device: %v", err)
	}
}

func TestFileLayout(t *testing.T) {
	store, path := tempStore(t)
	creds := cloud.Credentials{Token: []byte{0xAA, 0xBB}, Key: []byte{0xCC}}
	if err := store.Save(42, creds, cloud.TokenLittleEndian); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var state struct {
		Version int                         `json:"version"`
		Devices map[string]DeviceCredential `json:"devices"`
	}
	if err := json.Unmarshal(data, &state); err != nil {
		t.Fatalf("credential file is not valid JSON: %v", err)
	}
	if state.Version != StateVersion {
		t.Errorf("version = %d, want %d", state.Version, StateVersion)
	}
	entry, ok := state.Devices["42"]
	if !ok {
		t.Fatalf("device keyed by something other than its decimal ID: %v", state.Devices)
	}
	if entry.Token != "aabb" || entry.Key != "cc" {
		t.Errorf("material not hex encoded: %+v", entry)
	}
	if entry.Endianness != "little" {
		t.Errorf("endianness = %q, want little", entry.Endianness)
	}
}

func TestLoadCorruptEntry(t *testing.T) {
	store, path := tempStore(t)
	blob := `{"version":1,"devices":{"5":{"token":"zz","key":"00"}}}`
	if err := os.WriteFile(path, []byte(blob), 0644); err != nil {
		t.Fatal(err)
	}

	if _, _, _, err := store.Load(5); err == nil {
		t.Error("expected error for non-hex token")
	}
}
