package discovery

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/kovapatrik/homebridge-midea-ac/pkg/security"
)

// buildReply constructs a v2 discovery reply for the given identity.
func buildReply(t *testing.T, deviceID uint64, port uint32, serial, ssid string) []byte {
	t.Helper()
	if len(serial) != 32 {
		t.Fatalf("serial must be 32 bytes, got %d", len(serial))
	}

	plain := make([]byte, 41+len(ssid))
	binary.LittleEndian.PutUint32(plain[4:8], port)
	copy(plain[8:40], serial)
	plain[40] = byte(len(ssid))
	copy(plain[41:], ssid)

	data := make([]byte, 40)
	data[0] = 0x5a
	data[1] = 0x5a
	binary.LittleEndian.PutUint64(data[20:28], deviceID)
	data = append(data, security.EncryptBody(plain)...)
	return append(data, make([]byte, 16)...)
}

func TestParseReply(t *testing.T) {
	serial := "000000P0000000Q1F0A0000000000000"
	reply := buildReply(t, 48734896523, 6444, serial, "net_ac_F9DC")

	info, err := ParseReply("192.168.1.50", reply)
	if err != nil {
		t.Fatalf("ParseReply failed: %v", err)
	}
	if info.ID != 48734896523 {
		t.Errorf("device ID = %d", info.ID)
	}
	if info.IP != "192.168.1.50" || info.Port != 6444 {
		t.Errorf("address = %s:%d", info.IP, info.Port)
	}
	if info.SerialNumber != serial {
		t.Errorf("serial = %q", info.SerialNumber)
	}
	if info.Type != 0xAC {
		t.Errorf("type = 0x%02X, want 0xAC", info.Type)
	}
	if info.ProtocolVersion != 2 {
		t.Errorf("protocol version = %d, want 2", info.ProtocolVersion)
	}
}

func TestParseReplyStreamWrapped(t *testing.T) {
	inner := buildReply(t, 7, 6444, "000000P0000000Q1F0A0000000000000", "net_ac_1234")

	wrapped := make([]byte, 8)
	wrapped[0] = 0x83
	wrapped[1] = 0x70
	wrapped = append(wrapped, inner...)
	wrapped = append(wrapped, make([]byte, 16)...)

	info, err := ParseReply("10.0.0.2", wrapped)
	if err != nil {
		t.Fatalf("ParseReply failed: %v", err)
	}
	if info.ProtocolVersion != 3 {
		t.Errorf("protocol version = %d, want 3", info.ProtocolVersion)
	}
	if info.ID != 7 {
		t.Errorf("device ID = %d, want 7", info.ID)
	}
}

func TestParseReplyRejectsMalformed(t *testing.T) {
	cases := map[string][]byte{
		"empty":     {},
		"short":     {0x5a, 0x5a, 0x01},
		"bad magic": make([]byte, 120),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseReply("10.0.0.1", data); !errors.Is(err, ErrMalformedReply) {
				t.Errorf("got %v, want ErrMalformedReply", err)
			}
		})
	}

	t.Run("unaligned ciphertext", func(t *testing.T) {
		data := make([]byte, 119)
		data[0] = 0x5a
		data[1] = 0x5a
		if _, err := ParseReply("10.0.0.1", data); !errors.Is(err, ErrMalformedReply) {
			t.Errorf("got %v, want ErrMalformedReply", err)
		}
	})
}

func TestTypeFromSSID(t *testing.T) {
	cases := map[string]uint8{
		"net_ac_F9DC":   0xAC,
		"net_a1_0000":   0xA1,
		"midea":         0,
		"net_zz_suffix": 0,
	}
	for ssid, want := range cases {
		if got := typeFromSSID(ssid); got != want {
			t.Errorf("typeFromSSID(%q) = 0x%02X, want 0x%02X", ssid, got, want)
		}
	}
}
