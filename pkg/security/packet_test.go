package security

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

func TestBuildPacketExtractBodyRoundTrip(t *testing.T) {
	command := []byte{0xAA, 0x20, 0xAC, 0x00, 0x00, 0x00, 0x00, 0x00, 0x03, 0x03, 0x41, 0x81}
	now := time.Date(2026, 8, 30, 14, 5, 59, 120_000_000, time.UTC)

	packet := BuildPacket(48734896523, EncryptBody(command), now)

	if packet[0] != 0x5a || packet[1] != 0x5a {
		t.Fatalf("bad magic: % X", packet[:2])
	}
	if got := binary.LittleEndian.Uint16(packet[4:6]); int(got) != len(packet) {
		t.Errorf("declared length %d, packet is %d bytes", got, len(packet))
	}
	if got := binary.LittleEndian.Uint64(packet[20:28]); got != 48734896523 {
		t.Errorf("device ID: got %d", got)
	}

	body, err := ExtractBody(packet)
	if err != nil {
		t.Fatalf("ExtractBody failed: %v", err)
	}
	if !bytes.Equal(body, command) {
		t.Errorf("command mismatch: got % X, want % X", body, command)
	}
}

func TestExtractBodyRejectsTamperedPacket(t *testing.T) {
	packet := BuildPacket(1, EncryptBody([]byte{0x41}), time.Now())
	packet[41] ^= 0x01

	if _, err := ExtractBody(packet); !errors.Is(err, ErrSignMismatch) {
		t.Errorf("got %v, want ErrSignMismatch", err)
	}
}

func TestExtractBodyRejectsShortOrUnmagicked(t *testing.T) {
	if _, err := ExtractBody([]byte{0x5a, 0x5a}); !errors.Is(err, ErrPacketHeader) {
		t.Errorf("short packet: got %v, want ErrPacketHeader", err)
	}

	bogus := make([]byte, PacketHeaderSize+16)
	if _, err := ExtractBody(bogus); !errors.Is(err, ErrPacketHeader) {
		t.Errorf("bad magic: got %v, want ErrPacketHeader", err)
	}
}

func TestPackTime(t *testing.T) {
	ts := time.Date(2026, 8, 30, 14, 5, 59, 120_000_000, time.UTC)
	got := packTime(ts)
	want := []byte{12, 59, 5, 14, 30, 8, 26, 20}
	if !bytes.Equal(got, want) {
		t.Errorf("packTime: got %v, want %v", got, want)
	}
}
