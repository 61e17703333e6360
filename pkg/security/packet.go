package security

import (
	"crypto/md5"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// LAN packet constants.
const (
	// PacketHeaderSize is the fixed 5a5a packet header length.
	PacketHeaderSize = 40

	// packetMagic0 and packetMagic1 are the LAN packet magic bytes.
	packetMagic0 = 0x5a
	packetMagic1 = 0x5a
)

// ErrPacketHeader indicates a LAN packet that does not start with the 5a5a magic.
var ErrPacketHeader = errors.New("invalid packet header")

// BuildPacket wraps an encrypted command into a LAN packet: the 40-byte
// header carrying declared length, a packed timestamp and the appliance ID,
// followed by the encrypted command and the MD5 trailer.
func BuildPacket(deviceID uint64, encryptedCommand []byte, now time.Time) []byte {
	packet := make([]byte, PacketHeaderSize, PacketHeaderSize+len(encryptedCommand)+md5.Size)
	packet[0] = packetMagic0
	packet[1] = packetMagic1
	packet[2] = 0x01
	packet[3] = 0x11
	binary.LittleEndian.PutUint16(packet[4:6], uint16(PacketHeaderSize+len(encryptedCommand)+md5.Size))
	packet[6] = 0x20

	copy(packet[12:20], packTime(now))
	binary.LittleEndian.PutUint64(packet[20:28], deviceID)

	packet = append(packet, encryptedCommand...)
	trailer := Trailer(packet)
	return append(packet, trailer[:]...)
}

// ExtractBody verifies a LAN packet's trailer and returns the decrypted
// command body.
func ExtractBody(packet []byte) ([]byte, error) {
	if len(packet) < PacketHeaderSize+md5.Size {
		return nil, fmt.Errorf("%w: %d bytes", ErrPacketHeader, len(packet))
	}
	if packet[0] != packetMagic0 || packet[1] != packetMagic1 {
		return nil, ErrPacketHeader
	}
	if err := VerifyTrailer(packet); err != nil {
		return nil, err
	}
	return DecryptBody(packet[PacketHeaderSize : len(packet)-md5.Size])
}

// packTime encodes the timestamp the way the appliance expects: one byte per
// pair of decimal digits of YYYYMMDDHHMMSSff, least significant pair first.
func packTime(t time.Time) []byte {
	fields := []int{
		t.Nanosecond() / 1e7,
		t.Second(),
		t.Minute(),
		t.Hour(),
		t.Day(),
		int(t.Month()),
		t.Year() % 100,
		t.Year() / 100,
	}
	out := make([]byte, len(fields))
	for i, f := range fields {
		out[i] = byte(f)
	}
	return out
}
