package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

// 8370 stream constants.
const (
	// HeaderSize is the size of the 8370 frame header in bytes.
	HeaderSize = 6

	// magic0 and magic1 are the 8370 magic bytes.
	magic0 = 0x83
	magic1 = 0x70

	// signSize is the SHA-256 signature length appended to encrypted frames.
	signSize = sha256.Size

	// countSize is the request/response counter prefix length.
	countSize = 2
)

// MsgType identifies the 8370 frame payload kind (low nibble of header byte 5).
type MsgType uint8

const (
	// MsgTypeHandshakeRequest carries the pairing token.
	MsgTypeHandshakeRequest MsgType = 0x0

	// MsgTypeHandshakeResponse carries the session key material.
	MsgTypeHandshakeResponse MsgType = 0x1

	// MsgTypeEncryptedResponse is an encrypted appliance-to-client frame.
	MsgTypeEncryptedResponse MsgType = 0x3

	// MsgTypeEncryptedRequest is an encrypted client-to-appliance frame.
	MsgTypeEncryptedRequest MsgType = 0x6
)

// Session errors.
var (
	// ErrNoSessionKey indicates an encrypted operation before the handshake
	// derived a TCP key.
	ErrNoSessionKey = errors.New("session key not derived")

	// ErrFrameHeader indicates a frame that does not start with the 8370 magic.
	ErrFrameHeader = errors.New("invalid 8370 header")

	// ErrFrameShort indicates a frame shorter than its declared size.
	ErrFrameShort = errors.New("8370 frame shorter than declared size")
)

// handshakeErrorBody is what the appliance returns instead of key material
// when the token does not match.
var handshakeErrorBody = []byte("ERROR")

// Session holds the per-connection 8370 stream state: the derived TCP key and
// the request/response counters. It is owned by exactly one device session.
type Session struct {
	mu sync.Mutex

	rand io.Reader

	tcpKey        []byte
	requestCount  uint16
	responseCount uint16
}

// NewSession creates a session. rand supplies the padding bytes for encrypted
// frames; inject a deterministic reader in tests.
func NewSession(rand io.Reader) *Session {
	return &Session{rand: rand}
}

// Ready reports whether the handshake has derived a TCP key.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tcpKey != nil
}

// Reset discards the derived key and counters. Call on disconnect; the next
// connect performs a fresh handshake.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tcpKey = nil
	s.requestCount = 0
	s.responseCount = 0
}

// HandshakeRequest builds the 8370 handshake frame carrying the device token.
func (s *Session) HandshakeRequest(token []byte) ([]byte, error) {
	return s.Encode(token, MsgTypeHandshakeRequest)
}

// DeriveKey derives the per-session TCP key from the handshake response
// payload and the device key. The payload is 32 bytes of AES-CBC encrypted
// key material followed by a 32-byte SHA-256 signature of the plaintext.
func (s *Session) DeriveKey(payload, key []byte) error {
	if len(payload) == len(handshakeErrorBody) && string(payload) == string(handshakeErrorBody) {
		return ErrHandshakeFailed
	}
	if len(payload) != 64 {
		return fmt.Errorf("%w: key material is %d bytes, want 64", ErrHandshakeFailed, len(payload))
	}

	material, sign := payload[:32], payload[32:]
	kek := sha256.Sum256(key)

	plain, err := aesCBCDecrypt(material, kek[:])
	if err != nil {
		return fmt.Errorf("failed to decrypt key material: %w", err)
	}

	if sha256.Sum256(plain) != [32]byte(sign) {
		return ErrSignMismatch
	}

	tcpKey := make([]byte, len(plain))
	for i := range plain {
		tcpKey[i] = plain[i] ^ key[i%len(key)]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tcpKey = tcpKey
	s.requestCount = 0
	s.responseCount = 0
	return nil
}

// Encode wraps data in an 8370 frame. Encrypted request/response frames are
// padded to the AES block size with injected random bytes, AES-CBC encrypted
// under the TCP key, and signed with SHA-256 over header plus plaintext.
func (s *Session) Encode(data []byte, msgType MsgType) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	encrypted := msgType == MsgTypeEncryptedRequest || msgType == MsgTypeEncryptedResponse
	if encrypted && s.tcpKey == nil {
		return nil, ErrNoSessionKey
	}

	size := len(data)
	padding := 0
	if encrypted {
		padding = (aes.BlockSize - (size+countSize)%aes.BlockSize) % aes.BlockSize
		size += padding + signSize
		if padding > 0 {
			pad := make([]byte, padding)
			if _, err := io.ReadFull(s.rand, pad); err != nil {
				return nil, fmt.Errorf("failed to read padding: %w", err)
			}
			data = append(append([]byte{}, data...), pad...)
		}
	}

	header := make([]byte, HeaderSize)
	header[0] = magic0
	header[1] = magic1
	binary.BigEndian.PutUint16(header[2:4], uint16(size+countSize))
	header[4] = 0x20
	header[5] = byte(padding)<<4 | byte(msgType)

	payload := make([]byte, countSize+len(data))
	binary.BigEndian.PutUint16(payload[:countSize], s.requestCount)
	copy(payload[countSize:], data)
	s.requestCount++

	if !encrypted {
		return append(header, payload...), nil
	}

	sign := sha256.Sum256(append(append([]byte{}, header...), payload...))
	enc, err := aesCBCEncrypt(payload, s.tcpKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt frame: %w", err)
	}

	frame := append(header, enc...)
	return append(frame, sign[:]...), nil
}

// Decode unwraps one complete 8370 frame. For encrypted frames the signature
// is verified before the padding and counter prefix are stripped; a mismatch
// returns ErrSignMismatch and the frame must be dropped.
func (s *Session) Decode(frame []byte) (MsgType, []byte, error) {
	if len(frame) < HeaderSize {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrFrameShort, len(frame))
	}
	if frame[0] != magic0 || frame[1] != magic1 {
		return 0, nil, ErrFrameHeader
	}

	size := int(binary.BigEndian.Uint16(frame[2:4]))
	if len(frame) < HeaderSize+size {
		return 0, nil, fmt.Errorf("%w: have %d, declared %d", ErrFrameShort, len(frame)-HeaderSize, size)
	}

	header := frame[:HeaderSize]
	payload := frame[HeaderSize : HeaderSize+size]
	padding := int(frame[5] >> 4)
	msgType := MsgType(frame[5] & 0x0f)

	if msgType != MsgTypeEncryptedRequest && msgType != MsgTypeEncryptedResponse {
		if len(payload) < countSize {
			return msgType, nil, fmt.Errorf("%w: missing counter", ErrFrameShort)
		}
		return msgType, payload[countSize:], nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tcpKey == nil {
		return msgType, nil, ErrNoSessionKey
	}
	if len(payload) < signSize {
		return msgType, nil, fmt.Errorf("%w: missing signature", ErrFrameShort)
	}

	enc, sign := payload[:len(payload)-signSize], payload[len(payload)-signSize:]
	plain, err := aesCBCDecrypt(enc, s.tcpKey)
	if err != nil {
		return msgType, nil, fmt.Errorf("failed to decrypt frame: %w", err)
	}

	want := sha256.Sum256(append(append([]byte{}, header...), plain...))
	if want != [32]byte(sign) {
		return msgType, nil, ErrSignMismatch
	}

	if padding > len(plain)-countSize {
		return msgType, nil, fmt.Errorf("%w: padding exceeds payload", ErrFrameShort)
	}
	plain = plain[:len(plain)-padding]
	s.responseCount = binary.BigEndian.Uint16(plain[:countSize])

	return msgType, plain[countSize:], nil
}

// ResponseCount returns the counter carried by the last decoded frame.
func (s *Session) ResponseCount() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responseCount
}

// aesCBCEncrypt encrypts data with AES-CBC and a zero IV. The stream protocol
// fixes the IV; freshness comes from the per-session key and counters.
func aesCBCEncrypt(data, key []byte) ([]byte, error) {
	if len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCiphertextLength, len(data))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, aes.BlockSize)
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

// aesCBCDecrypt decrypts data with AES-CBC and a zero IV.
func aesCBCDecrypt(data, key []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCiphertextLength, len(data))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, aes.BlockSize)
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}
