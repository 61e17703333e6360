package security

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"testing"
)

// zeroReader supplies deterministic padding bytes for tests.
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

// handshakeResponse builds the 64-byte key-material payload an appliance
// returns for the given device key, together with the TCP key it implies.
func handshakeResponse(t *testing.T, key []byte) (payload, tcpKey []byte) {
	t.Helper()

	plain := bytes.Repeat([]byte{0x37}, 32)
	kek := sha256.Sum256(key)
	material, err := aesCBCEncrypt(plain, kek[:])
	if err != nil {
		t.Fatalf("failed to build key material: %v", err)
	}
	sign := sha256.Sum256(plain)

	tcpKey = make([]byte, len(plain))
	for i := range plain {
		tcpKey[i] = plain[i] ^ key[i%len(key)]
	}
	return append(material, sign[:]...), tcpKey
}

func TestDeriveKey(t *testing.T) {
	key := bytes.Repeat([]byte{0xA5}, 32)
	payload, want := handshakeResponse(t, key)

	s := NewSession(zeroReader{})
	if s.Ready() {
		t.Fatal("session ready before handshake")
	}
	if err := s.DeriveKey(payload, key); err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	if !s.Ready() {
		t.Fatal("session not ready after handshake")
	}
	if !bytes.Equal(s.tcpKey, want) {
		t.Errorf("tcp key mismatch: got % X, want % X", s.tcpKey, want)
	}
}

func TestDeriveKeyRejections(t *testing.T) {
	key := bytes.Repeat([]byte{0xA5}, 32)

	t.Run("error body", func(t *testing.T) {
		s := NewSession(zeroReader{})
		if err := s.DeriveKey([]byte("ERROR"), key); !errors.Is(err, ErrHandshakeFailed) {
			t.Errorf("got %v, want ErrHandshakeFailed", err)
		}
	})

	t.Run("short payload", func(t *testing.T) {
		s := NewSession(zeroReader{})
		if err := s.DeriveKey(make([]byte, 32), key); !errors.Is(err, ErrHandshakeFailed) {
			t.Errorf("got %v, want ErrHandshakeFailed", err)
		}
	})

	t.Run("bad signature", func(t *testing.T) {
		payload, _ := handshakeResponse(t, key)
		payload[40] ^= 0x01
		s := NewSession(zeroReader{})
		if err := s.DeriveKey(payload, key); !errors.Is(err, ErrSignMismatch) {
			t.Errorf("got %v, want ErrSignMismatch", err)
		}
	})
}

func TestEncodeDecodeEncryptedRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, 32)
	payload, _ := handshakeResponse(t, key)

	sender := NewSession(zeroReader{})
	if err := sender.DeriveKey(payload, key); err != nil {
		t.Fatal(err)
	}
	receiver := NewSession(zeroReader{})
	if err := receiver.DeriveKey(payload, key); err != nil {
		t.Fatal(err)
	}

	data := []byte{0x5a, 0x5a, 0x01, 0x11, 0x68, 0x00, 0x20, 0x00, 0xDE, 0xAD}
	frame, err := sender.Encode(data, MsgTypeEncryptedRequest)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	msgType, decoded, err := receiver.Decode(frame)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if msgType != MsgTypeEncryptedRequest {
		t.Errorf("message type: got 0x%X, want 0x%X", msgType, MsgTypeEncryptedRequest)
	}
	if !bytes.Equal(decoded, data) {
		t.Errorf("payload mismatch: got % X, want % X", decoded, data)
	}
	if got := receiver.ResponseCount(); got != 0 {
		t.Errorf("counter after first frame = %d, want 0", got)
	}

	// The counter prefix advances per frame and survives the round trip.
	frame, err = sender.Encode(data, MsgTypeEncryptedRequest)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if _, _, err := receiver.Decode(frame); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got := receiver.ResponseCount(); got != 1 {
		t.Errorf("counter after second frame = %d, want 1", got)
	}
}

func TestDecodeRejectsTamperedFrame(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, 32)
	payload, _ := handshakeResponse(t, key)

	s := NewSession(zeroReader{})
	if err := s.DeriveKey(payload, key); err != nil {
		t.Fatal(err)
	}

	frame, err := s.Encode([]byte{0x01, 0x02, 0x03}, MsgTypeEncryptedRequest)
	if err != nil {
		t.Fatal(err)
	}
	frame[HeaderSize+2] ^= 0xFF

	if _, _, err := s.Decode(frame); !errors.Is(err, ErrSignMismatch) {
		t.Errorf("got %v, want ErrSignMismatch", err)
	}
}

func TestDecodeFrameValidation(t *testing.T) {
	s := NewSession(zeroReader{})

	t.Run("short frame", func(t *testing.T) {
		if _, _, err := s.Decode([]byte{0x83}); !errors.Is(err, ErrFrameShort) {
			t.Errorf("got %v, want ErrFrameShort", err)
		}
	})

	t.Run("bad magic", func(t *testing.T) {
		if _, _, err := s.Decode([]byte{0x00, 0x00, 0x00, 0x02, 0x20, 0x00}); !errors.Is(err, ErrFrameHeader) {
			t.Errorf("got %v, want ErrFrameHeader", err)
		}
	})

	t.Run("declared length beyond frame", func(t *testing.T) {
		if _, _, err := s.Decode([]byte{0x83, 0x70, 0x00, 0x40, 0x20, 0x00}); !errors.Is(err, ErrFrameShort) {
			t.Errorf("got %v, want ErrFrameShort", err)
		}
	})

	t.Run("encrypted before handshake", func(t *testing.T) {
		frame := []byte{0x83, 0x70, 0x00, 0x02, 0x20, 0x06, 0x00, 0x00}
		if _, _, err := s.Decode(frame); !errors.Is(err, ErrNoSessionKey) {
			t.Errorf("got %v, want ErrNoSessionKey", err)
		}
	})
}

func TestHandshakeRequestIsPlaintextFrame(t *testing.T) {
	s := NewSession(zeroReader{})
	token := bytes.Repeat([]byte{0xBE}, 32)

	frame, err := s.HandshakeRequest(token)
	if err != nil {
		t.Fatalf("HandshakeRequest failed: %v", err)
	}

	msgType, payload, err := NewSession(zeroReader{}).Decode(frame)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if msgType != MsgTypeHandshakeRequest {
		t.Errorf("message type: got 0x%X, want 0x%X", msgType, MsgTypeHandshakeRequest)
	}
	if !bytes.Equal(payload, token) {
		t.Errorf("token mismatch")
	}
}

func TestResetDiscardsKey(t *testing.T) {
	key := bytes.Repeat([]byte{0x22}, 32)
	payload, _ := handshakeResponse(t, key)

	s := NewSession(zeroReader{})
	if err := s.DeriveKey(payload, key); err != nil {
		t.Fatal(err)
	}
	s.Reset()
	if s.Ready() {
		t.Error("session still ready after Reset")
	}
	if _, err := s.Encode([]byte{0x01}, MsgTypeEncryptedRequest); !errors.Is(err, ErrNoSessionKey) {
		t.Errorf("got %v, want ErrNoSessionKey", err)
	}
}
