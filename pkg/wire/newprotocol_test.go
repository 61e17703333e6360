package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeNewProtocolSet(t *testing.T) {
	params := []NewProtocolParam{
		{Tag: 0x0042, Value: []byte{0x02}},
		{Tag: 0x0233, Value: []byte{0x01, 0x28}},
	}
	got := EncodeNewProtocolSet(params)
	want := []byte{
		0x02,
		0x42, 0x00, 0x01, 0x02,
		0x33, 0x02, 0x02, 0x01, 0x28,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got % X, want % X", got, want)
	}
}

func TestEncodeNewProtocolQuery(t *testing.T) {
	got := EncodeNewProtocolQuery([]uint16{0x0018, 0x04B4})
	want := []byte{0x02, 0x18, 0x00, 0xB4, 0x04}
	if !bytes.Equal(got, want) {
		t.Errorf("got % X, want % X", got, want)
	}
}

func TestDecodeNewProtocolParams(t *testing.T) {
	// Response entries carry tag(2), status(1), length(1), value.
	payload := []byte{
		0x02,
		0x42, 0x00, 0x00, 0x01, 0x02,
		0x33, 0x02, 0x00, 0x02, 0x01, 0x28,
	}
	params, err := DecodeNewProtocolParams(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(params) != 2 {
		t.Fatalf("got %d params, want 2", len(params))
	}
	if !bytes.Equal(params[0x0042], []byte{0x02}) {
		t.Errorf("tag 0x42 value: got % X", params[0x0042])
	}
	if !bytes.Equal(params[0x0233], []byte{0x01, 0x28}) {
		t.Errorf("tag 0x233 value: got % X", params[0x0233])
	}
}

func TestDecodeNewProtocolParamsRejectsTruncation(t *testing.T) {
	cases := map[string][]byte{
		"empty":            {},
		"missing entry":    {0x01},
		"short header":     {0x01, 0x42, 0x00},
		"value overruns":   {0x01, 0x42, 0x00, 0x00, 0x05, 0x01},
		"count over count": {0x02, 0x42, 0x00, 0x00, 0x01, 0x02},
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeNewProtocolParams(payload); !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("got %v, want ErrMalformedFrame", err)
			}
		})
	}
}

func TestCRC8KnownVectors(t *testing.T) {
	// Maxim/Dallas CRC-8 reference vectors.
	cases := []struct {
		data []byte
		want byte
	}{
		{[]byte{}, 0x00},
		{[]byte{0x00}, 0x00},
		{[]byte{0x02, 0x1C, 0xB8, 0x01, 0x00, 0x00, 0x00, 0x00}, 0xA2},
		{[]byte("123456789"), 0xA1},
	}
	for _, tc := range cases {
		if got := CRC8(tc.data); got != tc.want {
			t.Errorf("CRC8(% X) = 0x%02X, want 0x%02X", tc.data, got, tc.want)
		}
	}
}

func TestAppendCRC8(t *testing.T) {
	body := []byte{0x41, 0x81, 0x00, 0xFF}
	out := AppendCRC8(append([]byte{}, body...))
	if len(out) != len(body)+1 {
		t.Fatalf("got %d bytes, want %d", len(out), len(body)+1)
	}
	if out[len(out)-1] != CRC8(body) {
		t.Errorf("trailing byte 0x%02X, want 0x%02X", out[len(out)-1], CRC8(body))
	}
}
