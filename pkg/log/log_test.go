package log

import (
	"io"
	"path/filepath"
	"testing"
	"time"
)

func sampleEvent(connID string, deviceID uint64, category Category, ts time.Time) Event {
	return Event{
		Timestamp:    ts,
		ConnectionID: connID,
		Direction:    DirectionIn,
		Layer:        LayerWire,
		Category:     category,
		RemoteAddr:   "192.168.1.50:6444",
		DeviceID:     deviceID,
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	ts := time.Date(2026, 8, 30, 14, 5, 59, 123456789, time.UTC)
	event := sampleEvent("conn-1", 42, CategoryMessage, ts)
	event.Message = &MessageEvent{
		FrameType: 0x04,
		BodyType:  0xC0,
		BodyLen:   24,
		Changed:   []string{"power", "mode"},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if !decoded.Timestamp.Equal(ts) {
		t.Errorf("timestamp: got %v, want %v", decoded.Timestamp, ts)
	}
	if decoded.ConnectionID != "conn-1" || decoded.DeviceID != 42 {
		t.Errorf("identity fields: %+v", decoded)
	}
	if decoded.Message == nil {
		t.Fatal("message payload lost")
	}
	if decoded.Message.BodyType != 0xC0 || len(decoded.Message.Changed) != 2 {
		t.Errorf("message payload: %+v", decoded.Message)
	}
	if decoded.Handshake != nil || decoded.Error != nil || decoded.StateChange != nil {
		t.Error("unset payloads decoded as non-nil")
	}
}

func TestEncodeDecodeHandshakeAndStateEvents(t *testing.T) {
	t.Run("handshake", func(t *testing.T) {
		event := sampleEvent("conn-2", 7, CategoryHandshake, time.Now().UTC())
		event.Handshake = &HandshakeEvent{Endianness: "big", Success: true}

		data, err := EncodeEvent(event)
		if err != nil {
			t.Fatal(err)
		}
		decoded, err := DecodeEvent(data)
		if err != nil {
			t.Fatal(err)
		}
		if decoded.Handshake == nil || !decoded.Handshake.Success || decoded.Handshake.Endianness != "big" {
			t.Errorf("handshake payload: %+v", decoded.Handshake)
		}
	})

	t.Run("state change", func(t *testing.T) {
		event := sampleEvent("conn-2", 7, CategoryState, time.Now().UTC())
		event.StateChange = &StateChangeEvent{OldState: "HANDSHAKING", NewState: "CONNECTED", Reason: "handshake complete"}

		data, err := EncodeEvent(event)
		if err != nil {
			t.Fatal(err)
		}
		decoded, err := DecodeEvent(data)
		if err != nil {
			t.Fatal(err)
		}
		if decoded.StateChange == nil || decoded.StateChange.NewState != "CONNECTED" {
			t.Errorf("state payload: %+v", decoded.StateChange)
		}
	})
}

func TestFileLoggerAndReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.cbor")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatal(err)
	}
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	logger.Log(sampleEvent("conn-a", 1, CategoryMessage, base))
	logger.Log(sampleEvent("conn-b", 2, CategoryError, base.Add(time.Minute)))
	logger.Log(sampleEvent("conn-a", 1, CategoryState, base.Add(2*time.Minute)))
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	// Logging after close is a silent no-op.
	logger.Log(sampleEvent("conn-c", 3, CategoryMessage, base))

	reader, err := NewReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	var count int
	for {
		_, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		count++
	}
	if count != 3 {
		t.Errorf("read %d events, want 3", count)
	}
}

func TestFilteredReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.cbor")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatal(err)
	}
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	logger.Log(sampleEvent("conn-a", 1, CategoryMessage, base))
	logger.Log(sampleEvent("conn-b", 2, CategoryError, base.Add(time.Minute)))
	logger.Log(sampleEvent("conn-a", 1, CategoryState, base.Add(2*time.Minute)))
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	t.Run("by connection", func(t *testing.T) {
		reader, err := NewFilteredReader(path, Filter{ConnectionID: "conn-a"})
		if err != nil {
			t.Fatal(err)
		}
		defer reader.Close()
		var got []Event
		for {
			e, err := reader.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatal(err)
			}
			got = append(got, e)
		}
		if len(got) != 2 {
			t.Fatalf("got %d events, want 2", len(got))
		}
		for _, e := range got {
			if e.ConnectionID != "conn-a" {
				t.Errorf("leaked event for %q", e.ConnectionID)
			}
		}
	})

	t.Run("by category and device", func(t *testing.T) {
		category := CategoryError
		reader, err := NewFilteredReader(path, Filter{Category: &category, DeviceID: 2})
		if err != nil {
			t.Fatal(err)
		}
		defer reader.Close()
		e, err := reader.Next()
		if err != nil {
			t.Fatal(err)
		}
		if e.DeviceID != 2 || e.Category != CategoryError {
			t.Errorf("wrong event: %+v", e)
		}
		if _, err := reader.Next(); err != io.EOF {
			t.Errorf("got %v, want io.EOF", err)
		}
	})

	t.Run("by time window", func(t *testing.T) {
		start := base.Add(30 * time.Second)
		end := base.Add(90 * time.Second)
		reader, err := NewFilteredReader(path, Filter{TimeStart: &start, TimeEnd: &end})
		if err != nil {
			t.Fatal(err)
		}
		defer reader.Close()
		e, err := reader.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !e.Timestamp.Equal(base.Add(time.Minute)) {
			t.Errorf("wrong event in window: %v", e.Timestamp)
		}
		if _, err := reader.Next(); err != io.EOF {
			t.Errorf("got %v, want io.EOF", err)
		}
	})
}

// countingLogger counts received events.
type countingLogger struct{ n int }

func (c *countingLogger) Log(Event) { c.n++ }

func TestMultiLogger(t *testing.T) {
	a := &countingLogger{}
	b := &countingLogger{}
	multi := NewMultiLogger(a, b, NoopLogger{})

	multi.Log(sampleEvent("conn-1", 1, CategoryMessage, time.Now()))
	multi.Log(sampleEvent("conn-1", 1, CategoryMessage, time.Now()))

	if a.n != 2 || b.n != 2 {
		t.Errorf("fan-out counts: %d, %d", a.n, b.n)
	}
}
