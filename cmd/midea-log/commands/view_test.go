package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kovapatrik/homebridge-midea-ac/pkg/log"
)

// createTestLogFile writes the events to a temp log file and returns its path.
func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.cbor")
	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("creating log file: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("closing log file: %v", err)
	}
	return path
}

func TestFormatFrameEvent(t *testing.T) {
	ts := time.Date(2026, 8, 30, 10, 15, 32, 123000000, time.UTC)
	event := log.Event{
		Timestamp:    ts,
		ConnectionID: "abc12345-6789-0123-4567-890abcdef012",
		Direction:    log.DirectionOut,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame:        &log.FrameEvent{Size: 128},
	}

	output := formatEvent(event)

	if !strings.Contains(output, "10:15:32.123") {
		t.Errorf("expected timestamp, got: %s", output)
	}
	if !strings.Contains(output, "OUT") {
		t.Errorf("expected OUT direction, got: %s", output)
	}
	if !strings.Contains(output, "TRANSPORT") {
		t.Errorf("expected TRANSPORT layer, got: %s", output)
	}
	if !strings.Contains(output, "FRAME size=128") {
		t.Errorf("expected frame info, got: %s", output)
	}
}

func TestFormatMessageEvent(t *testing.T) {
	event := log.Event{
		Timestamp:    time.Date(2026, 8, 30, 10, 15, 32, 0, time.UTC),
		ConnectionID: "conn-1",
		Direction:    log.DirectionIn,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		DeviceID:     48734896523,
		Message: &log.MessageEvent{
			FrameType: 0x04,
			BodyType:  0xC0,
			BodyLen:   24,
			Changed:   []string{"power", "mode"},
		},
	}

	output := formatEvent(event)

	if !strings.Contains(output, "dev=48734896523") {
		t.Errorf("expected device ID, got: %s", output)
	}
	if !strings.Contains(output, "MESSAGE frame=0x04 body=0xC0 len=24") {
		t.Errorf("expected message info, got: %s", output)
	}
	if !strings.Contains(output, "changed=power,mode") {
		t.Errorf("expected changed attributes, got: %s", output)
	}
}

func TestFormatHandshakeAndErrorEvents(t *testing.T) {
	handshake := log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerSession,
		Category:  log.CategoryHandshake,
		Handshake: &log.HandshakeEvent{Endianness: "big", Success: true},
	}
	if output := formatEvent(handshake); !strings.Contains(output, "HANDSHAKE endianness=big ok") {
		t.Errorf("handshake output: %s", output)
	}

	errEvent := log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerSession,
		Category:  log.CategoryError,
		Error:     &log.ErrorEventData{Layer: log.LayerTransport, Message: "read timeout", Context: "poll"},
	}
	if output := formatEvent(errEvent); !strings.Contains(output, "ERROR read timeout (poll)") {
		t.Errorf("error output: %s", output)
	}
}

func TestRunViewFiltersByLayer(t *testing.T) {
	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Layer: log.LayerTransport, Category: log.CategoryMessage, Frame: &log.FrameEvent{Size: 64}},
		{Timestamp: ts, Layer: log.LayerWire, Category: log.CategoryMessage, Message: &log.MessageEvent{BodyType: 0xC0}},
		{Timestamp: ts, Layer: log.LayerWire, Category: log.CategoryMessage, Message: &log.MessageEvent{BodyType: 0xC1}},
	}
	path := createTestLogFile(t, events)

	layer := log.LayerWire
	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Layer: &layer}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if strings.Contains(output, "FRAME") {
		t.Errorf("transport event leaked through layer filter: %s", output)
	}
	if !strings.Contains(output, "Showed 2 of 3 events") {
		t.Errorf("expected summary line, got: %s", output)
	}
}

func TestParseFlagHelpers(t *testing.T) {
	if l, err := ParseLayerFlag("Wire"); err != nil || l != log.LayerWire {
		t.Errorf("ParseLayerFlag: %v, %v", l, err)
	}
	if _, err := ParseLayerFlag("bogus"); err == nil {
		t.Error("expected error for unknown layer")
	}
	if d, err := ParseDirectionFlag("out"); err != nil || d != log.DirectionOut {
		t.Errorf("ParseDirectionFlag: %v, %v", d, err)
	}
	if c, err := ParseCategoryFlag("handshake"); err != nil || c != log.CategoryHandshake {
		t.Errorf("ParseCategoryFlag: %v, %v", c, err)
	}
}
