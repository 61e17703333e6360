package commands

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kovapatrik/homebridge-midea-ac/pkg/log"
)

func TestRunExportJSONL(t *testing.T) {
	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{
			Timestamp:    ts,
			ConnectionID: "conn-1",
			Direction:    log.DirectionIn,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			DeviceID:     42,
			Message:      &log.MessageEvent{FrameType: 0x04, BodyType: 0xC0, BodyLen: 24},
		},
		{
			Timestamp:    ts.Add(time.Second),
			ConnectionID: "conn-1",
			Direction:    log.DirectionOut,
			Layer:        log.LayerTransport,
			Category:     log.CategoryMessage,
			Frame:        &log.FrameEvent{Size: 64},
		},
	}
	path := createTestLogFile(t, events)
	output := filepath.Join(t.TempDir(), "events.jsonl")

	if err := RunExport(path, "jsonl", output); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(output)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var record map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("invalid JSON line: %v", err)
		}
		lines = append(lines, record)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0]["layer"] != "WIRE" || lines[0]["device_id"] != float64(42) {
		t.Errorf("first record: %v", lines[0])
	}
	if lines[1]["frame"] == nil {
		t.Errorf("frame payload missing: %v", lines[1])
	}
}

func TestRunExportCSV(t *testing.T) {
	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{
			Timestamp:    ts,
			ConnectionID: "conn-1",
			Direction:    log.DirectionIn,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			DeviceID:     42,
			Message:      &log.MessageEvent{BodyType: 0xC1},
		},
	}
	path := createTestLogFile(t, events)
	output := filepath.Join(t.TempDir(), "events.csv")

	if err := RunExport(path, "csv", output); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header + 1 row", len(lines))
	}
	if !strings.HasPrefix(lines[0], "timestamp,connection_id,direction") {
		t.Errorf("header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "MESSAGE,0xC1") {
		t.Errorf("row: %s", lines[1])
	}
}

func TestRunExportRejectsUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, nil)
	if err := RunExport(path, "xml", ""); err == nil {
		t.Error("expected error for unknown format")
	}
}
