package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/kovapatrik/homebridge-midea-ac/pkg/log"
)

// RunExport exports a log file to JSONL or CSV.
// An empty output path writes to stdout.
func RunExport(path, format, output string) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format %q (want jsonl or csv)", format)
	}
}

// exportRecord is the JSON shape of one exported event.
type exportRecord struct {
	Timestamp    string                `json:"timestamp"`
	ConnectionID string                `json:"connection_id"`
	Direction    string                `json:"direction"`
	Layer        string                `json:"layer"`
	Category     string                `json:"category"`
	RemoteAddr   string                `json:"remote_addr,omitempty"`
	DeviceID     uint64                `json:"device_id,omitempty"`
	Frame        *log.FrameEvent       `json:"frame,omitempty"`
	Message      *log.MessageEvent     `json:"message,omitempty"`
	StateChange  *log.StateChangeEvent `json:"state_change,omitempty"`
	Handshake    *log.HandshakeEvent   `json:"handshake,omitempty"`
	Error        *log.ErrorEventData   `json:"error,omitempty"`
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading event: %w", err)
		}

		record := exportRecord{
			Timestamp:    event.Timestamp.Format(time.RFC3339Nano),
			ConnectionID: event.ConnectionID,
			Direction:    event.Direction.String(),
			Layer:        event.Layer.String(),
			Category:     event.Category.String(),
			RemoteAddr:   event.RemoteAddr,
			DeviceID:     event.DeviceID,
			Frame:        event.Frame,
			Message:      event.Message,
			StateChange:  event.StateChange,
			Handshake:    event.Handshake,
			Error:        event.Error,
		}
		if err := encoder.Encode(record); err != nil {
			return fmt.Errorf("encoding event: %w", err)
		}
	}
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{"timestamp", "connection_id", "direction", "layer", "category", "device_id", "type", "body_type"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading event: %w", err)
		}

		eventType := event.Category.String()
		bodyType := ""
		switch {
		case event.Frame != nil:
			eventType = "FRAME"
		case event.Message != nil:
			eventType = "MESSAGE"
			bodyType = fmt.Sprintf("0x%02X", event.Message.BodyType)
		case event.StateChange != nil:
			eventType = "STATE"
		case event.Handshake != nil:
			eventType = "HANDSHAKE"
		case event.Error != nil:
			eventType = "ERROR"
		}

		deviceID := ""
		if event.DeviceID != 0 {
			deviceID = strconv.FormatUint(event.DeviceID, 10)
		}

		row := []string{
			event.Timestamp.Format(time.RFC3339Nano),
			event.ConnectionID,
			event.Direction.String(),
			event.Layer.String(),
			event.Category.String(),
			deviceID,
			eventType,
			bodyType,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
}
