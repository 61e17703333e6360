// Package commands implements the midea-log subcommands.
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/kovapatrik/homebridge-midea-ac/pkg/log"
)

// ViewFilter narrows the events shown by the view command.
// Nil fields match all events.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
}

// RunView reads a log file and prints matching events in human-readable form.
func RunView(path string, filter ViewFilter, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer reader.Close()

	var shown, total int
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading event: %w", err)
		}
		total++

		if filter.Layer != nil && event.Layer != *filter.Layer {
			continue
		}
		if filter.Direction != nil && event.Direction != *filter.Direction {
			continue
		}
		if filter.Category != nil && event.Category != *filter.Category {
			continue
		}

		fmt.Fprintln(w, formatEvent(event))
		shown++
	}

	fmt.Fprintf(w, "\nShowed %d of %d events\n", shown, total)
	return nil
}

// formatEvent renders a single event as one line.
func formatEvent(event log.Event) string {
	var b strings.Builder

	b.WriteString(event.Timestamp.Format("15:04:05.000"))
	b.WriteString(fmt.Sprintf(" [%-9s]", event.Layer))
	b.WriteString(fmt.Sprintf(" %-3s", event.Direction))

	if event.DeviceID != 0 {
		b.WriteString(fmt.Sprintf(" dev=%d", event.DeviceID))
	}

	switch {
	case event.Frame != nil:
		b.WriteString(fmt.Sprintf(" FRAME size=%d", event.Frame.Size))
		if event.Frame.Truncated {
			b.WriteString(" (truncated)")
		}
	case event.Message != nil:
		b.WriteString(fmt.Sprintf(" MESSAGE frame=0x%02X body=0x%02X len=%d",
			event.Message.FrameType, event.Message.BodyType, event.Message.BodyLen))
		if len(event.Message.Changed) > 0 {
			b.WriteString(" changed=" + strings.Join(event.Message.Changed, ","))
		}
	case event.StateChange != nil:
		sc := event.StateChange
		if sc.OldState != "" {
			b.WriteString(fmt.Sprintf(" STATE %s -> %s", sc.OldState, sc.NewState))
		} else {
			b.WriteString(fmt.Sprintf(" STATE -> %s", sc.NewState))
		}
		if sc.Reason != "" {
			b.WriteString(fmt.Sprintf(" (%s)", sc.Reason))
		}
	case event.Handshake != nil:
		result := "failed"
		if event.Handshake.Success {
			result = "ok"
		}
		b.WriteString(fmt.Sprintf(" HANDSHAKE endianness=%s %s", event.Handshake.Endianness, result))
	case event.Error != nil:
		b.WriteString(fmt.Sprintf(" ERROR %s", event.Error.Message))
		if event.Error.Context != "" {
			b.WriteString(fmt.Sprintf(" (%s)", event.Error.Context))
		}
	default:
		b.WriteString(fmt.Sprintf(" %s", event.Category))
	}

	return b.String()
}

// ParseLayerFlag converts a layer flag value to its Layer constant.
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "wire":
		return log.LayerWire, nil
	case "session":
		return log.LayerSession, nil
	default:
		return 0, fmt.Errorf("unknown layer %q (want transport, wire or session)", s)
	}
}

// ParseDirectionFlag converts a direction flag value to its Direction constant.
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("unknown direction %q (want in or out)", s)
	}
}

// ParseCategoryFlag converts a category flag value to its Category constant.
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "handshake":
		return log.CategoryHandshake, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("unknown category %q (want message, handshake, state or error)", s)
	}
}
