package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/kovapatrik/homebridge-midea-ac/pkg/log"
)

// Stats summarizes the contents of a log file.
type Stats struct {
	TotalEvents int
	TimeStart   time.Time
	TimeEnd     time.Time

	ByLayer     map[log.Layer]int
	ByCategory  map[log.Category]int
	ByDirection map[log.Direction]int
	ByBodyType  map[uint8]int

	Connections map[string]*ConnectionStats
}

// ConnectionStats summarizes one connection's traffic.
type ConnectionStats struct {
	DeviceID   uint64
	RemoteAddr string
	Events     int
	Errors     int
	Handshakes int
	FrameBytes int
	First      time.Time
	Last       time.Time
}

// RunStats reads a log file and prints aggregate statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer reader.Close()

	stats, err := collectStats(reader)
	if err != nil {
		return err
	}

	printStats(stats, w)
	return nil
}

func collectStats(reader *log.Reader) (*Stats, error) {
	stats := &Stats{
		ByLayer:     make(map[log.Layer]int),
		ByCategory:  make(map[log.Category]int),
		ByDirection: make(map[log.Direction]int),
		ByBodyType:  make(map[uint8]int),
		Connections: make(map[string]*ConnectionStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading event: %w", err)
		}

		stats.TotalEvents++
		if stats.TimeStart.IsZero() || event.Timestamp.Before(stats.TimeStart) {
			stats.TimeStart = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeEnd) {
			stats.TimeEnd = event.Timestamp
		}

		stats.ByLayer[event.Layer]++
		stats.ByCategory[event.Category]++
		stats.ByDirection[event.Direction]++
		if event.Message != nil {
			stats.ByBodyType[event.Message.BodyType]++
		}

		conn := stats.Connections[event.ConnectionID]
		if conn == nil {
			conn = &ConnectionStats{First: event.Timestamp}
			stats.Connections[event.ConnectionID] = conn
		}
		conn.Events++
		conn.Last = event.Timestamp
		if event.DeviceID != 0 {
			conn.DeviceID = event.DeviceID
		}
		if event.RemoteAddr != "" {
			conn.RemoteAddr = event.RemoteAddr
		}
		if event.Error != nil {
			conn.Errors++
		}
		if event.Handshake != nil {
			conn.Handshakes++
		}
		if event.Frame != nil {
			conn.FrameBytes += event.Frame.Size
		}
	}

	return stats, nil
}

func printStats(stats *Stats, w io.Writer) {
	fmt.Fprintf(w, "Total events: %d\n", stats.TotalEvents)
	if stats.TotalEvents == 0 {
		return
	}

	duration := stats.TimeEnd.Sub(stats.TimeStart)
	fmt.Fprintf(w, "Time range:   %s - %s (%s)\n",
		stats.TimeStart.Format(time.RFC3339),
		stats.TimeEnd.Format(time.RFC3339),
		duration.Round(time.Millisecond))

	fmt.Fprintln(w, "\nBy layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerSession} {
		if n := stats.ByLayer[layer]; n > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", layer, n)
		}
	}

	fmt.Fprintln(w, "\nBy category:")
	for _, category := range []log.Category{log.CategoryMessage, log.CategoryHandshake, log.CategoryState, log.CategoryError} {
		if n := stats.ByCategory[category]; n > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", category, n)
		}
	}

	fmt.Fprintf(w, "\nDirection:    %d in, %d out\n",
		stats.ByDirection[log.DirectionIn], stats.ByDirection[log.DirectionOut])

	if len(stats.ByBodyType) > 0 {
		types := make([]uint8, 0, len(stats.ByBodyType))
		for t := range stats.ByBodyType {
			types = append(types, t)
		}
		sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

		fmt.Fprintln(w, "\nBody types:")
		for _, t := range types {
			fmt.Fprintf(w, "  0x%02X       %d\n", t, stats.ByBodyType[t])
		}
	}

	ids := make([]string, 0, len(stats.Connections))
	for id := range stats.Connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Fprintf(w, "\nConnections (%d):\n", len(ids))
	for _, id := range ids {
		conn := stats.Connections[id]
		fmt.Fprintf(w, "  %s\n", id)
		if conn.DeviceID != 0 {
			fmt.Fprintf(w, "    device:     %d", conn.DeviceID)
			if conn.RemoteAddr != "" {
				fmt.Fprintf(w, " (%s)", conn.RemoteAddr)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "    events:     %d\n", conn.Events)
		if conn.FrameBytes > 0 {
			fmt.Fprintf(w, "    frame data: %d bytes\n", conn.FrameBytes)
		}
		if conn.Handshakes > 0 {
			fmt.Fprintf(w, "    handshakes: %d\n", conn.Handshakes)
		}
		if conn.Errors > 0 {
			fmt.Fprintf(w, "    errors:     %d\n", conn.Errors)
		}
		fmt.Fprintf(w, "    duration:   %s\n", conn.Last.Sub(conn.First).Round(time.Millisecond))
	}
}
