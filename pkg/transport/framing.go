package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kovapatrik/homebridge-midea-ac/pkg/log"
)

// Framing constants.
const (
	// HeaderSize is the stream frame header length.
	HeaderSize = 6

	// MaxFrameSize bounds the declared payload length. Appliance frames are
	// small; anything larger means a desynchronized stream.
	MaxFrameSize = 8192

	// MaxLogFrameDataSize is the maximum frame data size to include in log
	// events. Larger frames are truncated.
	MaxLogFrameDataSize = 4096
)

// Framing errors.
var (
	// ErrFrameTooLarge indicates a declared length beyond MaxFrameSize.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrFrameTruncated indicates the stream ended mid-frame.
	ErrFrameTruncated = errors.New("frame truncated")

	// ErrBadMagic indicates the stream is not aligned on a frame header.
	ErrBadMagic = errors.New("bad frame magic")
)

// FrameWriter writes complete frames to an underlying writer.
type FrameWriter struct {
	w  io.Writer
	mu sync.Mutex

	logger log.Logger
	connID string
}

// NewFrameWriter creates a frame writer.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w, logger: log.NoopLogger{}}
}

// SetLogger configures logging for this writer.
func (fw *FrameWriter) SetLogger(logger log.Logger, connID string) {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	fw.logger = logger
	fw.connID = connID
}

// WriteFrame writes one already-framed message. Thread-safe.
func (fw *FrameWriter) WriteFrame(frame []byte) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, err := fw.w.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	fw.logger.Log(makeFrameEvent(fw.connID, frame, log.DirectionOut))
	return nil
}

// FrameReader splits the byte stream into complete messages using each
// header's declared length. Two envelopes occur on the wire: 8370 stream
// frames (protocol v3) and bare 5a5a LAN packets, which v2 appliances send
// without any stream wrapping.
type FrameReader struct {
	r         io.Reader
	headerBuf [HeaderSize]byte

	logger log.Logger
	connID string
}

// NewFrameReader creates a frame reader.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r, logger: log.NoopLogger{}}
}

// SetLogger configures logging for this reader.
func (fr *FrameReader) SetLogger(logger log.Logger, connID string) {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	fr.logger = logger
	fr.connID = connID
}

// ReadFrame reads one complete frame, header included.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(fr.r, fr.headerBuf[:]); err != nil {
		if err == io.EOF {
			return nil, err
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("failed to read frame header: %w", err)
	}

	var total int
	switch {
	case fr.headerBuf[0] == 0x83 && fr.headerBuf[1] == 0x70:
		total = HeaderSize + int(binary.BigEndian.Uint16(fr.headerBuf[2:4]))
	case fr.headerBuf[0] == 0x5A && fr.headerBuf[1] == 0x5A:
		// Bare LAN packet: the length at [4:6] covers the whole packet,
		// header included.
		total = int(binary.LittleEndian.Uint16(fr.headerBuf[4:6]))
		if total < HeaderSize {
			return nil, fmt.Errorf("%w: declared %d bytes", ErrFrameTruncated, total)
		}
	default:
		return nil, fmt.Errorf("%w: 0x%02X%02X", ErrBadMagic, fr.headerBuf[0], fr.headerBuf[1])
	}

	if total-HeaderSize > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, total-HeaderSize, MaxFrameSize)
	}

	frame := make([]byte, total)
	copy(frame, fr.headerBuf[:])
	if _, err := io.ReadFull(fr.r, frame[HeaderSize:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || err == io.EOF {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("failed to read frame payload: %w", err)
	}

	fr.logger.Log(makeFrameEvent(fr.connID, frame, log.DirectionIn))
	return frame, nil
}

// makeFrameEvent creates a transport-layer log event for one raw frame.
func makeFrameEvent(connID string, frame []byte, direction log.Direction) log.Event {
	data := frame
	truncated := false
	if len(data) > MaxLogFrameDataSize {
		data = data[:MaxLogFrameDataSize]
		truncated = true
	}

	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    direction,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      len(frame),
			Data:      data,
			Truncated: truncated,
		},
	}
}
