package log

import (
	"github.com/rs/zerolog"
)

// ZerologAdapter writes protocol events to a zerolog.Logger.
// Preferred for long-running deployments where console output is scraped.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates a new ZerologAdapter that writes to the given logger.
func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

// Log writes the event at debug level. Error events are raised to warn level
// so they survive the common debug-suppressed production configuration.
func (a *ZerologAdapter) Log(event Event) {
	var ev *zerolog.Event
	if event.Error != nil {
		ev = a.logger.Warn()
	} else {
		ev = a.logger.Debug()
	}

	ev = ev.
		Str("conn_id", event.ConnectionID).
		Str("direction", event.Direction.String()).
		Str("layer", event.Layer.String()).
		Str("category", event.Category.String())

	if event.DeviceID != 0 {
		ev = ev.Uint64("device_id", event.DeviceID)
	}
	if event.RemoteAddr != "" {
		ev = ev.Str("remote", event.RemoteAddr)
	}

	switch {
	case event.Frame != nil:
		ev = ev.Int("frame_size", event.Frame.Size).Bool("truncated", event.Frame.Truncated)
	case event.Message != nil:
		ev = ev.
			Uint8("frame_type", event.Message.FrameType).
			Uint8("body_type", event.Message.BodyType).
			Int("body_len", event.Message.BodyLen)
		if len(event.Message.Changed) > 0 {
			ev = ev.Strs("changed", event.Message.Changed)
		}
	case event.StateChange != nil:
		ev = ev.Str("old_state", event.StateChange.OldState).Str("new_state", event.StateChange.NewState)
		if event.StateChange.Reason != "" {
			ev = ev.Str("reason", event.StateChange.Reason)
		}
	case event.Handshake != nil:
		ev = ev.Str("endianness", event.Handshake.Endianness).Bool("success", event.Handshake.Success)
	case event.Error != nil:
		ev = ev.
			Str("error_layer", event.Error.Layer.String()).
			Str("error_msg", event.Error.Message).
			Str("error_context", event.Error.Context)
	}

	ev.Msg("protocol")
}

// Compile-time interface satisfaction check.
var _ Logger = (*ZerologAdapter)(nil)
