package log

// Logger receives appliance traffic events as they are captured. Pass nil or
// NoopLogger where a session or transport takes one to turn capture off.
type Logger interface {
	// Log records one captured event. Implementations must be safe for
	// concurrent use; the session's receive loop calls this inline, so slow
	// sinks should queue internally.
	Log(event Event)
}

// NoopLogger drops every event. Usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

var _ Logger = NoopLogger{}
