package log

// MultiLogger fans each event out to several sinks, typically a console
// adapter alongside a FileLogger capture.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger wraps the given loggers. Order is preserved on delivery.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log forwards the event to every wrapped logger.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

var _ Logger = (*MultiLogger)(nil)
