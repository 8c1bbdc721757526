package log

// Logger receives protocol events from a connection, its client and the
// agent session. Log is called on the connection's read path, so it must
// be safe for concurrent use and return quickly.
type Logger interface {
	Log(event Event)
}

// NoopLogger drops every event. Components treat a nil Logger the same way.
type NoopLogger struct{}

// Log implements Logger.
func (NoopLogger) Log(Event) {}

var _ Logger = NoopLogger{}
