package logger

// nopLogger discards all log output. It is the default for library code so
// that embedding packages log nothing unless handed a real Logger.
type nopLogger struct{}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() Logger {
	return nopLogger{}
}

// Debug implements Logger.
func (nopLogger) Debug(string, ...Field) {}

// Info implements Logger.
func (nopLogger) Info(string, ...Field) {}

// Warn implements Logger.
func (nopLogger) Warn(string, ...Field) {}

// Error implements Logger.
func (nopLogger) Error(string, ...Field) {}

// With implements Logger.
func (n nopLogger) With(...Field) Logger { return n }

// Close implements Logger.
func (nopLogger) Close() error { return nil }
