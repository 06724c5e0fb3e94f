package types

// Logger defines structured logging methods used throughout the driver.
//
// The interface is compatible with zap.SugaredLogger: each method takes a
// message followed by alternating key/value pairs.
//
// Implementations must be safe for concurrent use; the driver logs from
// application goroutines, scheduler callbacks, and I/O completion
// callbacks concurrently.
type Logger interface {
	// Debug logs a debug-level message with key/value pairs.
	Debug(msg string, keysAndValues ...any)

	// Info logs an info-level message with key/value pairs.
	Info(msg string, keysAndValues ...any)

	// Warn logs a warning-level message with key/value pairs.
	Warn(msg string, keysAndValues ...any)

	// Error logs an error-level message with key/value pairs.
	Error(msg string, keysAndValues ...any)

	// Fatal logs a fatal-level message with key/value pairs.
	Fatal(msg string, keysAndValues ...any)
}
