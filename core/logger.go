package core

// Logger is any leveled logger the app can report through.
// Trailing args may carry errors, maps or the acting user for the
// implementation to attach as context.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
