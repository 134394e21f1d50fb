package core

// Logger is the logging interface used across the app.
// args may contain an error, LogFields of extra data and the current user.User.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// LogFields is the extra data attached to a log entry, e.g. {"meeting": id, "recipient": id}.
type LogFields map[string]interface{}
