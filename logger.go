package reactor

import "log"

// Logger is the reactor's pluggable logging seam. Grounded on the
// teacher's plain log.Printf call sites throughout client.go — rather
// than generalize to a structured-logging library the rest of the pack
// doesn't use, this keeps the same bracketed-tag, key=value convention
// and just makes the sink swappable.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// StdLogger adapts the standard library's *log.Logger to Logger, tagging
// each line the way client.go's call sites do ([CLIENT_CREATED],
// [UNPACK_ERROR], and so on).
type StdLogger struct {
	L *log.Logger
}

func NewStdLogger(l *log.Logger) *StdLogger {
	if l == nil {
		l = log.Default()
	}
	return &StdLogger{L: l}
}

func (s *StdLogger) Debugf(format string, args ...any) { s.L.Printf("[DEBUG] "+format, args...) }
func (s *StdLogger) Infof(format string, args ...any)  { s.L.Printf("[INFO] "+format, args...) }
func (s *StdLogger) Warnf(format string, args ...any)  { s.L.Printf("[WARN] "+format, args...) }
func (s *StdLogger) Errorf(format string, args ...any) { s.L.Printf("[ERROR] "+format, args...) }

// nopLogger discards everything; used when a Reactor is built with no
// explicit logger and the caller hasn't opted into StdLogger.
type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
