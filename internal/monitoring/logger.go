package monitoring

import (
	"io"
	"log"
)

// Logf is the package-level diagnostic logger used by the replay tooling.
// It defaults to log.Printf but may be replaced by SetLogger or
// SetLogWriter. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetLogWriter points Logf at w with the given prefix and standard
// timestamp flags. A nil writer mutes the logger.
func SetLogWriter(w io.Writer, prefix string) {
	if w == nil {
		SetLogger(nil)
		return
	}
	SetLogger(log.New(w, prefix, log.LstdFlags|log.Lmicroseconds).Printf)
}
