package config

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// output is shared by every named logger so a host can redirect all of them
var output io.Writer = os.Stderr

// SetOutput redirects loggers created after the call
func SetOutput(w io.Writer) {
	output = w
}

// NamedLogger creates named package logger.
func NamedLogger(name string, verbose bool) *logrus.Entry {
	level := logrus.InfoLevel
	if verbose {
		level = logrus.DebugLevel
	}
	logger := &logrus.Logger{
		Out: output,
		Formatter: &CustomTextFormatter{
			TextFormatter: logrus.TextFormatter{
				DisableColors: true,
			},
		},
		Hooks: make(logrus.LevelHooks),
		Level: level,
	}
	return logger.WithField("pkg", name)
}

// CustomTextFormatter prefixes each message with the calling file and line
type CustomTextFormatter struct {
	logrus.TextFormatter
}

// Format renders a single log entry
func (f *CustomTextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	if file, no, ok := caller(); ok {
		entry.Message = fmt.Sprintf("[%-15s:%03d] %s", path.Base(file), no, entry.Message)
	}
	return f.TextFormatter.Format(entry)
}

// caller finds the first stack frame outside logrus and this file
func caller() (string, int, bool) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "sirupsen/logrus") && !strings.HasSuffix(frame.File, "config/log.go") {
			return frame.File, frame.Line, true
		}
		if !more {
			return "", 0, false
		}
	}
}
