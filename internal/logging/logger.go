// Package logging adapts logrus to the service Logger interface.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type appNameHook struct {
	appName string
}

// Levels implements logrus.Hook.
func (h *appNameHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.
func (h *appNameHook) Fire(entry *logrus.Entry) error {
	entry.Message = "[" + h.appName + "] " + entry.Message
	return nil
}

// Logger wraps a logrus logger and converts key/value argument lists into fields.
type Logger struct {
	entry *logrus.Entry
}

// New builds a text logger writing to out (stdout when nil). Unknown levels
// fall back to info and are reported once through the logger itself.
func New(appName, level string, out io.Writer) *Logger {
	base := logrus.New()
	if out == nil {
		out = os.Stdout
	}
	base.SetOutput(out)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	levelStr := strings.ToLower(strings.TrimSpace(level))
	if levelStr == "" {
		levelStr = "info"
	}
	parsed, err := logrus.ParseLevel(levelStr)
	if err != nil {
		base.Warnf("invalid log level %q, defaulting to info", levelStr)
		parsed = logrus.InfoLevel
	}
	base.SetLevel(parsed)
	if appName != "" {
		base.AddHook(&appNameHook{appName: appName})
	}
	return &Logger{entry: logrus.NewEntry(base)}
}

// Logrus exposes the underlying logger, e.g. for gin middleware output.
func (l *Logger) Logrus() *logrus.Logger { return l.entry.Logger }

// With returns a child logger carrying the supplied key/value pairs.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{entry: l.entry.WithFields(fields(args))}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, args ...any) { l.entry.WithFields(fields(args)).Debug(msg) }

// Info logs at info level.
func (l *Logger) Info(msg string, args ...any) { l.entry.WithFields(fields(args)).Info(msg) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...any) { l.entry.WithFields(fields(args)).Warn(msg) }

// Error logs at error level.
func (l *Logger) Error(msg string, args ...any) { l.entry.WithFields(fields(args)).Error(msg) }

// fields pairs alternating keys and values. A trailing key without a value is
// kept under "!BADKEY", matching slog's convention.
func fields(args []any) logrus.Fields {
	out := make(logrus.Fields, len(args)/2+1)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		if i+1 >= len(args) {
			out["!BADKEY"] = key
			break
		}
		value := args[i+1]
		if err, isErr := value.(error); isErr {
			value = err.Error()
		}
		out[key] = value
	}
	return out
}
