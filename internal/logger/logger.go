// Package logger builds the process logger on top of logrus.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the logger handed to services. It embeds a logrus entry so callers
// can attach fields with WithField/WithFields.
type Log struct {
	*logrus.Entry
}

// NewLogger creates a logger writing to target ("stdout", "stderr" or "file")
// at the given level. filename is required for the file target.
func NewLogger(target, level, filename string) (*Log, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	l := logrus.New()
	l.SetLevel(lvl)

	var out io.Writer
	switch target {
	case "", "stdout":
		out = os.Stdout
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "stderr":
		out = os.Stderr
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "file":
		if filename == "" {
			return nil, fmt.Errorf("log filename is required for file target")
		}
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log target %q", target)
	}
	l.SetOutput(out)

	return &Log{Entry: logrus.NewEntry(l)}, nil
}

// With returns a child logger carrying the given fields.
func (l *Log) With(fields logrus.Fields) *Log {
	return &Log{Entry: l.Entry.WithFields(fields)}
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *Log {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Log{Entry: logrus.NewEntry(l)}
}
