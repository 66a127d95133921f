// Package logging builds the application's loggers. Log output goes to
// stderr by default; when a log file is configured it is rotated with
// lumberjack so long-running daemons don't fill the disk.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/phayzeee/Offline-First-Architecture/internal/config"
)

// Sink is the shared log destination for one process. Components get
// their own prefixed logger from it but all write through a single
// writer, so a configured log file has exactly one rotator tracking it.
type Sink struct {
	w io.Writer
	c io.Closer
}

// NewSink opens the configured log destination once. Callers own the
// sink and must Close it; Close is safe when logging to stderr.
func NewSink(cfg *config.Config) (*Sink, error) {
	if cfg == nil || cfg.LogFile == "" {
		return &Sink{w: os.Stderr, c: nopCloser{}}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return nil, err
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
		Compress:   true,
	}
	return &Sink{w: rotator, c: rotator}, nil
}

// Logger returns a logger with the given prefix writing to the sink.
func (s *Sink) Logger(prefix string) *log.Logger {
	return log.New(s.w, prefix, log.LstdFlags)
}

// Close releases the log file, if any.
func (s *Sink) Close() error {
	return s.c.Close()
}

// Discard returns a logger that drops everything. Used by tests and by
// commands that want quiet components.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
