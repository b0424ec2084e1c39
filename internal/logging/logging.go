// Package logging builds the process slog.Logger, optionally writing to a
// size-rotated file alongside stdout.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options mirrors the log section of the config file.
type Options struct {
	Level     string
	File      string
	ToStdout  bool
	MaxSizeMB int
}

// New returns a text logger and a close function for the log file.
// With no file configured, logs go to stdout.
func New(opts Options) (*slog.Logger, func() error) {
	w, closeFn := Writer(opts, os.Stdout)
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(opts.Level)})
	return slog.New(h), closeFn
}

// Writer resolves the log destination. stdout is used when no file is set
// or ToStdout is on.
func Writer(opts Options, stdout io.Writer) (io.Writer, func() error) {
	if opts.File == "" {
		return stdout, func() error { return nil }
	}
	name := opts.File
	if !strings.HasSuffix(name, ".log") {
		name += ".log"
	}
	size := opts.MaxSizeMB
	if size <= 0 {
		size = 50
	}
	file := &lumberjack.Logger{
		Filename:  name,
		MaxSize:   size, // megabytes
		LocalTime: false,
		Compress:  true,
	}
	if opts.ToStdout {
		return NewCombinedWriter(stdout, file), file.Close
	}
	return file, file.Close
}

// ParseLevel maps a config level name onto a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// CombinedWriter writes to every writer, collecting their errors.
type CombinedWriter struct {
	writers []io.Writer
}

// NewCombinedWriter fans writes out to every writer in order.
func NewCombinedWriter(writers ...io.Writer) *CombinedWriter {
	return &CombinedWriter{writers: writers}
}

// Write reports len(p) when at least one writer accepted the full buffer.
func (cw *CombinedWriter) Write(p []byte) (int, error) {
	var err error
	ok := false
	for _, w := range cw.writers {
		n, werr := w.Write(p)
		if werr != nil {
			err = multierr.Append(err, werr)
			continue
		}
		if n == len(p) {
			ok = true
		}
	}
	if ok {
		return len(p), err
	}
	return 0, err
}
