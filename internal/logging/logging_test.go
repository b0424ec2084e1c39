package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/multierr"
)

type failWriter struct{ err error }

func (f failWriter) Write(p []byte) (int, error) { return 0, f.err }

// TestParseLevel verifies level names map onto slog levels.
func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

// TestWriterStdoutOnly verifies stdout is used when no file is configured.
func TestWriterStdoutOnly(t *testing.T) {
	var buf bytes.Buffer
	w, closeFn := Writer(Options{}, &buf)
	defer closeFn()
	if w != &buf {
		t.Errorf("writer = %T, want stdout", w)
	}
}

// TestWriterFileAndStdout verifies lines reach both the rotated file and stdout.
func TestWriterFileAndStdout(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "trainctx")
	w, closeFn := Writer(Options{File: path, ToStdout: true}, &buf)

	log := slog.New(slog.NewTextHandler(w, nil))
	log.Info("context built", "user_id", "u1")
	if err := closeFn(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path + ".log")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "user_id=u1") {
		t.Errorf("log file = %q, want user_id=u1", data)
	}
	if !strings.Contains(buf.String(), "context built") {
		t.Errorf("stdout = %q, want message", buf.String())
	}
}

// TestCombinedWriterErrors verifies a failing writer does not stop the others
// and its error is reported.
func TestCombinedWriterErrors(t *testing.T) {
	var buf bytes.Buffer
	e1, e2 := errors.New("disk full"), errors.New("closed")
	cw := NewCombinedWriter(failWriter{e1}, &buf, failWriter{e2})

	n, err := cw.Write([]byte("line\n"))
	if n != 5 {
		t.Errorf("n = %d, want 5", n)
	}
	if errs := multierr.Errors(err); len(errs) != 2 {
		t.Errorf("errors = %v, want 2", errs)
	}
	if buf.String() != "line\n" {
		t.Errorf("buf = %q, want line", buf.String())
	}
}
