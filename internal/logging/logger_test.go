package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPrintfWritesTimestampedLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf)
	l.now = func() time.Time { return time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC) }
	l.Printf("gateway: login ok for %s\n", "admin")

	want := "[2026-05-04T08:30:00Z] [" + l.RunID()[:8] + "] gateway: login ok for admin\n"
	if buf.String() != want {
		t.Fatalf("line = %q, want %q", buf.String(), want)
	}
}

func TestNewAppendsToProjectLog(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	l.Printf("first")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	l2, err := New(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	l2.Printf("second")
	_ = l2.Close()

	if l.RunID() == l2.RunID() {
		t.Fatalf("each logger should get its own run id")
	}
	data, err := os.ReadFile(filepath.Join(dir, ".callsheet", "logs", "callsheet.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 || !strings.HasSuffix(lines[0], "first") || !strings.HasSuffix(lines[1], "second") {
		t.Fatalf("log = %q", data)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Printf("ignored")
	if err := l.Close(); err != nil {
		t.Fatalf("close nil: %v", err)
	}
}
