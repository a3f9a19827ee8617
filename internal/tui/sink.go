package tui

import (
	"sync"

	"github.com/kingrea/callsheet/internal/cursor"
	"github.com/kingrea/callsheet/internal/worklist"
)

type eventKind int

const (
	eventRecord eventKind = iota
	eventChecking
	eventExhausted
	eventBlocked
	eventStoreError
	eventRemoteError
)

// sinkEvent is one cursor callback captured for the UI goroutine.
type sinkEvent struct {
	kind    eventKind
	record  worklist.Record
	auth    cursor.AuthStatus
	message string
}

// bufferSink collects cursor callbacks while an action runs inside a
// tea.Cmd. The action's result message carries the drained events back to
// Update, so UI state is only touched on the bubbletea goroutine.
type bufferSink struct {
	mu     sync.Mutex
	events []sinkEvent
}

func (s *bufferSink) push(ev sinkEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *bufferSink) drain() []sinkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.events
	s.events = nil
	return out
}

func (s *bufferSink) ShowRecord(rec worklist.Record, status cursor.AuthStatus) {
	s.push(sinkEvent{kind: eventRecord, record: rec, auth: status})
}

func (s *bufferSink) ShowChecking()  { s.push(sinkEvent{kind: eventChecking}) }
func (s *bufferSink) ShowExhausted() { s.push(sinkEvent{kind: eventExhausted}) }

func (s *bufferSink) ShowBlocked(message string) {
	s.push(sinkEvent{kind: eventBlocked, message: message})
}

func (s *bufferSink) ShowStoreError(message string) {
	s.push(sinkEvent{kind: eventStoreError, message: message})
}

func (s *bufferSink) ShowRemoteError(message string) {
	s.push(sinkEvent{kind: eventRemoteError, message: message})
}
