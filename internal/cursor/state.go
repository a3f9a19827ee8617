package cursor

import "github.com/kingrea/callsheet/internal/worklist"

// State is where the cursor is in its walk.
type State int

const (
	// StateIdle: nothing validated yet, usually because nobody has logged in.
	StateIdle State = iota
	// StateScanning: an advance is resolving the next record.
	StateScanning
	// StatePresenting: a registered record is waiting for the operator.
	StatePresenting
	// StateExhausted: no unprocessed records remain.
	StateExhausted
	// StateBlocked: the gateway rejected the token mid-scan; waiting for login.
	StateBlocked
	// StateHalted: a remote or store failure stopped the advance; waiting for a retry.
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StatePresenting:
		return "presenting"
	case StateExhausted:
		return "exhausted"
	case StateBlocked:
		return "blocked"
	case StateHalted:
		return "halted"
	default:
		return "unknown"
	}
}

// AuthStatus tells the sink how far a shown record has been verified.
type AuthStatus int

const (
	// AuthUnverified marks the pre-login preview; the number is not checked yet.
	AuthUnverified AuthStatus = iota
	// AuthRegistered marks a number the gateway confirmed.
	AuthRegistered
)

func (a AuthStatus) String() string {
	if a == AuthRegistered {
		return "Registered"
	}
	return "Login to verify"
}

// Sink receives everything the cursor wants the operator to see.
type Sink interface {
	ShowRecord(rec worklist.Record, status AuthStatus)
	ShowChecking()
	ShowExhausted()
	ShowBlocked(message string)
	ShowStoreError(message string)
	ShowRemoteError(message string)
}

// Journal is the operator-facing activity log. *logbook.Logbook satisfies it.
type Journal interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopSink struct{}

func (nopSink) ShowRecord(worklist.Record, AuthStatus) {}
func (nopSink) ShowChecking()                          {}
func (nopSink) ShowExhausted()                         {}
func (nopSink) ShowBlocked(string)                     {}
func (nopSink) ShowStoreError(string)                  {}
func (nopSink) ShowRemoteError(string)                 {}

type nopJournal struct{}

func (nopJournal) Info(string, ...any)  {}
func (nopJournal) Warn(string, ...any)  {}
func (nopJournal) Error(string, ...any) {}
