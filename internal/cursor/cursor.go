// Package cursor walks the worklist: it finds the next unprocessed record,
// has the gateway validate its phone number, closes unregistered numbers on
// its own and hands registered ones to the operator.
//
// One operation runs at a time. A caller that starts a second operation
// while one is in flight gets ErrBusy; the cursor's state is only ever
// mutated by the operation holding the lock.
package cursor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kingrea/callsheet/internal/gateway"
	"github.com/kingrea/callsheet/internal/worklist"
)

// ErrBusy is returned when an operation is already in flight.
var ErrBusy = errors.New("cursor: another action is still running")

// ErrNotLoggedIn is returned by operations that need a live session.
var ErrNotLoggedIn = gateway.ErrNotAuthenticated

// Oracle answers whether a phone number is registered.
type Oracle interface {
	IsRegistered(ctx context.Context, phone string) (bool, error)
}

// Authenticator reports whether the session currently holds a token.
type Authenticator interface {
	IsAuthenticated() bool
}

// Cursor is the worklist state machine.
type Cursor struct {
	mu sync.Mutex

	store   worklist.Store
	oracle  Oracle
	auth    Authenticator
	sink    Sink
	journal Journal
	clock   func() time.Time

	state      State
	current    *worklist.Record
	previous   *worklist.Record
	presented  bool // current was shown to the operator as registered
	unresolved bool // current was surfaced but its validation has not finished
	restored   bool // current was brought back by GoBack
	scanOffset int

	success OutcomeLog
	failure OutcomeLog
}

// Option customizes cursor construction.
type Option func(*Cursor)

// WithJournal routes activity lines to j.
func WithJournal(j Journal) Option {
	return func(c *Cursor) {
		if j != nil {
			c.journal = j
		}
	}
}

// WithClock allows tests to control log timestamps.
func WithClock(clock func() time.Time) Option {
	return func(c *Cursor) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// New returns an idle cursor positioned before the first record.
func New(store worklist.Store, oracle Oracle, auth Authenticator, sink Sink, opts ...Option) *Cursor {
	if sink == nil {
		sink = nopSink{}
	}
	c := &Cursor{
		store:      store,
		oracle:     oracle,
		auth:       auth,
		sink:       sink,
		journal:    nopJournal{},
		clock:      time.Now,
		state:      StateIdle,
		scanOffset: worklist.FirstPosition,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// State returns the current state.
func (c *Cursor) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the record on screen, if any.
func (c *Cursor) Current() (worklist.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return worklist.Record{}, false
	}
	return *c.current, true
}

// Previous returns the one-slot history, if any.
func (c *Cursor) Previous() (worklist.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.previous == nil {
		return worklist.Record{}, false
	}
	return *c.previous, true
}

// ScanOffset returns the position the next scan starts from.
func (c *Cursor) ScanOffset() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scanOffset
}

// SuccessLog lists records the operator marked done.
func (c *Cursor) SuccessLog() *OutcomeLog { return &c.success }

// FailureLog lists records marked invalid, by the operator or by auto-skip.
func (c *Cursor) FailureLog() *OutcomeLog { return &c.failure }

func (c *Cursor) guardContext() GuardContext {
	return GuardContext{
		State:         c.state,
		HasCurrent:    c.current != nil,
		HasPrevious:   c.previous != nil,
		Authenticated: c.auth != nil && c.auth.IsAuthenticated(),
		Restored:      c.restored,
	}
}

// Preview shows the first unprocessed record without validating it, so the
// operator has something on screen before logging in. The scan offset does
// not move; the first Advance after login validates this record.
func (c *Cursor) Preview(ctx context.Context) error {
	if !c.mu.TryLock() {
		return ErrBusy
	}
	defer c.mu.Unlock()
	if res := CanPreview(c.guardContext()); !res.Allowed {
		return res.Error()
	}
	snap, err := c.store.FetchSnapshot(ctx)
	if err != nil {
		c.journal.Error("Preview failed: %v", err)
		c.sink.ShowStoreError(err.Error())
		return err
	}
	rec, ok := snap.NextUnprocessed(c.scanOffset)
	if !ok {
		c.state = StateExhausted
		c.sink.ShowExhausted()
		return nil
	}
	c.current = &rec
	c.unresolved = true
	c.presented = false
	c.sink.ShowRecord(rec, AuthUnverified)
	return nil
}

// Advance resolves the next record to present. It resumes an unresolved
// record first (one that was blocked, halted, or only previewed), then scans
// a fresh snapshot from the scan offset. A presented record is only left
// through Mark; Advance steps past it only after a GoBack.
func (c *Cursor) Advance(ctx context.Context) error {
	if !c.mu.TryLock() {
		return ErrBusy
	}
	defer c.mu.Unlock()
	if c.auth == nil || !c.auth.IsAuthenticated() {
		return ErrNotLoggedIn
	}
	if res := CanAdvance(c.guardContext()); !res.Allowed {
		return res.Error()
	}
	return c.advance(ctx)
}

func (c *Cursor) advance(ctx context.Context) error {
	if c.auth == nil || !c.auth.IsAuthenticated() {
		return ErrNotLoggedIn
	}
	c.state = StateScanning
	c.sink.ShowChecking()

	var snap *worklist.Snapshot
	for {
		var rec worklist.Record
		if c.current != nil && c.unresolved {
			rec = *c.current
		} else {
			if snap == nil {
				fetched, err := c.store.FetchSnapshot(ctx)
				if err != nil {
					return c.haltOnStore("Reading worklist failed", err)
				}
				snap = &fetched
			}
			next, ok := snap.NextUnprocessed(c.scanOffset)
			if !ok {
				c.exhaust(snap.End())
				return nil
			}
			c.surface(next)
			rec = next
		}

		registered, err := c.oracle.IsRegistered(ctx, rec.Phone)
		switch {
		case err == nil && registered:
			c.present(rec)
			return nil
		case err == nil, errors.Is(err, gateway.ErrInvalidPhone):
			if err != nil {
				c.journal.Warn("Row %d phone %q cannot be checked, auto-skipping", rec.Position, rec.Phone)
			}
			if werr := c.autoSkip(ctx, rec); werr != nil {
				return c.haltOnStore(fmt.Sprintf("Auto-skip of row %d failed", rec.Position), werr)
			}
		case gateway.IsAuth(err):
			c.state = StateBlocked
			c.journal.Warn("Session rejected while checking row %d: %v", rec.Position, err)
			c.sink.ShowBlocked(authMessage(err))
			return err
		default:
			c.state = StateHalted
			c.journal.Error("Checking row %d failed: %v", rec.Position, err)
			c.sink.ShowRemoteError(err.Error())
			return err
		}
	}
}

// Mark closes the presented record with status and moves on.
func (c *Cursor) Mark(ctx context.Context, status worklist.Status) error {
	if !c.mu.TryLock() {
		return ErrBusy
	}
	defer c.mu.Unlock()
	if res := CanMark(c.guardContext(), status); !res.Allowed {
		return res.Error()
	}
	rec := *c.current
	if err := c.store.WriteStatus(ctx, rec.Position, status); err != nil {
		c.journal.Error("Marking row %d %s failed: %v", rec.Position, status, err)
		c.sink.ShowStoreError(err.Error())
		return err
	}
	c.logOutcome(rec, status, false)
	c.journal.Info("Row %d marked %s · %s", rec.Position, status, rec.Label())
	return c.advance(ctx)
}

// GoBack restores the previously presented record. History is one level
// deep, so a second GoBack without an intervening Advance is refused. The
// record is shown as registered without asking the gateway again.
func (c *Cursor) GoBack() error {
	if !c.mu.TryLock() {
		return ErrBusy
	}
	defer c.mu.Unlock()
	if res := CanGoBack(c.guardContext()); !res.Allowed {
		return res.Error()
	}
	rec := *c.previous
	c.current = &rec
	c.previous = nil
	c.presented = true
	c.unresolved = false
	c.restored = true
	c.scanOffset = rec.Position + 1
	c.state = StatePresenting
	c.journal.Info("Back to row %d · %s", rec.Position, rec.Label())
	c.sink.ShowRecord(rec, AuthRegistered)
	return nil
}

// surface makes rec the current record. The outgoing record moves into
// history only if the operator actually saw it.
func (c *Cursor) surface(rec worklist.Record) {
	if c.current != nil && c.presented {
		prev := *c.current
		c.previous = &prev
	}
	c.current = &rec
	c.presented = false
	c.unresolved = true
	c.restored = false
	if next := rec.Position + 1; next > c.scanOffset {
		c.scanOffset = next
	}
}

func (c *Cursor) present(rec worklist.Record) {
	c.resolve(rec)
	c.presented = true
	c.state = StatePresenting
	c.sink.ShowRecord(rec, AuthRegistered)
}

func (c *Cursor) autoSkip(ctx context.Context, rec worklist.Record) error {
	if err := c.store.WriteStatus(ctx, rec.Position, worklist.StatusInvalid); err != nil {
		return err
	}
	c.resolve(rec)
	c.logOutcome(rec, worklist.StatusInvalid, true)
	c.journal.Info("Row %d auto-skipped, %s is not registered", rec.Position, rec.Phone)
	return nil
}

func (c *Cursor) resolve(rec worklist.Record) {
	c.unresolved = false
	if next := rec.Position + 1; next > c.scanOffset {
		c.scanOffset = next
	}
}

func (c *Cursor) exhaust(end int) {
	if c.current != nil && c.presented {
		prev := *c.current
		c.previous = &prev
	}
	c.current = nil
	c.presented = false
	c.unresolved = false
	c.restored = false
	if end > c.scanOffset {
		c.scanOffset = end
	}
	c.state = StateExhausted
	c.journal.Info("Worklist exhausted")
	c.sink.ShowExhausted()
}

func (c *Cursor) haltOnStore(what string, err error) error {
	c.state = StateHalted
	c.journal.Error("%s: %v", what, err)
	c.sink.ShowStoreError(err.Error())
	return err
}

func (c *Cursor) logOutcome(rec worklist.Record, status worklist.Status, auto bool) {
	switch status {
	case worklist.StatusDone:
		c.success.append(rec, c.clock(), auto)
	case worklist.StatusInvalid:
		c.failure.append(rec, c.clock(), auto)
	}
}

func authMessage(err error) string {
	var authErr *gateway.AuthError
	if errors.As(err, &authErr) && authErr.Message != "" {
		return authErr.Message + " Please log in again."
	}
	if errors.Is(err, gateway.ErrNotAuthenticated) {
		return "You are not logged in. Please log in again."
	}
	return "Session expired or token is invalid. Please log in again."
}
