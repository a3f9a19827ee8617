package cursor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kingrea/callsheet/internal/gateway"
	"github.com/kingrea/callsheet/internal/worklist"
)

type fakeAuth struct {
	mu sync.Mutex
	ok bool
}

func (a *fakeAuth) IsAuthenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ok
}

func (a *fakeAuth) set(ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ok = ok
}

// fakeOracle answers from a table. An entry in errs wins over registered.
// An AuthError also logs the session out, as the real guard does.
type fakeOracle struct {
	mu         sync.Mutex
	auth       *fakeAuth
	registered map[string]bool
	errs       map[string]error
	calls      []string
}

func newFakeOracle(auth *fakeAuth, registered ...string) *fakeOracle {
	o := &fakeOracle{auth: auth, registered: map[string]bool{}, errs: map[string]error{}}
	for _, phone := range registered {
		o.registered[phone] = true
	}
	return o
}

func (o *fakeOracle) IsRegistered(ctx context.Context, phone string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, phone)
	if err, ok := o.errs[phone]; ok && err != nil {
		if gateway.IsAuth(err) && o.auth != nil {
			o.auth.set(false)
		}
		return false, err
	}
	return o.registered[phone], nil
}

func (o *fakeOracle) fail(phone string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs[phone] = err
}

func (o *fakeOracle) heal(phone string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.errs, phone)
}

func (o *fakeOracle) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.calls)
}

type recordingSink struct {
	events []string
	shown  []worklist.Record
}

func (s *recordingSink) ShowRecord(rec worklist.Record, status AuthStatus) {
	s.shown = append(s.shown, rec)
	s.events = append(s.events, fmt.Sprintf("record:%d:%s", rec.Position, status))
}
func (s *recordingSink) ShowChecking()             { s.events = append(s.events, "checking") }
func (s *recordingSink) ShowExhausted()            { s.events = append(s.events, "exhausted") }
func (s *recordingSink) ShowBlocked(msg string)    { s.events = append(s.events, "blocked") }
func (s *recordingSink) ShowStoreError(msg string) { s.events = append(s.events, "store-error") }
func (s *recordingSink) ShowRemoteError(msg string) {
	s.events = append(s.events, "remote-error")
}

func (s *recordingSink) last() string {
	if len(s.events) == 0 {
		return ""
	}
	return s.events[len(s.events)-1]
}

type harness struct {
	store  *worklist.MemoryStore
	auth   *fakeAuth
	oracle *fakeOracle
	sink   *recordingSink
	cursor *Cursor
}

func newHarness(t *testing.T, records []worklist.Record, registered ...string) *harness {
	t.Helper()
	h := &harness{
		store: worklist.NewMemoryStore(records...),
		auth:  &fakeAuth{ok: true},
		sink:  &recordingSink{},
	}
	h.oracle = newFakeOracle(h.auth, registered...)
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	h.cursor = New(h.store, h.oracle, h.auth, h.sink, WithClock(func() time.Time { return fixed }))
	return h
}

func rec(phone string, status worklist.Status) worklist.Record {
	return worklist.Record{Name: "cust-" + phone, Phone: phone, ExternalID: "id-" + phone, Status: status}
}

func openRows(phones ...string) []worklist.Record {
	out := make([]worklist.Record, len(phones))
	for i, p := range phones {
		out[i] = rec(p, worklist.StatusUnprocessed)
	}
	return out
}

func mustCurrent(t *testing.T, c *Cursor, position int) {
	t.Helper()
	cur, ok := c.Current()
	if !ok {
		t.Fatalf("no current record, want position %d", position)
	}
	if cur.Position != position {
		t.Fatalf("current position = %d, want %d", cur.Position, position)
	}
}

func TestAdvanceAutoSkipsAndPresents(t *testing.T) {
	h := newHarness(t, []worklist.Record{
		rec("0001", worklist.StatusUnprocessed),
		rec("0002", worklist.StatusDone),
		rec("0003", worklist.StatusUnprocessed),
	}, "0003")

	if err := h.cursor.Advance(context.Background()); err != nil {
		t.Fatalf("advance: %v", err)
	}
	writes := h.store.Writes()
	if len(writes) != 1 || writes[0] != (worklist.Write{Position: 2, Status: worklist.StatusInvalid}) {
		t.Fatalf("writes = %+v, want one invalid at position 2", writes)
	}
	if h.cursor.State() != StatePresenting {
		t.Fatalf("state = %s, want presenting", h.cursor.State())
	}
	mustCurrent(t, h.cursor, 4)
	if h.sink.last() != "record:4:Registered" {
		t.Fatalf("last sink event = %q", h.sink.last())
	}
	failures := h.cursor.FailureLog().Entries()
	if len(failures) != 1 || failures[0].Phone != "0001" || !failures[0].Auto {
		t.Fatalf("failure log = %+v", failures)
	}
	if h.cursor.SuccessLog().Len() != 0 {
		t.Fatalf("success log should be empty")
	}
	if calls := h.oracle.callCount(); calls != 2 {
		t.Fatalf("oracle calls = %d, want 2 (done row is never checked)", calls)
	}
}

func TestAuthFailureResumesSameRecord(t *testing.T) {
	h := newHarness(t, openRows("0001", "0002", "0003", "0004", "0005"), "0001", "0004", "0005")
	ctx := context.Background()

	if err := h.cursor.Advance(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}
	// 0002 and 0003 get auto-skipped, 0004 is blocked by an expired token.
	h.oracle.fail("0004", &gateway.AuthError{Status: 401, Message: "Session expired or token is invalid."})
	err := h.cursor.Mark(ctx, worklist.StatusDone)
	if !gateway.IsAuth(err) {
		t.Fatalf("mark err = %v, want auth error", err)
	}
	if h.cursor.State() != StateBlocked {
		t.Fatalf("state = %s, want blocked", h.cursor.State())
	}
	if h.sink.last() != "blocked" {
		t.Fatalf("last sink event = %q, want blocked", h.sink.last())
	}
	mustCurrent(t, h.cursor, 5)
	for _, w := range h.store.Writes() {
		if w.Position == 5 {
			t.Fatalf("blocked record must not be written: %+v", h.store.Writes())
		}
	}
	if h.auth.IsAuthenticated() {
		t.Fatalf("auth failure should clear the session")
	}

	if err := h.cursor.Advance(ctx); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("advance while logged out = %v, want ErrNotLoggedIn", err)
	}

	h.oracle.heal("0004")
	h.auth.set(true)
	if err := h.cursor.Advance(ctx); err != nil {
		t.Fatalf("advance after login: %v", err)
	}
	mustCurrent(t, h.cursor, 5)
	if h.cursor.State() != StatePresenting {
		t.Fatalf("state = %s, want presenting", h.cursor.State())
	}
	prev, ok := h.cursor.Previous()
	if !ok || prev.Position != 2 {
		t.Fatalf("previous = %+v %v, want position 2", prev, ok)
	}
}

func TestExhaustedWithoutOracleCalls(t *testing.T) {
	h := newHarness(t, []worklist.Record{
		rec("0001", worklist.StatusDone),
		rec("0002", worklist.StatusInvalid),
		rec("0003", worklist.StatusDone),
	})
	if err := h.cursor.Advance(context.Background()); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if h.cursor.State() != StateExhausted {
		t.Fatalf("state = %s, want exhausted", h.cursor.State())
	}
	if h.oracle.callCount() != 0 {
		t.Fatalf("oracle calls = %d, want 0", h.oracle.callCount())
	}
	if got := h.cursor.ScanOffset(); got != 5 {
		t.Fatalf("scan offset = %d, want 5", got)
	}
	if h.sink.last() != "exhausted" {
		t.Fatalf("last sink event = %q", h.sink.last())
	}
}

func TestScanOffsetIsMonotonic(t *testing.T) {
	h := newHarness(t, openRows("0001", "0002", "0003", "0004", "0005", "0006"), "0002", "0005")
	ctx := context.Background()

	last := h.cursor.ScanOffset()
	for i := 0; i < 3; i++ {
		var err error
		if i == 0 {
			err = h.cursor.Advance(ctx)
		} else {
			err = h.cursor.Mark(ctx, worklist.StatusDone)
		}
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		offset := h.cursor.ScanOffset()
		if offset < last {
			t.Fatalf("step %d: offset went back from %d to %d", i, last, offset)
		}
		if cur, ok := h.cursor.Current(); ok && offset <= cur.Position {
			t.Fatalf("step %d: offset %d not past current %d", i, offset, cur.Position)
		}
		last = offset
	}
	if h.cursor.State() != StateExhausted || last != 8 {
		t.Fatalf("state = %s offset = %d, want exhausted at 8", h.cursor.State(), last)
	}
}

func TestAutoSkipWritesOncePerPosition(t *testing.T) {
	h := newHarness(t, openRows("0001", "0002", "0003"), "0003")
	ctx := context.Background()

	if err := h.cursor.Advance(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := h.cursor.Mark(ctx, worklist.StatusDone); err != nil {
		t.Fatalf("mark: %v", err)
	}
	// A second pass over the exhausted sheet must not touch the skipped rows.
	if err := h.cursor.Advance(ctx); err != nil {
		t.Fatalf("rescan: %v", err)
	}
	seen := map[int]int{}
	for _, w := range h.store.Writes() {
		seen[w.Position]++
	}
	for pos, n := range seen {
		if n != 1 {
			t.Fatalf("position %d written %d times", pos, n)
		}
	}
	if seen[2] != 1 || seen[3] != 1 || seen[4] != 1 {
		t.Fatalf("writes = %+v", h.store.Writes())
	}
}

func TestRescanPicksUpAppendedRows(t *testing.T) {
	h := newHarness(t, openRows("0001"), "0001", "0002")
	ctx := context.Background()
	if err := h.cursor.Advance(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := h.cursor.Mark(ctx, worklist.StatusDone); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if h.cursor.State() != StateExhausted {
		t.Fatalf("state = %s, want exhausted", h.cursor.State())
	}
	h.store.Append(rec("0002", worklist.StatusUnprocessed))
	if err := h.cursor.Advance(ctx); err != nil {
		t.Fatalf("rescan: %v", err)
	}
	mustCurrent(t, h.cursor, 3)
}

func TestGoBackIsSingleLevel(t *testing.T) {
	h := newHarness(t, openRows("0001", "0002", "0003"), "0001", "0002", "0003")
	ctx := context.Background()

	if err := h.cursor.Advance(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := h.cursor.GoBack(); !errors.Is(err, ErrRefused) {
		t.Fatalf("go back with empty history = %v, want refusal", err)
	}
	if err := h.cursor.Mark(ctx, worklist.StatusDone); err != nil {
		t.Fatalf("mark: %v", err)
	}
	mustCurrent(t, h.cursor, 3)

	calls := h.oracle.callCount()
	if err := h.cursor.GoBack(); err != nil {
		t.Fatalf("go back: %v", err)
	}
	mustCurrent(t, h.cursor, 2)
	if h.oracle.callCount() != calls {
		t.Fatalf("go back must not re-validate")
	}
	if err := h.cursor.GoBack(); !errors.Is(err, ErrRefused) {
		t.Fatalf("second go back = %v, want refusal", err)
	}
	mustCurrent(t, h.cursor, 2)

	// Advance finds row 3 again, then going back recovers row 2.
	if err := h.cursor.Advance(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}
	mustCurrent(t, h.cursor, 3)
	if err := h.cursor.GoBack(); err != nil {
		t.Fatalf("go back: %v", err)
	}
	mustCurrent(t, h.cursor, 2)
}

func TestGoBackFromExhausted(t *testing.T) {
	h := newHarness(t, openRows("0001"), "0001")
	ctx := context.Background()
	if err := h.cursor.Advance(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := h.cursor.Mark(ctx, worklist.StatusInvalid); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if h.cursor.State() != StateExhausted {
		t.Fatalf("state = %s", h.cursor.State())
	}
	if err := h.cursor.GoBack(); err != nil {
		t.Fatalf("go back: %v", err)
	}
	mustCurrent(t, h.cursor, 2)
	if h.cursor.State() != StatePresenting {
		t.Fatalf("state = %s, want presenting", h.cursor.State())
	}
	// The record can be re-marked after going back.
	if err := h.cursor.Mark(ctx, worklist.StatusDone); err != nil {
		t.Fatalf("re-mark: %v", err)
	}
	writes := h.store.Writes()
	if got := writes[len(writes)-1]; got != (worklist.Write{Position: 2, Status: worklist.StatusDone}) {
		t.Fatalf("last write = %+v", got)
	}
}

func TestAdvanceNeverStepsOverUnmarkedRecord(t *testing.T) {
	h := newHarness(t, openRows("0001", "0002", "0003"), "0001", "0002", "0003")
	ctx := context.Background()
	if err := h.cursor.Advance(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}
	calls := h.oracle.callCount()
	if err := h.cursor.Advance(ctx); !errors.Is(err, ErrRefused) {
		t.Fatalf("advance while presenting = %v, want refusal", err)
	}
	mustCurrent(t, h.cursor, 2)
	if h.cursor.ScanOffset() != 3 || h.oracle.callCount() != calls || len(h.store.Writes()) != 0 {
		t.Fatalf("refused advance changed the walk: offset %d writes %+v", h.cursor.ScanOffset(), h.store.Writes())
	}
	if _, ok := h.cursor.Previous(); ok {
		t.Fatalf("refused advance must not fill history")
	}

	// Marking everything afterwards closes every row before exhaustion.
	for i := 0; i < 3; i++ {
		if err := h.cursor.Mark(ctx, worklist.StatusDone); err != nil {
			t.Fatalf("mark %d: %v", i, err)
		}
	}
	if h.cursor.State() != StateExhausted {
		t.Fatalf("state = %s, want exhausted", h.cursor.State())
	}
	snap, err := h.store.FetchSnapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if c := snap.Counts(); c.Unprocessed != 0 || c.Done != 3 {
		t.Fatalf("counts = %+v, want every row done", c)
	}
}

func TestMarkRefusedOutsidePresenting(t *testing.T) {
	h := newHarness(t, openRows("0001"), "0001")
	if err := h.cursor.Mark(context.Background(), worklist.StatusDone); !errors.Is(err, ErrRefused) {
		t.Fatalf("mark while idle = %v, want refusal", err)
	}
	if len(h.store.Writes()) != 0 || h.cursor.SuccessLog().Len() != 0 {
		t.Fatalf("refused mark must not write or log")
	}
}

func TestMarkStoreFailureKeepsPresenting(t *testing.T) {
	h := newHarness(t, openRows("0001", "0002"), "0001", "0002")
	ctx := context.Background()
	if err := h.cursor.Advance(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}
	h.store.FailWrites = errors.New("quota exceeded")
	err := h.cursor.Mark(ctx, worklist.StatusDone)
	var storeErr *worklist.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("mark err = %v, want StoreError", err)
	}
	if h.cursor.State() != StatePresenting || h.cursor.SuccessLog().Len() != 0 {
		t.Fatalf("failed mark changed state or logs")
	}
	mustCurrent(t, h.cursor, 2)
	if h.sink.last() != "store-error" {
		t.Fatalf("last sink event = %q", h.sink.last())
	}

	h.store.FailWrites = nil
	if err := h.cursor.Mark(ctx, worklist.StatusDone); err != nil {
		t.Fatalf("retry mark: %v", err)
	}
	mustCurrent(t, h.cursor, 3)
	if h.cursor.SuccessLog().Len() != 1 {
		t.Fatalf("success log = %d, want 1", h.cursor.SuccessLog().Len())
	}
}

func TestRemoteErrorHaltsAndRetries(t *testing.T) {
	h := newHarness(t, openRows("0001", "0002"), "0001", "0002")
	ctx := context.Background()
	h.oracle.fail("0001", &gateway.RemoteError{Op: "check", Status: 502, Err: errors.New("bad gateway")})

	err := h.cursor.Advance(ctx)
	var remote *gateway.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("advance err = %v, want RemoteError", err)
	}
	if h.cursor.State() != StateHalted || h.sink.last() != "remote-error" {
		t.Fatalf("state = %s last = %q", h.cursor.State(), h.sink.last())
	}
	if !h.auth.IsAuthenticated() {
		t.Fatalf("remote error must keep the session")
	}
	h.oracle.heal("0001")
	if err := h.cursor.Advance(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	mustCurrent(t, h.cursor, 2)
}

func TestAutoSkipWriteFailureRetriesSameRecord(t *testing.T) {
	h := newHarness(t, openRows("0001", "0002"), "0002")
	ctx := context.Background()
	h.store.FailWrites = errors.New("offline")

	if err := h.cursor.Advance(ctx); err == nil {
		t.Fatalf("advance should fail on write error")
	}
	if h.cursor.State() != StateHalted || h.cursor.FailureLog().Len() != 0 {
		t.Fatalf("state = %s failures = %d", h.cursor.State(), h.cursor.FailureLog().Len())
	}
	h.store.FailWrites = nil
	if err := h.cursor.Advance(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	mustCurrent(t, h.cursor, 3)
	writes := h.store.Writes()
	if len(writes) != 1 || writes[0].Position != 2 {
		t.Fatalf("writes = %+v", writes)
	}
}

func TestInvalidPhoneIsAutoSkipped(t *testing.T) {
	h := newHarness(t, openRows("abc", "0002"), "0002")
	h.oracle.fail("abc", gateway.ErrInvalidPhone)
	if err := h.cursor.Advance(context.Background()); err != nil {
		t.Fatalf("advance: %v", err)
	}
	mustCurrent(t, h.cursor, 3)
	if h.cursor.FailureLog().Len() != 1 {
		t.Fatalf("invalid phone should be logged as a failure")
	}
}

func TestPreviewThenLoginValidatesPreviewedRecord(t *testing.T) {
	h := newHarness(t, openRows("0001", "0002"), "0002")
	h.auth.set(false)
	ctx := context.Background()

	if err := h.cursor.Preview(ctx); err != nil {
		t.Fatalf("preview: %v", err)
	}
	if h.sink.last() != "record:2:Login to verify" {
		t.Fatalf("last sink event = %q", h.sink.last())
	}
	if h.cursor.ScanOffset() != worklist.FirstPosition {
		t.Fatalf("preview must not move the offset")
	}
	if err := h.cursor.Preview(ctx); !errors.Is(err, ErrRefused) {
		t.Fatalf("second preview = %v, want refusal", err)
	}
	if err := h.cursor.Mark(ctx, worklist.StatusDone); !errors.Is(err, ErrRefused) {
		t.Fatalf("mark on preview = %v, want refusal", err)
	}

	h.auth.set(true)
	if err := h.cursor.Advance(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}
	mustCurrent(t, h.cursor, 3)
	if w := h.store.Writes(); len(w) != 1 || w[0].Position != 2 {
		t.Fatalf("writes = %+v, want previewed row auto-skipped", w)
	}
	if _, ok := h.cursor.Previous(); ok {
		t.Fatalf("an unverified preview must not enter history")
	}
}

func TestConcurrentActionIsBusy(t *testing.T) {
	h := newHarness(t, openRows("0001"), "0001")
	h.cursor.mu.Lock()
	err := h.cursor.Advance(context.Background())
	h.cursor.mu.Unlock()
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("advance while locked = %v, want ErrBusy", err)
	}
	if h.oracle.callCount() != 0 {
		t.Fatalf("busy advance must not call the oracle")
	}
}

func TestStoreReadFailureHalts(t *testing.T) {
	h := newHarness(t, openRows("0001"), "0001")
	h.store.FailReads = errors.New("sheet gone")
	err := h.cursor.Advance(context.Background())
	if err == nil || !strings.Contains(err.Error(), "sheet gone") {
		t.Fatalf("advance err = %v", err)
	}
	if h.cursor.State() != StateHalted || h.sink.last() != "store-error" {
		t.Fatalf("state = %s last = %q", h.cursor.State(), h.sink.last())
	}
}

func TestGuards(t *testing.T) {
	tests := []struct {
		name    string
		result  GuardResult
		allowed bool
	}{
		{"mark presenting", CanMark(GuardContext{State: StatePresenting, HasCurrent: true, Authenticated: true}, worklist.StatusDone), true},
		{"mark blocked", CanMark(GuardContext{State: StateBlocked, HasCurrent: true, Authenticated: true}, worklist.StatusDone), false},
		{"mark logged out", CanMark(GuardContext{State: StatePresenting, HasCurrent: true}, worklist.StatusInvalid), false},
		{"mark unprocessed", CanMark(GuardContext{State: StatePresenting, HasCurrent: true, Authenticated: true}, worklist.StatusUnprocessed), false},
		{"back presenting", CanGoBack(GuardContext{State: StatePresenting, HasPrevious: true}), true},
		{"back exhausted", CanGoBack(GuardContext{State: StateExhausted, HasPrevious: true}), true},
		{"back blocked", CanGoBack(GuardContext{State: StateBlocked, HasPrevious: true}), false},
		{"back empty", CanGoBack(GuardContext{State: StatePresenting}), false},
		{"advance idle", CanAdvance(GuardContext{State: StateIdle}), true},
		{"advance blocked", CanAdvance(GuardContext{State: StateBlocked, HasCurrent: true}), true},
		{"advance halted", CanAdvance(GuardContext{State: StateHalted, HasCurrent: true}), true},
		{"advance exhausted", CanAdvance(GuardContext{State: StateExhausted}), true},
		{"advance presenting", CanAdvance(GuardContext{State: StatePresenting, HasCurrent: true}), false},
		{"advance restored", CanAdvance(GuardContext{State: StatePresenting, HasCurrent: true, Restored: true}), true},
		{"advance scanning", CanAdvance(GuardContext{State: StateScanning}), false},
		{"preview idle", CanPreview(GuardContext{State: StateIdle}), true},
		{"preview shown", CanPreview(GuardContext{State: StateIdle, HasCurrent: true}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.result.Allowed != tt.allowed {
				t.Fatalf("allowed = %v, want %v (%s)", tt.result.Allowed, tt.allowed, tt.result.Reason)
			}
			if !tt.allowed {
				if tt.result.Reason == "" {
					t.Fatalf("denied result needs a reason")
				}
				if !errors.Is(tt.result.Error(), ErrRefused) {
					t.Fatalf("error should wrap ErrRefused")
				}
			} else if tt.result.Error() != nil {
				t.Fatalf("allowed result should have nil error")
			}
		})
	}
}
