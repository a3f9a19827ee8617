package cursor

import (
	"sync"
	"time"

	"github.com/kingrea/callsheet/internal/worklist"
)

// Entry is one line of an outcome log.
type Entry struct {
	Name       string
	Phone      string
	ExternalID string
	At         time.Time
	Auto       bool
}

// Label renders the entry as "name (phone) - id".
func (e Entry) Label() string {
	return worklist.Record{Name: e.Name, Phone: e.Phone, ExternalID: e.ExternalID}.Label()
}

// OutcomeLog is an append-only, in-process list of closed records.
type OutcomeLog struct {
	mu      sync.Mutex
	entries []Entry
}

func (l *OutcomeLog) append(rec worklist.Record, at time.Time, auto bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{
		Name:       rec.Name,
		Phone:      rec.Phone,
		ExternalID: rec.ExternalID,
		At:         at,
		Auto:       auto,
	})
}

// Entries returns a copy of the log.
func (l *OutcomeLog) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *OutcomeLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// ExternalIDs returns the non-empty external ids in log order.
func (l *OutcomeLog) ExternalIDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.entries))
	for _, e := range l.entries {
		if e.ExternalID != "" {
			ids = append(ids, e.ExternalID)
		}
	}
	return ids
}
