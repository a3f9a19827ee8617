package worklist

import (
	"context"
	"fmt"
	"strings"
)

// Snapshot is the ordered set of records returned by one store read.
type Snapshot struct {
	Records []Record
}

// Len returns the number of records in the snapshot.
func (s Snapshot) Len() int { return len(s.Records) }

// End is the position one past the last record.
func (s Snapshot) End() int { return len(s.Records) + FirstPosition }

// NextUnprocessed returns the first unprocessed record whose position is at
// or after offset.
func (s Snapshot) NextUnprocessed(offset int) (Record, bool) {
	for _, rec := range s.Records {
		if rec.Position < offset {
			continue
		}
		if !rec.Status.Closed() {
			return rec, true
		}
	}
	return Record{}, false
}

// Counts tallies records by status.
type Counts struct {
	Unprocessed int
	Done        int
	Invalid     int
}

// Total returns the number of records counted.
func (c Counts) Total() int { return c.Unprocessed + c.Done + c.Invalid }

// Counts returns the status tally for the snapshot.
func (s Snapshot) Counts() Counts {
	var c Counts
	for _, rec := range s.Records {
		switch rec.Status {
		case StatusDone:
			c.Done++
		case StatusInvalid:
			c.Invalid++
		default:
			c.Unprocessed++
		}
	}
	return c
}

// Store is the record store contract.
type Store interface {
	// FetchSnapshot reads every record currently in the store.
	FetchSnapshot(ctx context.Context) (Snapshot, error)
	// WriteStatus sets the status cell of the record at position.
	WriteStatus(ctx context.Context, position int, status Status) error
}

// FromTable builds a snapshot from a header row and the rows below it, the
// shape a spreadsheet export has. Row i of rows gets position i+FirstPosition.
func FromTable(header []string, rows [][]string, schema Schema) (Snapshot, error) {
	raw, err := RowsFromTable(header, rows, schema.Columns)
	if err != nil {
		return Snapshot{}, err
	}
	return FromRows(raw, schema), nil
}

// Index holds zero-based column offsets resolved from a header row. Optional
// columns that are absent resolve to -1.
type Index struct {
	Name      int
	Phone     int
	ID        int
	LastLogin int
	Status    int
}

// ColumnIndex resolves column names against a header row. Phone and status
// are required; the display columns may be missing.
func ColumnIndex(header []string, cols Columns) (Index, error) {
	find := func(name string) int {
		target := strings.TrimSpace(name)
		if target == "" {
			return -1
		}
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), target) {
				return i
			}
		}
		return -1
	}
	idx := Index{
		Name:      find(cols.Name),
		Phone:     find(cols.Phone),
		ID:        find(cols.ID),
		LastLogin: find(cols.LastLogin),
		Status:    find(cols.Status),
	}
	if idx.Phone < 0 {
		return Index{}, fmt.Errorf("worklist: phone column %q not found in header", cols.Phone)
	}
	if idx.Status < 0 {
		return Index{}, fmt.Errorf("worklist: status column %q not found in header", cols.Status)
	}
	return idx, nil
}
