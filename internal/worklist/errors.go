package worklist

import "fmt"

// StoreError reports a failed read or write against the record store.
type StoreError struct {
	Op       string
	Position int
	Err      error
}

func (e *StoreError) Error() string {
	if e.Position > 0 {
		return fmt.Sprintf("store: %s row %d: %v", e.Op, e.Position, e.Err)
	}
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ReadError wraps a snapshot read failure.
func ReadError(err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: "read", Err: err}
}

// WriteError wraps a status write failure.
func WriteError(position int, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: "write status", Position: position, Err: err}
}
