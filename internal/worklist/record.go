// Package worklist defines the records an operator walks through and the
// contract every record store backend satisfies.
package worklist

import (
	"fmt"
	"strings"
)

// HeaderRows is the number of rows above the first record in a sheet-shaped
// store. Positions are 1-based, so the first record lives at position 2.
const HeaderRows = 1

// FirstPosition is the position of the first record in a snapshot.
const FirstPosition = HeaderRows + 1

// Status is the processing state of a record.
type Status int

const (
	StatusUnprocessed Status = iota
	StatusDone
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusInvalid:
		return "invalid"
	default:
		return "unprocessed"
	}
}

// Closed reports whether the record needs no further work.
func (s Status) Closed() bool {
	return s == StatusDone || s == StatusInvalid
}

// Record is one worklist row.
type Record struct {
	Position   int
	Name       string
	Phone      string
	ExternalID string
	LastLogin  string
	Status     Status
}

// Label renders the record the way outcome logs list it.
func (r Record) Label() string {
	return fmt.Sprintf("%s (%s) - %s", orNA(r.Name), orNA(r.Phone), orNA(r.ExternalID))
}

func orNA(value string) string {
	if strings.TrimSpace(value) == "" {
		return "N/A"
	}
	return value
}

// Columns maps record fields to header names in the store.
type Columns struct {
	Name      string `yaml:"name"`
	Phone     string `yaml:"phone"`
	ID        string `yaml:"id"`
	LastLogin string `yaml:"last_login"`
	Status    string `yaml:"status"`
}

// Schema carries everything a backend needs to translate between raw rows
// and records.
type Schema struct {
	Columns      Columns
	DoneToken    string
	InvalidToken string
}

// Classify maps raw status text onto a Status. Anything that is not one of
// the recognized tokens is unprocessed.
func (s Schema) Classify(raw string) Status {
	value := strings.TrimSpace(raw)
	switch {
	case value == "":
		return StatusUnprocessed
	case value == strings.TrimSpace(s.DoneToken):
		return StatusDone
	case value == strings.TrimSpace(s.InvalidToken):
		return StatusInvalid
	default:
		return StatusUnprocessed
	}
}

// Token returns the text written to the status column for a status.
func (s Schema) Token(status Status) (string, error) {
	switch status {
	case StatusDone:
		return s.DoneToken, nil
	case StatusInvalid:
		return s.InvalidToken, nil
	default:
		return "", fmt.Errorf("worklist: status %s has no store token", status)
	}
}
