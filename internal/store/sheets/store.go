// Package sheets reads and writes the worklist in a Google Sheets worksheet.
// Row 1 is the header; every row below it is a record whose position is its
// sheet row number.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/kingrea/callsheet/internal/worklist"
)

// Logger is the minimal logging surface the store needs.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Store is a worklist.Store over one worksheet.
type Store struct {
	svc           *gsheets.Service
	spreadsheetID string
	worksheet     string
	schema        worklist.Schema
	logger        Logger

	mu        sync.Mutex
	statusCol string // A1 column letter, resolved once
}

// Option customizes store construction.
type Option func(*Store)

// WithLogger routes store diagnostics to logger.
func WithLogger(logger Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open connects to the spreadsheet. Pass option.WithCredentialsFile for a
// service account; tests pass option.WithEndpoint.
func Open(ctx context.Context, spreadsheetID, worksheet string, schema worklist.Schema, clientOpts []option.ClientOption, opts ...Option) (*Store, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("sheets: spreadsheet id is required")
	}
	if worksheet == "" {
		worksheet = "Sheet1"
	}
	svc, err := gsheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: new service: %w", err)
	}
	s := &Store{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		worksheet:     worksheet,
		schema:        schema,
		logger:        nopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// FetchSnapshot reads the whole worksheet.
func (s *Store) FetchSnapshot(ctx context.Context) (worklist.Snapshot, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, quoteSheet(s.worksheet)).
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return worklist.Snapshot{}, worklist.ReadError(err)
	}
	table := stringify(resp.Values)
	if len(table) == 0 {
		return worklist.Snapshot{}, worklist.ReadError(errors.New("worksheet has no header row"))
	}
	idx, err := worklist.ColumnIndex(table[0], s.schema.Columns)
	if err != nil {
		return worklist.Snapshot{}, worklist.ReadError(err)
	}
	s.cacheStatusColumn(idx.Status)
	snap, err := worklist.FromTable(table[0], table[1:], s.schema)
	if err != nil {
		return worklist.Snapshot{}, worklist.ReadError(err)
	}
	return snap, nil
}

// WriteStatus updates one status cell.
func (s *Store) WriteStatus(ctx context.Context, position int, status worklist.Status) error {
	token, err := s.schema.Token(status)
	if err != nil {
		return worklist.WriteError(position, err)
	}
	if position < worklist.FirstPosition {
		return worklist.WriteError(position, fmt.Errorf("position %d is inside the header", position))
	}
	col, err := s.statusColumn(ctx)
	if err != nil {
		return worklist.WriteError(position, err)
	}
	cell := fmt.Sprintf("%s!%s%d", quoteSheet(s.worksheet), col, position)
	_, err = s.svc.Spreadsheets.Values.Update(s.spreadsheetID, cell, &gsheets.ValueRange{
		Values: [][]interface{}{{token}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return worklist.WriteError(position, err)
	}
	s.logger.Printf("sheets: %s = %s", cell, token)
	return nil
}

func (s *Store) cacheStatusColumn(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statusCol == "" {
		s.statusCol = ColumnLetter(index)
	}
}

func (s *Store) statusColumn(ctx context.Context) (string, error) {
	s.mu.Lock()
	col := s.statusCol
	s.mu.Unlock()
	if col != "" {
		return col, nil
	}
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, quoteSheet(s.worksheet)+"!1:1").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read header: %w", err)
	}
	table := stringify(resp.Values)
	if len(table) == 0 {
		return "", errors.New("worksheet has no header row")
	}
	idx, err := worklist.ColumnIndex(table[0], s.schema.Columns)
	if err != nil {
		return "", err
	}
	s.cacheStatusColumn(idx.Status)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusCol, nil
}

// ColumnLetter converts a zero-based column index to A1 letters.
func ColumnLetter(index int) string {
	if index < 0 {
		return ""
	}
	var out []byte
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		out = append([]byte{byte('A' + (n-1)%26)}, out...)
	}
	return string(out)
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func stringify(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		out[i] = make([]string, len(row))
		for j, cell := range row {
			if cell != nil {
				out[i][j] = fmt.Sprint(cell)
			}
		}
	}
	return out
}
