package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/kingrea/callsheet/internal/worklist"
)

var schema = worklist.Schema{
	Columns:      worklist.Columns{Phone: "PHONE NUMBER", Status: "TERKIRIM"},
	DoneToken:    "SENT",
	InvalidToken: "INVALID",
}

// connectTestStore uses CALLSHEET_TEST_POSTGRES_URL and a throwaway table.
func connectTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("CALLSHEET_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("CALLSHEET_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	s, err := Connect(ctx, url, schema)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	s.table = "callsheet_test_worklist"
	if _, err := s.Pool.Exec(ctx, `DROP TABLE IF EXISTS `+s.ident()); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := s.migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.Pool.Exec(context.Background(), `DROP TABLE IF EXISTS `+s.ident())
		s.Close()
	})
	return s
}

func TestIdentifierIsQuoted(t *testing.T) {
	s := &Store{table: DefaultTable}
	if got, want := s.ident(), (pgx.Identifier{DefaultTable}).Sanitize(); got != want || got != `"callsheet_worklist"` {
		t.Fatalf("ident = %s", got)
	}
}

func TestConnectRejectsBadURL(t *testing.T) {
	if _, err := Connect(context.Background(), "postgres://desk@localhost:notaport/callsheet", schema); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestImportFetchAndWrite(t *testing.T) {
	s := connectTestStore(t)
	ctx := context.Background()
	if _, err := s.Import(ctx, []worklist.Row{
		{Position: 2, Name: "Budi", Phone: "0812", Status: "SENT"},
		{Position: 3, Name: "Sari", Phone: "0813"},
	}); err != nil {
		t.Fatalf("import: %v", err)
	}
	snap, err := s.FetchSnapshot(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	next, ok := snap.NextUnprocessed(worklist.FirstPosition)
	if !ok || next.Position != 3 {
		t.Fatalf("next = %+v %v", next, ok)
	}
	if err := s.WriteStatus(ctx, 3, worklist.StatusDone); err != nil {
		t.Fatalf("write: %v", err)
	}
	var storeErr *worklist.StoreError
	if err := s.WriteStatus(ctx, 40, worklist.StatusDone); !errors.As(err, &storeErr) {
		t.Fatalf("write missing row = %v", err)
	}
	snap, _ = s.FetchSnapshot(ctx)
	if snap.Counts().Done != 2 {
		t.Fatalf("counts = %+v", snap.Counts())
	}
}
