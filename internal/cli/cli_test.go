package cli

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/kingrea/callsheet/internal/config"
	"github.com/kingrea/callsheet/internal/gateway/stub"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CALLSHEET_API_BASE_URL", "CALLSHEET_API_USERNAME", "CALLSHEET_API_PASSWORD",
		"CALLSHEET_API_SESSION", "CALLSHEET_STORE_DRIVER", "CALLSHEET_STORE_LOCATION",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestInitCreatesProjectConfig(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	out, err := execute(t, "--dir", dir, "init")
	if err != nil {
		t.Fatalf("init: %v\n%s", err, out)
	}
	if _, err := os.Stat(filepath.Join(dir, config.Dir, "config.yaml")); err != nil {
		t.Fatalf("config.yaml missing: %v", err)
	}
	if !strings.Contains(out, "Next steps") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestImportThenStats(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	if _, err := execute(t, "--dir", dir, "init"); err != nil {
		t.Fatalf("init: %v", err)
	}
	csvPath := filepath.Join(dir, "export.csv")
	csv := "\ufeffNAMA,PHONE NUMBER,USERNAME,LAST LOGIN,TERKIRIM\n" +
		"Ani,0811000,ani77,2026-01-02,SENT\n" +
		"Budi,0812000,budi77,2026-01-03,\n" +
		"Citra,0813000,citra77,2026-01-04,INVALID\n" +
		"Dewi,0814000,dewi77,2026-01-05,\n"
	if err := os.WriteFile(csvPath, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "--dir", dir, "import", csvPath)
	if err != nil {
		t.Fatalf("import: %v\n%s", err, out)
	}
	if !strings.Contains(out, "imported 4 rows") {
		t.Fatalf("unexpected import output:\n%s", out)
	}

	out, err = execute(t, "--dir", dir, "stats")
	if err != nil {
		t.Fatalf("stats: %v\n%s", err, out)
	}
	for _, want := range []string{"records      4", "unprocessed  2", "done         1", "invalid      1", "row 3 · Budi"} {
		if !strings.Contains(out, want) {
			t.Fatalf("stats output missing %q:\n%s", want, out)
		}
	}
}

func TestImportRejectsMissingColumns(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "export.csv")
	if err := os.WriteFile(csvPath, []byte("NAME,PHONE\nAni,0811\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "--dir", dir, "import", csvPath); err == nil {
		t.Fatalf("expected an error for a header without the configured columns")
	}
}

func TestCheckAgainstStubGateway(t *testing.T) {
	clearEnv(t)
	srv := stub.NewServer(stub.Settings{
		Users:      map[string]string{"admin": "admin123"},
		Registered: []string{"0812000"},
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	dir := t.TempDir()
	t.Setenv("CALLSHEET_API_BASE_URL", ts.URL)
	t.Setenv("CALLSHEET_API_PASSWORD", "admin123")

	out, err := execute(t, "--dir", dir, "check", "0812000")
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	if !strings.Contains(out, "0812000 Registered") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	out, err = execute(t, "--dir", dir, "check", "0899000")
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Not registered") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	if _, err := execute(t, "--dir", dir, "check", "--password", "wrong", "0812000"); err == nil {
		t.Fatalf("expected login failure with a bad password")
	}
}
