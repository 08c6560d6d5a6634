package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestFS_ContainsOrderedGooseFiles(t *testing.T) {
	t.Parallel()

	entries, err := fs.ReadDir(FS, ".")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected at least 2 migrations, got %d", len(entries))
	}

	prev := ""
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".sql") {
			t.Fatalf("unexpected file %q", name)
		}
		if name <= prev {
			t.Fatalf("migrations out of order: %q after %q", name, prev)
		}
		prev = name

		b, err := fs.ReadFile(FS, name)
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", name, err)
		}
		body := string(b)
		if !strings.Contains(body, "-- +goose Up") || !strings.Contains(body, "-- +goose Down") {
			t.Fatalf("%s: missing goose annotations", name)
		}
	}
}

func TestFS_TokenSchema(t *testing.T) {
	t.Parallel()

	b, err := fs.ReadFile(FS, "00002_tokens.sql")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	body := string(b)
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS outstanding_tokens",
		"CREATE TABLE IF NOT EXISTS blacklisted_tokens",
		"REFERENCES outstanding_tokens (jti) ON DELETE CASCADE",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("token schema missing %q", want)
		}
	}
}
