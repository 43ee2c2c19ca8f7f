package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"snapload/internal/storage"
)

// openTestStore creates a file-backed database in a temp dir. A file beats
// :memory: here because every connection to :memory: gets its own database.
func openTestStore(t *testing.T) *Snapshot {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "snapload_test.db")
	st, err := New(context.Background(), storage.Config{Kind: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(st.Close)
	return st.(*Snapshot)
}

func TestBuildInsertSQL(t *testing.T) {
	q, args := buildInsertSQL("issues", []string{"issue_key", "status"}, [][]any{
		{"PRJ-1", "Done"},
		{"PRJ-2", nil},
	}, "")

	want := `INSERT INTO "issues" ("issue_key", "status") VALUES (?, ?), (?, ?)`
	if q != want {
		t.Fatalf("sql mismatch:\n got  %s\n want %s", q, want)
	}
	if len(args) != 4 {
		t.Fatalf("args = %d, want 4", len(args))
	}
	if args[3] != nil {
		t.Fatalf("args[3] = %v, want nil", args[3])
	}
}

func TestBuildInsertSQLAuditColumn(t *testing.T) {
	q, args := buildInsertSQL("issues", []string{"issue_key"}, [][]any{{"PRJ-1"}}, "loaded_at")

	want := `INSERT INTO "issues" ("issue_key", "loaded_at") VALUES (?, CURRENT_TIMESTAMP)`
	if q != want {
		t.Fatalf("sql mismatch:\n got  %s\n want %s", q, want)
	}
	if len(args) != 1 {
		t.Fatalf("args = %d, want 1", len(args))
	}
}

func TestIdentQuoting(t *testing.T) {
	if got := ident(`odd"name`); got != `"odd""name"` {
		t.Fatalf("ident = %s", got)
	}
}

func TestTableColumns(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.Exec(ctx, `CREATE TABLE issues (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		issue_key TEXT,
		status TEXT,
		loaded_at TEXT
	)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	cols, err := st.TableColumns(ctx, "issues")
	if err != nil {
		t.Fatalf("TableColumns: %v", err)
	}
	want := []string{"id", "issue_key", "status", "loaded_at"}
	if len(cols) != len(want) {
		t.Fatalf("cols = %v, want %v", cols, want)
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Fatalf("cols[%d] = %s, want %s", i, cols[i], want[i])
		}
	}
}

func TestTableColumnsMissingTable(t *testing.T) {
	st := openTestStore(t)

	_, err := st.TableColumns(context.Background(), "nope")
	if !errors.Is(err, storage.ErrNoSuchTable) {
		t.Fatalf("err = %v, want ErrNoSuchTable", err)
	}
}

func TestReplaceRowsReplacesSnapshot(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.Exec(ctx, `CREATE TABLE issues (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		issue_key TEXT,
		status TEXT,
		loaded_at TEXT
	)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	first := storage.ReplaceRequest{
		Table:       "issues",
		Columns:     []string{"issue_key", "status"},
		Rows:        [][]any{{"PRJ-1", "Done"}, {"PRJ-2", "Open"}, {"PRJ-3", nil}},
		AuditColumn: "loaded_at",
	}
	n, err := st.ReplaceRows(ctx, first)
	if err != nil {
		t.Fatalf("first ReplaceRows: %v", err)
	}
	if n != 3 {
		t.Fatalf("first load inserted %d rows, want 3", n)
	}

	// A second load must fully supersede the first, ids included.
	second := first
	second.Rows = [][]any{{"PRJ-9", "Open"}}
	if _, err := st.ReplaceRows(ctx, second); err != nil {
		t.Fatalf("second ReplaceRows: %v", err)
	}

	var count, minID int
	var key string
	row := st.db.QueryRowContext(ctx, `SELECT count(*), min(id), min(issue_key) FROM issues`)
	if err := row.Scan(&count, &minID, &key); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if count != 1 || key != "PRJ-9" {
		t.Fatalf("after second load: count=%d key=%s", count, key)
	}
	if minID != 1 {
		t.Fatalf("identity not restarted: min(id) = %d, want 1", minID)
	}

	var stamped int
	row = st.db.QueryRowContext(ctx, `SELECT count(*) FROM issues WHERE loaded_at IS NOT NULL`)
	if err := row.Scan(&stamped); err != nil {
		t.Fatalf("scan loaded_at: %v", err)
	}
	if stamped != 1 {
		t.Fatalf("loaded_at stamped on %d rows, want 1", stamped)
	}
}

func TestReplaceRowsRollsBackOnFailure(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.Exec(ctx, `CREATE TABLE issues (
		issue_key TEXT NOT NULL,
		status TEXT
	)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	seed := storage.ReplaceRequest{
		Table:   "issues",
		Columns: []string{"issue_key", "status"},
		Rows:    [][]any{{"PRJ-1", "Done"}},
	}
	if _, err := st.ReplaceRows(ctx, seed); err != nil {
		t.Fatalf("seed load: %v", err)
	}

	// nil issue_key violates NOT NULL, so the whole load must roll back.
	bad := seed
	bad.Rows = [][]any{{"PRJ-2", "Open"}, {nil, "Open"}}
	if _, err := st.ReplaceRows(ctx, bad); err == nil {
		t.Fatal("expected constraint violation, got nil")
	}

	var key string
	row := st.db.QueryRowContext(ctx, `SELECT issue_key FROM issues`)
	if err := row.Scan(&key); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if key != "PRJ-1" {
		t.Fatalf("prior snapshot lost: key = %s", key)
	}
}

func TestReplaceRowsRejectsEmptyRequest(t *testing.T) {
	st := openTestStore(t)

	if _, err := st.ReplaceRows(context.Background(), storage.ReplaceRequest{}); err == nil {
		t.Fatal("expected error for empty request")
	}
}
