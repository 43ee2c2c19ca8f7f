package mssql

import (
	"strings"
	"testing"

	"snapload/internal/storage"
)

func TestBuildInsertSQL(t *testing.T) {
	q, args := buildInsertSQL(
		"dbo.issues",
		[]string{"issue_key", "status"},
		[][]any{{"PROJ-1", "Done"}},
		"",
	)

	want := "INSERT INTO [dbo].[issues] ([issue_key], [status]) VALUES (@p1, @p2)"
	if q != want {
		t.Fatalf("sql mismatch:\n got: %s\nwant: %s", q, want)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
}

func TestBuildInsertSQLAuditExpression(t *testing.T) {
	q, args := buildInsertSQL(
		"issues",
		[]string{"issue_key"},
		[][]any{{"PROJ-1"}, {"PROJ-2"}},
		"loaded_at",
	)

	if !strings.Contains(q, "[loaded_at]") {
		t.Fatalf("audit column missing from column list: %s", q)
	}
	if strings.Count(q, "SYSDATETIMEOFFSET()") != 2 {
		t.Fatalf("audit expression must appear once per tuple: %s", q)
	}
	if len(args) != 2 {
		t.Fatalf("audit stamp must not be bound: %d args", len(args))
	}
}

func TestBatchSizingStaysUnderCeiling(t *testing.T) {
	// 60 mapped columns on SQL Server: only 33 rows fit in the 2000-param
	// budget, never anywhere near the hard 2100 limit.
	per := storage.RowsPerBatch(60, limits)
	if per != 33 {
		t.Fatalf("expected 33 rows per batch, got %d", per)
	}
	if per*60 >= 2100 {
		t.Fatalf("batch would hit the parameter limit: %d", per*60)
	}

	chunks := storage.Chunks(10000, per)
	covered := 0
	for _, c := range chunks {
		covered += c[1] - c[0]
	}
	if covered != 10000 {
		t.Fatalf("chunks cover %d rows", covered)
	}
}

func TestIdentQuoting(t *testing.T) {
	if got := ident("we]ird"); got != "[we]]ird]" {
		t.Fatalf("ident = %q", got)
	}
	if got := tableIdent("dbo.issues"); got != "[dbo].[issues]" {
		t.Fatalf("tableIdent = %q", got)
	}
}
