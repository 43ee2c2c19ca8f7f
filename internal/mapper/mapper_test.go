package mapper

import (
	"context"
	"errors"
	"testing"

	"snapload/internal/header"
	"snapload/internal/storage"
)

type fakeCatalog struct {
	columns []string
	err     error
	table   string
}

func (f *fakeCatalog) TableColumns(_ context.Context, table string) ([]string, error) {
	f.table = table
	if f.err != nil {
		return nil, f.err
	}
	return f.columns, nil
}

func schemaOf(t *testing.T, columns ...string) TableSchema {
	t.Helper()
	cat := &fakeCatalog{columns: columns}
	s, err := DiscoverSchema(context.Background(), cat, "issues", "")
	if err != nil {
		t.Fatalf("DiscoverSchema: %v", err)
	}
	return s
}

func TestDiscoverSchemaDetectsAuditColumn(t *testing.T) {
	s := schemaOf(t, "issue_key", "status", "loaded_at")

	if !s.HasAudit {
		t.Fatal("loaded_at not detected as audit column")
	}
	if s.AuditColumn != "loaded_at" {
		t.Fatalf("AuditColumn = %s", s.AuditColumn)
	}
	// Audit column must not be claimable by a source header.
	if s.Has("loaded_at") {
		t.Fatal("audit column leaked into the mappable set")
	}
	if !s.Has("issue_key") || !s.Has("status") {
		t.Fatal("regular columns missing from mappable set")
	}
}

func TestDiscoverSchemaWithoutAuditColumn(t *testing.T) {
	s := schemaOf(t, "issue_key", "status")
	if s.HasAudit {
		t.Fatal("HasAudit = true with no loaded_at column")
	}
}

func TestDiscoverSchemaPropagatesMissingTable(t *testing.T) {
	cat := &fakeCatalog{err: storage.ErrNoSuchTable}
	_, err := DiscoverSchema(context.Background(), cat, "nope", "")
	if !errors.Is(err, storage.ErrNoSuchTable) {
		t.Fatalf("err = %v, want ErrNoSuchTable", err)
	}
}

func TestMapSimpleHeaders(t *testing.T) {
	s := schemaOf(t, "issue_key", "summary", "status", "loaded_at")
	hs := header.Resolve([]string{"Issue key", "Summary", "Status"})

	m, err := Map(hs, s)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	want := []string{"issue_key", "summary", "status"}
	got := m.Targets()
	if len(got) != len(want) {
		t.Fatalf("targets = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("targets[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if len(m.Ignored) != 0 {
		t.Fatalf("unexpected ignored headers: %v", m.Ignored)
	}
}

func TestMapRepeatedHeadersClaimNumberedColumns(t *testing.T) {
	s := schemaOf(t, "sprint", "sprint1", "sprint2")
	hs := header.Resolve([]string{"Sprint", "Sprint", "Sprint"})

	m, err := Map(hs, s)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if len(m.Pairs) != 3 {
		t.Fatalf("mapped %d of 3 repeated headers: %+v", len(m.Pairs), m)
	}
	got := m.Targets()
	want := []string{"sprint", "sprint1", "sprint2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("targets[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestMapRepeatedHeadersUnderscoreConvention(t *testing.T) {
	s := schemaOf(t, "sprint", "sprint_1", "sprint_2")
	hs := header.Resolve([]string{"Sprint", "Sprint", "Sprint"})

	m, err := Map(hs, s)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	got := m.Targets()
	want := []string{"sprint", "sprint_1", "sprint_2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("targets[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestMapAliasesSpanishHeaders(t *testing.T) {
	s := schemaOf(t, "issue_key", "summary", "status", "resolved_at")
	hs := header.Resolve([]string{"Clave de incidencia", "Resumen", "Estado", "Fecha de resolución"})

	m, err := Map(hs, s)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	got := m.Targets()
	want := []string{"issue_key", "summary", "status", "resolved_at"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("targets[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestMapInjectivity(t *testing.T) {
	// "Estado" aliases to status, "Status" sanitizes to status. Only the
	// first can claim the column; the second lands in Ignored.
	s := schemaOf(t, "status")
	hs := header.Resolve([]string{"Estado", "Status"})

	m, err := Map(hs, s)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if len(m.Pairs) != 1 || m.Pairs[0].Target != "status" {
		t.Fatalf("pairs = %+v", m.Pairs)
	}
	if m.Pairs[0].Header.Original != "Estado" {
		t.Fatalf("wrong claimant: %s", m.Pairs[0].Header.Original)
	}
	if len(m.Ignored) != 1 || m.Ignored[0].Reason != ReasonNoDestination {
		t.Fatalf("ignored = %+v", m.Ignored)
	}
}

func TestMapIgnoresUnknownAndEmptyHeaders(t *testing.T) {
	s := schemaOf(t, "issue_key")
	hs := header.Resolve([]string{"Issue key", "Watchers", "###"})

	m, err := Map(hs, s)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if len(m.Pairs) != 1 {
		t.Fatalf("pairs = %+v", m.Pairs)
	}
	if len(m.Ignored) != 2 {
		t.Fatalf("ignored = %+v", m.Ignored)
	}
	if m.Ignored[0].Reason != ReasonNoDestination {
		t.Fatalf("ignored[0].Reason = %s", m.Ignored[0].Reason)
	}
	if m.Ignored[1].Reason != ReasonEmptyAfterSanitize {
		t.Fatalf("ignored[1].Reason = %s", m.Ignored[1].Reason)
	}
}

func TestMapEmptyMappingIsAnError(t *testing.T) {
	s := schemaOf(t, "issue_key")
	hs := header.Resolve([]string{"Watchers", "Labels"})

	m, err := Map(hs, s)
	if !errors.Is(err, ErrNoMappableColumns) {
		t.Fatalf("err = %v, want ErrNoMappableColumns", err)
	}
	// The ignored set still explains every header.
	if len(m.Ignored) != 2 {
		t.Fatalf("ignored = %+v", m.Ignored)
	}
}
