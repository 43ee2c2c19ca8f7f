package storage

import "testing"

func TestRowsPerBatchRespectsParamBudget(t *testing.T) {
	l := Limits{ParamBudget: 60000, RowCap: 1000}

	// 60 mapped columns, 10k rows: every batch stays under the ceiling.
	per := RowsPerBatch(60, l)
	if per*60 > l.ParamBudget {
		t.Fatalf("batch of %d rows x 60 cols = %d params exceeds budget", per, per*60)
	}
	if per != 1000 {
		t.Fatalf("expected row cap to bind at 1000, got %d", per)
	}

	// Wide table: the budget binds before the row cap.
	per = RowsPerBatch(70, l)
	if per != 857 {
		t.Fatalf("expected 857 rows for 70 cols, got %d", per)
	}
	if per*70 > l.ParamBudget {
		t.Fatalf("budget exceeded: %d", per*70)
	}
}

func TestRowsPerBatchNeverZero(t *testing.T) {
	l := Limits{ParamBudget: 10, RowCap: 1000}
	if got := RowsPerBatch(500, l); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := RowsPerBatch(0, l); got < 1 {
		t.Fatalf("expected at least 1, got %d", got)
	}
}

func TestChunksPartitionExactly(t *testing.T) {
	cs := Chunks(10000, 857)
	covered := 0
	prevEnd := 0
	for _, c := range cs {
		if c[0] != prevEnd {
			t.Fatalf("gap at %v", c)
		}
		if c[1]-c[0] > 857 {
			t.Fatalf("oversized chunk %v", c)
		}
		covered += c[1] - c[0]
		prevEnd = c[1]
	}
	if covered != 10000 {
		t.Fatalf("chunks cover %d rows, want 10000", covered)
	}
}

func TestChunksEmpty(t *testing.T) {
	if got := Chunks(0, 100); got != nil {
		t.Fatalf("expected nil for zero rows, got %v", got)
	}
}
