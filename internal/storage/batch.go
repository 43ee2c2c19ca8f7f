package storage

// Limits captures the per-statement ceilings a backend must respect when it
// sizes insert batches.
//
// ParamBudget is a deliberately conservative slice of the store's hard
// bind-parameter limit (e.g. 60000 of Postgres's 65535), leaving headroom so
// an off-by-a-few miscount can never hit the real ceiling. RowCap bounds rows
// per statement independently of column count.
type Limits struct {
	ParamBudget int
	RowCap      int
}

// RowsPerBatch returns the maximum rows a single multi-row INSERT may carry
// for the given bound-column count.
//
// Always at least 1: a row wider than the whole budget still has to be
// attempted as its own statement so the store can report the real error.
func RowsPerBatch(boundColumns int, l Limits) int {
	if boundColumns < 1 {
		boundColumns = 1
	}
	n := l.ParamBudget / boundColumns
	if l.RowCap > 0 && n > l.RowCap {
		n = l.RowCap
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Chunks yields [start, end) boundaries that partition n items into runs of
// at most per. Backends iterate these in order; batch order matters because
// later batches must observe earlier inserts inside the same transaction.
func Chunks(n, per int) [][2]int {
	if n <= 0 {
		return nil
	}
	if per < 1 {
		per = 1
	}
	out := make([][2]int, 0, (n+per-1)/per)
	for start := 0; start < n; start += per {
		end := start + per
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}
