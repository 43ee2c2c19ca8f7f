package header

import "strconv"

// dupMarker joins a sanitized base and an occurrence ordinal into a parse-time
// key. Sanitize never emits '#', so a disambiguated key cannot collide with
// any legitimate base.
const dupMarker = "#dup"

// Normalized is one header after sanitization and duplicate resolution.
//
// Key is the parse-time identity of the column: equal to Base for the first
// occurrence, and Base+dupMarker+N for occurrence N > 0. Position is the
// zero-based index of the header in the file.
type Normalized struct {
	Key        string
	Base       string
	Occurrence int
	Original   string
	Position   int
}

// IsDuplicate reports whether this header repeats an earlier header's base.
func (n Normalized) IsDuplicate() bool { return n.Occurrence > 0 }

// Resolve assigns a unique parse-time key to every raw header, in file order,
// including exact duplicates.
//
// A naive "headers as map keys" parse silently collapses duplicate headers
// (last one wins) and loses whole columns of data. Resolve runs before any
// row is read so every column survives into the value stage; whether a
// duplicate maps to a destination column is decided later by the mapper.
func Resolve(raw []string) []Normalized {
	out := make([]Normalized, 0, len(raw))
	seen := make(map[string]int, len(raw))

	for i, text := range raw {
		base := Sanitize(text)
		occ := seen[base]
		seen[base] = occ + 1

		key := base
		if occ > 0 {
			key = base + dupMarker + strconv.Itoa(occ)
		}

		out = append(out, Normalized{
			Key:        key,
			Base:       base,
			Occurrence: occ,
			Original:   text,
			Position:   i,
		})
	}
	return out
}
