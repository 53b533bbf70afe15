// Package massage implements the small set of byte-to-byte canonicalizers
// applied to a fetched response before re-hashing it, to tolerate benign
// serialization differences between what was hashed at database-build time
// and what a live server actually sends.
package massage

import "bytes"

// Massager is a byte-to-byte canonicalizing transform.
type Massager struct {
	Name string
	Fn   func([]byte) []byte
}

// All is the fixed, small list of known massagers.  Kept deliberately short:
// Subsets enumerates every combination of All, so the search space a caller
// walks on a hash miss is exponential in len(All).
//
//nolint:gochecknoglobals // immutable after init; mirrors a fixed table.
var All = []Massager{
	{Name: "crlf-to-lf", Fn: stripCR},
	{Name: "trim-trailing-newline", Fn: trimTrailingNewline},
	{Name: "trim-trailing-whitespace-per-line", Fn: trimTrailingWhitespacePerLine},
}

func stripCR(b []byte) []byte {
	return bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
}

func trimTrailingNewline(b []byte) []byte {
	return bytes.TrimRight(b, "\n")
}

func trimTrailingWhitespacePerLine(b []byte) []byte {
	lines := bytes.Split(b, []byte("\n"))
	for i, line := range lines {
		lines[i] = bytes.TrimRight(line, " \t")
	}
	return bytes.Join(lines, []byte("\n"))
}

// Subsets returns every non-empty combination of All, ordered by
// increasing subset size, each applied in All's original relative order.
// This mirrors Python's itertools.combinations(range(n), r) for
// r = 1..n.
func Subsets() [][]Massager {
	n := len(All)
	var out [][]Massager
	for size := 1; size <= n; size++ {
		var combo func(start int, cur []int)
		combo = func(start int, cur []int) {
			if len(cur) == size {
				set := make([]Massager, len(cur))
				for i, idx := range cur {
					set[i] = All[idx]
				}
				out = append(out, set)
				return
			}
			for i := start; i < n; i++ {
				combo(i+1, append(cur, i))
			}
		}
		combo(0, nil)
	}
	return out
}

// Apply runs every massager in set, in order, over b.
func Apply(set []Massager, b []byte) []byte {
	for _, m := range set {
		b = m.Fn(b)
	}
	return b
}
