// Package version implements the loosely-structured, totally-ordered
// version identifiers used throughout the fingerprint database.
package version

import (
	"regexp"
	"strconv"

	"k8s.io/apimachinery/pkg/util/intstr"
)

// Version is an opaque, comparable version identifier parsed from a
// directory or file name.  The zero Version is not valid; construct one
// with Parse.
type Version struct {
	canonical string
	runs      []intstr.IntOrString
}

var runPattern = regexp.MustCompile(`[0-9]+|[^0-9]+`)

// Parse splits s into maximal numeric and non-numeric runs for ordering
// purposes.  s itself becomes the canonical form.
func Parse(s string) Version {
	matches := runPattern.FindAllString(s, -1)
	runs := make([]intstr.IntOrString, 0, len(matches))
	for _, m := range matches {
		if n, err := strconv.Atoi(m); err == nil {
			runs = append(runs, intstr.FromInt(n))
		} else {
			runs = append(runs, intstr.FromString(m))
		}
	}
	return Version{canonical: s, runs: runs}
}

// String returns the canonical form the Version was parsed from.
func (v Version) String() string { return v.canonical }

// IsZero reports whether v is the zero Version (i.e. was never Parse'd).
func (v Version) IsZero() bool { return v.canonical == "" && v.runs == nil }

func cmpRun(a, b *intstr.IntOrString) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch {
	case a.Type == intstr.Int && b.Type == intstr.Int:
		switch {
		case a.IntVal < b.IntVal:
			return -1
		case a.IntVal > b.IntVal:
			return 1
		default:
			return 0
		}
	case a.Type == intstr.String && b.Type == intstr.String:
		switch {
		case a.StrVal < b.StrVal:
			return -1
		case a.StrVal > b.StrVal:
			return 1
		default:
			return 0
		}
	case a.Type == intstr.Int && b.Type == intstr.String:
		// A numeric run where the other side has a non-numeric run of the
		// same position is not comparable by value; fall back to treating
		// numeric as "later" (newer) than non-numeric, so "1.5" > "1.beta".
		return 1
	default: // a.Type == intstr.String && b.Type == intstr.Int
		return -1
	}
}

// Cmp returns a negative number if a < b, a positive number if a > b, and
// zero if a and b are equal.  Versions are compared run-by-run; when one
// side runs out of runs, the shorter version compares less, whatever the
// longer one's remaining runs are.
func Cmp(a, b Version) int {
	n := len(a.runs)
	if len(b.runs) > n {
		n = len(b.runs)
	}
	for i := 0; i < n; i++ {
		var aRun, bRun *intstr.IntOrString
		if i < len(a.runs) {
			aRun = &a.runs[i]
		}
		if i < len(b.runs) {
			bRun = &b.runs[i]
		}
		if aRun == nil && bRun != nil {
			return -1
		}
		if bRun == nil && aRun != nil {
			return 1
		}
		if d := cmpRun(aRun, bRun); d != 0 {
			return d
		}
	}
	return 0
}

// Less reports whether a sorts strictly before b.
func Less(a, b Version) bool { return Cmp(a, b) < 0 }

// Equal reports whether a and b have the same canonical form.
func Equal(a, b Version) bool { return a.canonical == b.canonical }

// Sort sorts vs in ascending order, in place.
func Sort(vs []Version) {
	// insertion sort: the lists this operates on (per-path version sets,
	// whole-database version universes) are small enough that an O(n^2)
	// sort with no allocation overhead is preferable to sort.Slice's
	// reflection-based comparator, and it keeps the comparator's
	// intent (Cmp) front and center for readers.
	for i := 1; i < len(vs); i++ {
		for j := i; j > 0 && Cmp(vs[j-1], vs[j]) > 0; j-- {
			vs[j-1], vs[j] = vs[j], vs[j-1]
		}
	}
}

// NumericPrefix extracts the strict dotted-numeric prefix of v's canonical
// form, i.e. the leading match of `[0-9.]+`.  It returns ("", false) if v
// does not begin with a digit.
func NumericPrefix(v Version) (string, bool) {
	m := numericPrefixPattern.FindString(v.canonical)
	if m == "" {
		return "", false
	}
	return m, true
}

var numericPrefixPattern = regexp.MustCompile(`^[0-9][0-9.]*`)
