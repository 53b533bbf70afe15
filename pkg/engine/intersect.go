package engine

import "github.com/datawire/wfscan/pkg/version"

// ConflictPolicy resolves what candidate set to report when intersecting a
// set of per-probe constraint lists yields the empty set despite at least
// one probe producing a non-empty list.  Isolated as a named, swappable
// strategy per SPEC_FULL.md §9: the default (SmallestNonEmpty) is expedient
// rather than principled, carried forward from the original implementation
// rather than "fixed".
type ConflictPolicy func(lists [][]version.Version) []version.Version

// SmallestNonEmpty returns the smallest non-empty list, trusting the most
// specific (most discriminating) probe when the evidence conflicts.
func SmallestNonEmpty(lists [][]version.Version) []version.Version {
	var smallest []version.Version
	for _, l := range lists {
		if len(l) == 0 {
			continue
		}
		if smallest == nil || len(l) < len(smallest) {
			smallest = l
		}
	}
	return smallest
}

// DefaultConflictPolicy is used by Intersect.
var DefaultConflictPolicy ConflictPolicy = SmallestNonEmpty //nolint:gochecknoglobals

// Intersect implements the §4.8 set-intersection inference: discard empty
// lists, intersect what remains; if that intersection is empty but some
// list was non-empty, fall back to DefaultConflictPolicy.
func Intersect(lists [][]version.Version) []version.Version {
	nonEmpty := make([][]version.Version, 0, len(lists))
	for _, l := range lists {
		if len(l) > 0 {
			nonEmpty = append(nonEmpty, l)
		}
	}
	if len(nonEmpty) == 0 {
		return nil
	}

	counts := map[string]int{}
	byCanonical := map[string]version.Version{}
	for _, l := range nonEmpty {
		seen := map[string]bool{}
		for _, v := range l {
			if seen[v.String()] {
				continue
			}
			seen[v.String()] = true
			counts[v.String()]++
			byCanonical[v.String()] = v
		}
	}

	var result []version.Version
	for s, c := range counts {
		if c == len(nonEmpty) {
			result = append(result, byCanonical[s])
		}
	}
	if len(result) == 0 {
		return DefaultConflictPolicy(nonEmpty)
	}
	return result
}

// PickLikelyVersion implements the "collapse decorated versions to their
// strict numeric prefix, then take the maximum" rule from §4.8.  Returns
// (zero, false) if candidates is empty.
func PickLikelyVersion(candidates []version.Version) (version.Version, bool) {
	if len(candidates) == 0 {
		return version.Version{}, false
	}

	bySelf := map[string]bool{}
	for _, v := range candidates {
		bySelf[v.String()] = true
	}

	mapped := make([]version.Version, len(candidates))
	for i, v := range candidates {
		if prefix, ok := version.NumericPrefix(v); ok && prefix != v.String() && bySelf[prefix] {
			mapped[i] = version.Parse(prefix)
		} else {
			mapped[i] = v
		}
	}

	best := mapped[0]
	for _, v := range mapped[1:] {
		if version.Less(best, v) {
			best = v
		}
	}
	return best, true
}
