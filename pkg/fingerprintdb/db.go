// Package fingerprintdb builds, persists, loads, and caches the hash
// database that drives fingerprint inference: the dual PathIndex /
// VersionIndex projections plus the full version universe.
package fingerprintdb

import (
	"sort"
	"strings"

	"github.com/datawire/wfscan/pkg/version"
)

// Hash is an MD5 digest rendered as lowercase hex, per the hash contract in
// SPEC_FULL.md §6.
type Hash string

// Path is a file's location relative to a version root, with the leading
// separator preserved (e.g. "/templates/system/css/general.css").
type Path string

// VersionGroupKey identifies a maximal set of versions that agree on some
// (Path, Hash) pair.  It is the sorted, comma-joined canonical form of that
// version set.
type VersionGroupKey string

// PathHash is a (path, hash) pair, as stored per version group.
type PathHash struct {
	Path Path
	Hash Hash
}

// DB is the triple described in SPEC_FULL.md §3: two dual indices over the
// same underlying data, plus the sorted version universe they were built
// from.  A DB is immutable once constructed; callers must not mutate the
// maps or slices reachable from it.
type DB struct {
	PathIndex    map[Path]map[Hash][]version.Version
	VersionIndex map[VersionGroupKey][]PathHash
	AllVersions  []version.Version
}

// GroupKey computes the VersionGroupKey for an already-sorted, duplicate-free
// list of versions.
func GroupKey(sorted []version.Version) VersionGroupKey {
	parts := make([]string, len(sorted))
	for i, v := range sorted {
		parts[i] = v.String()
	}
	return VersionGroupKey(strings.Join(parts, ","))
}

// ParseGroupKey inverts GroupKey, parsing each comma-separated component
// back into a Version.  Used by invariant checks and by the winnow planner
// when it needs to test membership of a single version in a group.
func ParseGroupKey(k VersionGroupKey) []version.Version {
	if k == "" {
		return nil
	}
	parts := strings.Split(string(k), ",")
	out := make([]version.Version, len(parts))
	for i, p := range parts {
		out[i] = version.Parse(p)
	}
	return out
}

// GroupContains reports whether k's version set contains v (compared by
// canonical string, since group keys are built from canonical forms).
func GroupContains(k VersionGroupKey, v version.Version) bool {
	for _, part := range strings.Split(string(k), ",") {
		if part == v.String() {
			return true
		}
	}
	return false
}

// GroupSize returns the number of versions encoded in k.
func GroupSize(k VersionGroupKey) int {
	if k == "" {
		return 0
	}
	return strings.Count(string(k), ",") + 1
}

// CheckInvariants verifies the duality and sortedness invariants from
// SPEC_FULL.md §8.  It is exported for use by tests and by CorruptDatabase
// detection at load time.
func CheckInvariants(db *DB) error {
	seenAllVersions := map[string]bool{}
	for _, v := range db.AllVersions {
		seenAllVersions[v.String()] = true
	}
	for i := 1; i < len(db.AllVersions); i++ {
		if version.Cmp(db.AllVersions[i-1], db.AllVersions[i]) >= 0 {
			return &CorruptDatabaseError{Reason: "AllVersions is not strictly sorted"}
		}
	}

	for p, byHash := range db.PathIndex {
		for h, vs := range byHash {
			if len(vs) == 0 {
				return &CorruptDatabaseError{Reason: "empty version set for " + string(p) + "@" + string(h)}
			}
			sorted := make([]version.Version, len(vs))
			copy(sorted, vs)
			version.Sort(sorted)
			key := GroupKey(sorted)
			group, ok := db.VersionIndex[key]
			if !ok {
				return &CorruptDatabaseError{Reason: "no VersionIndex entry for group " + string(key)}
			}
			found := false
			for _, ph := range group {
				if ph.Path == p && ph.Hash == h {
					found = true
					break
				}
			}
			if !found {
				return &CorruptDatabaseError{Reason: "VersionIndex group missing (" + string(p) + "," + string(h) + ")"}
			}
		}
	}

	for key, group := range db.VersionIndex {
		want := ParseGroupKey(key)
		for _, ph := range group {
			got := db.PathIndex[ph.Path][ph.Hash]
			if GroupKey(sortedCopy(got)) != GroupKey(sortedCopy(want)) {
				return &CorruptDatabaseError{Reason: "PathIndex disagrees with VersionIndex for " + string(ph.Path)}
			}
		}
	}

	return nil
}

func sortedCopy(vs []version.Version) []version.Version {
	out := make([]version.Version, len(vs))
	copy(out, vs)
	version.Sort(out)
	return out
}

// CorruptDatabaseError is returned when a loaded or built DB fails its
// structural invariants.
type CorruptDatabaseError struct {
	Reason string
}

func (e *CorruptDatabaseError) Error() string {
	return "corrupt fingerprint database: " + e.Reason
}

// sortPaths returns the keys of a PathIndex in deterministic order, used by
// callers that need a stable iteration order over the map (probe planning,
// serialization).
func sortPaths(idx map[Path]map[Hash][]version.Version) []Path {
	out := make([]Path, 0, len(idx))
	for p := range idx {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SortedPaths exposes sortPaths for callers outside the package (probeplan).
func SortedPaths(db *DB) []Path { return sortPaths(db.PathIndex) }
