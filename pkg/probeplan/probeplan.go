// Package probeplan implements the probe-selection algorithms (C4): ranking
// paths by discriminative fitness, selecting indicator files for existence
// detection, and selecting winnowing files to shrink a surviving candidate
// set.
package probeplan

import (
	"sort"

	"github.com/datawire/wfscan/pkg/fingerprintdb"
	"github.com/datawire/wfscan/pkg/version"
)

// FingerprintFiles returns every path in db.PathIndex, sorted descending by
//
//	fitness(P) = (sum over H of |pathIndex[P][H]|) / |allVersions| + |pathIndex[P]|
//
// Ties break on path string, for determinism.
func FingerprintFiles(db *fingerprintdb.DB) []fingerprintdb.Path {
	paths := fingerprintdb.SortedPaths(db)
	total := len(db.AllVersions)

	fitness := make(map[fingerprintdb.Path]float64, len(paths))
	for _, p := range paths {
		byHash := db.PathIndex[p]
		var coverage int
		for _, vs := range byHash {
			coverage += len(vs)
		}
		f := float64(len(byHash))
		if total > 0 {
			f += float64(coverage) / float64(total)
		}
		fitness[p] = f
	}

	sort.SliceStable(paths, func(i, j int) bool {
		if fitness[paths[i]] != fitness[paths[j]] {
			return fitness[paths[i]] > fitness[paths[j]]
		}
		return paths[i] < paths[j]
	})
	return paths
}

// IndicatorFiles finds the largest threshold T (starting at
// len(db.AllVersions) and decrementing to 0) such that at least 2 distinct
// VersionGroupKeys have a group size >= T, then returns up to the first two
// (P, H) entries from each such qualifying group, flattened to paths and
// deduplicated preserving first-seen order.  If no threshold above 0 yields
// 2 groups, the threshold reaches 0 and every group qualifies.
func IndicatorFiles(db *fingerprintdb.DB) []fingerprintdb.Path {
	keys := make([]fingerprintdb.VersionGroupKey, 0, len(db.VersionIndex))
	for k := range db.VersionIndex {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] }) // determinism

	for threshold := len(db.AllVersions); threshold > 0; threshold-- {
		var qualifying []fingerprintdb.VersionGroupKey
		for _, k := range keys {
			if fingerprintdb.GroupSize(k) >= threshold {
				qualifying = append(qualifying, k)
			}
		}
		if len(qualifying) >= 2 {
			return flattenGroups(db, qualifying, 2)
		}
	}
	// threshold 0: every group has size >= 0
	return flattenGroups(db, keys, 2)
}

func flattenGroups(
	db *fingerprintdb.DB,
	keys []fingerprintdb.VersionGroupKey,
	perGroup int,
) []fingerprintdb.Path {
	seen := map[fingerprintdb.Path]bool{}
	var out []fingerprintdb.Path
	for _, k := range keys {
		group := db.VersionIndex[k]
		n := perGroup
		if n > len(group) {
			n = len(group)
		}
		for _, ph := range group[:n] {
			if !seen[ph.Path] {
				seen[ph.Path] = true
				out = append(out, ph.Path)
			}
		}
	}
	return out
}

// WinnowFiles returns up to maxPaths paths chosen because the version group
// they belong to is a strict subset of candidates and contains at least one
// candidate version: for each candidate (in order), scan VersionGroupKeys
// containing it whose group size is strictly smaller than len(candidates),
// and take the first (P, H) of each such group not already selected.
func WinnowFiles(
	db *fingerprintdb.DB,
	candidates []version.Version,
	maxPaths int,
) []fingerprintdb.Path {
	if maxPaths <= 0 || len(candidates) == 0 {
		return nil
	}

	keys := make([]fingerprintdb.VersionGroupKey, 0, len(db.VersionIndex))
	for k := range db.VersionIndex {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	selected := map[fingerprintdb.VersionGroupKey]bool{}
	seenPath := map[fingerprintdb.Path]bool{}
	var out []fingerprintdb.Path

	for _, cand := range candidates {
		for _, k := range keys {
			if selected[k] {
				continue
			}
			if fingerprintdb.GroupSize(k) >= len(candidates) {
				continue
			}
			if !fingerprintdb.GroupContains(k, cand) {
				continue
			}
			group := db.VersionIndex[k]
			if len(group) == 0 {
				continue
			}
			p := group[0].Path
			if seenPath[p] {
				continue
			}
			selected[k] = true
			seenPath[p] = true
			out = append(out, p)
			if len(out) >= maxPaths {
				return out
			}
		}
	}
	return out
}
