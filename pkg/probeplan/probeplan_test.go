package probeplan_test

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/wfscan/pkg/fingerprintdb"
	"github.com/datawire/wfscan/pkg/probeplan"
	"github.com/datawire/wfscan/pkg/version"
)

func buildTestDB(t *testing.T) *fingerprintdb.DB {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"1.0/indicator.txt": "same-everywhere",
		"1.0/a.js":          "a-one",
		"1.0/b.js":          "b-one",
		"1.1/indicator.txt": "same-everywhere",
		"1.1/a.js":          "a-one", // same as 1.0
		"1.1/b.js":          "b-two",
		"1.2/indicator.txt": "same-everywhere",
		"1.2/a.js":          "a-two", // differs from 1.0/1.1
		"1.2/b.js":          "b-three",
	}
	for rel, content := range files {
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	db, err := fingerprintdb.Build(root, fingerprintdb.BuildOptions{
		VersionDirRE: regexp.MustCompile(`^(\d+\.\d+)$`),
	})
	require.NoError(t, err)
	return db
}

func TestFingerprintFilesIsPermutationOfKeys(t *testing.T) {
	db := buildTestDB(t)
	ranked := probeplan.FingerprintFiles(db)
	assert.Len(t, ranked, len(db.PathIndex))
	seen := map[fingerprintdb.Path]bool{}
	for _, p := range ranked {
		_, ok := db.PathIndex[p]
		assert.True(t, ok)
		seen[p] = true
	}
	assert.Len(t, seen, len(db.PathIndex))
}

func TestFingerprintFilesRanksMostDiscriminatingFirst(t *testing.T) {
	db := buildTestDB(t)
	ranked := probeplan.FingerprintFiles(db)
	require.NotEmpty(t, ranked)
	// a.js has 2 distinct hashes and b.js has 3 (more discriminating) vs.
	// indicator.txt's 1; one of them should outrank indicator.txt.
	top := ranked[0]
	assert.NotEqual(t, fingerprintdb.Path("/indicator.txt"), top)
}

func TestIndicatorFilesFindsBroadlySharedFile(t *testing.T) {
	db := buildTestDB(t)
	indicators := probeplan.IndicatorFiles(db)
	require.NotEmpty(t, indicators)
	found := false
	for _, p := range indicators {
		if p == "/indicator.txt" {
			found = true
		}
	}
	assert.True(t, found, "indicator.txt is identical across all versions and should be selected")
}

func TestWinnowFilesOnlyReturnsStrictSubsetGroups(t *testing.T) {
	db := buildTestDB(t)
	candidates := []version.Version{version.Parse("1.0"), version.Parse("1.1"), version.Parse("1.2")}
	winnow := probeplan.WinnowFiles(db, candidates, 5)
	for _, p := range winnow {
		found := false
		for key, group := range db.VersionIndex {
			for _, ph := range group {
				if ph.Path == p {
					assert.Less(t, fingerprintdb.GroupSize(key), len(candidates))
					found = true
				}
			}
		}
		assert.True(t, found)
	}
}

func TestWinnowFilesRespectsMaxPaths(t *testing.T) {
	db := buildTestDB(t)
	candidates := []version.Version{version.Parse("1.0"), version.Parse("1.1"), version.Parse("1.2")}
	winnow := probeplan.WinnowFiles(db, candidates, 1)
	assert.LessOrEqual(t, len(winnow), 1)
}
