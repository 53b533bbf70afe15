package fingerprintdb

import (
	"crypto/md5" //nolint:gosec // required by the hash contract, not for security
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/datawire/wfscan/pkg/version"
)

// BuildOptions configures Build.  VersionDirRE must have exactly one
// capturing group yielding the version substring of a version-root
// directory's basename.  DirExcludeRE and FileExcludeRE, if non-nil, prune
// subdirectories and files (matched against basename) as the tree is
// walked; either may be nil to exclude nothing.
type BuildOptions struct {
	VersionDirRE  *regexp.Regexp
	DirExcludeRE  *regexp.Regexp
	FileExcludeRE *regexp.Regexp
}

// hashEntry accumulates, for one content hash, every (version, path) that
// produced it while walking the tree.  All entries under a given hash must
// agree on Path (the consistency invariant in SPEC_FULL.md §4.2 step 6);
// Build rejects trees that violate this.
type hashEntry struct {
	path     Path
	versions []version.Version
}

// Build walks basepath, which must contain one subdirectory per released
// version matching opts.VersionDirRE, hashes every retained file, and
// returns the resulting DB.
func Build(basepath string, opts BuildOptions) (*DB, error) {
	entries, err := os.ReadDir(basepath)
	if err != nil {
		return nil, fmt.Errorf("fingerprintdb: reading %s: %w", basepath, err)
	}

	pathIndex := map[Path]map[Hash][]version.Version{}
	hashIndex := map[Hash]*hashEntry{}
	var allVersions []version.Version

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		m := opts.VersionDirRE.FindStringSubmatch(entry.Name())
		if m == nil || len(m) < 2 {
			continue
		}
		v := version.Parse(m[1])
		allVersions = append(allVersions, v)

		versionRoot := filepath.Join(basepath, entry.Name())
		if err := walkVersion(versionRoot, v, opts, pathIndex, hashIndex); err != nil {
			return nil, err
		}
	}

	version.Sort(allVersions)

	versionIndex := map[VersionGroupKey][]PathHash{}
	for h, he := range hashIndex {
		sorted := make([]version.Version, len(he.versions))
		copy(sorted, he.versions)
		version.Sort(sorted)
		key := GroupKey(sorted)
		versionIndex[key] = append(versionIndex[key], PathHash{Path: he.path, Hash: h})
	}

	db := &DB{
		PathIndex:    pathIndex,
		VersionIndex: versionIndex,
		AllVersions:  allVersions,
	}
	if err := CheckInvariants(db); err != nil {
		return nil, err
	}
	return db, nil
}

func walkVersion(
	versionRoot string,
	v version.Version,
	opts BuildOptions,
	pathIndex map[Path]map[Hash][]version.Version,
	hashIndex map[Hash]*hashEntry,
) error {
	return filepath.Walk(versionRoot, func(name string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if name != versionRoot && opts.DirExcludeRE != nil && opts.DirExcludeRE.MatchString(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if opts.FileExcludeRE != nil && opts.FileExcludeRE.MatchString(info.Name()) {
			return nil
		}

		rel, err := filepath.Rel(versionRoot, name)
		if err != nil {
			return err
		}
		p := Path("/" + filepath.ToSlash(rel))

		content, err := os.ReadFile(name)
		if err != nil {
			return fmt.Errorf("fingerprintdb: reading %s: %w", name, err)
		}
		h := hashContent(content, p)

		if pathIndex[p] == nil {
			pathIndex[p] = map[Hash][]version.Version{}
		}
		pathIndex[p][h] = append(pathIndex[p][h], v)

		he, ok := hashIndex[h]
		if !ok {
			hashIndex[h] = &hashEntry{path: p, versions: []version.Version{v}}
		} else {
			if he.path != p {
				return fmt.Errorf(
					"fingerprintdb: hash collision across distinct paths %q and %q: %w",
					he.path, p, &CorruptDatabaseError{Reason: "hash/path consistency violated"},
				)
			}
			he.versions = append(he.versions, v)
		}
		return nil
	})
}

// hashContent computes the hash contract: md5(content || utf8(path)),
// lowercase hex.
func hashContent(content []byte, p Path) Hash {
	h := md5.New() //nolint:gosec // required by the hash contract, not for security
	h.Write(content)
	h.Write([]byte(p))
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// HashResponse is the C6-facing equivalent of hashContent, exported so the
// engine can compute the same digest over a fetched response body.
func HashResponse(content []byte, p Path) Hash {
	return hashContent(content, p)
}
