package fingerprintdb

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"strings"

	lru "github.com/hashicorp/golang-lru"

	"github.com/datawire/wfscan/pkg/version"
)

// gobDB is the on-the-wire shape of a DB: version.Version doesn't gob-encode
// directly (its fields are unexported), so persistence round-trips through
// canonical strings instead and re-Parses them on load.
type gobDB struct {
	PathIndex    map[Path]map[Hash][]string
	VersionIndex map[VersionGroupKey][]PathHash
	AllVersions  []string
}

func toGob(db *DB) *gobDB {
	g := &gobDB{
		PathIndex:    make(map[Path]map[Hash][]string, len(db.PathIndex)),
		VersionIndex: db.VersionIndex,
		AllVersions:  make([]string, len(db.AllVersions)),
	}
	for i, v := range db.AllVersions {
		g.AllVersions[i] = v.String()
	}
	for p, byHash := range db.PathIndex {
		g.PathIndex[p] = make(map[Hash][]string, len(byHash))
		for h, vs := range byHash {
			strs := make([]string, len(vs))
			for i, v := range vs {
				strs[i] = v.String()
			}
			g.PathIndex[p][h] = strs
		}
	}
	return g
}

func fromGob(g *gobDB) *DB {
	db := &DB{
		PathIndex:    make(map[Path]map[Hash][]version.Version, len(g.PathIndex)),
		VersionIndex: g.VersionIndex,
		AllVersions:  make([]version.Version, len(g.AllVersions)),
	}
	for i, s := range g.AllVersions {
		db.AllVersions[i] = version.Parse(s)
	}
	for p, byHash := range g.PathIndex {
		db.PathIndex[p] = make(map[Hash][]version.Version, len(byHash))
		for h, strs := range byHash {
			vs := make([]version.Version, len(strs))
			for i, s := range strs {
				vs[i] = version.Parse(s)
			}
			db.PathIndex[p][h] = vs
		}
	}
	return db
}

// Save persists db to filename using encoding/gob.  See DESIGN.md for why
// gob rather than one of the pack's structured-text serializers: this is a
// generated binary blob, not an operator-authored document.
func Save(db *DB, filename string) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(toGob(db)); err != nil {
		return fmt.Errorf("fingerprintdb: encoding %s: %w", filename, err)
	}
	if err := os.WriteFile(filename, buf.Bytes(), 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("fingerprintdb: writing %s: %w", filename, err)
	}
	return nil
}

// Load reads and decodes a database previously written by Save.  If
// filename doesn't exist but a sibling with a ".pkl" suffix (in place of
// whatever extension filename has) does, Load falls back to treating that
// as a legacy database path name for continuity with existing deployments;
// the legacy blob itself is still expected to be gob-encoded by this
// implementation (true legacy pickle import is out of scope for this
// rewrite; see SPEC_FULL.md §6).
func Load(filename string) (*DB, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		legacy := legacyPath(filename)
		raw, err = os.ReadFile(legacy)
		if err != nil {
			return nil, fmt.Errorf("fingerprintdb: loading %s: %w", filename, err)
		}
	}

	var g gobDB
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&g); err != nil {
		return nil, fmt.Errorf("fingerprintdb: decoding %s: %w", filename, &CorruptDatabaseError{Reason: err.Error()})
	}
	db := fromGob(&g)
	if err := CheckInvariants(db); err != nil {
		return nil, fmt.Errorf("fingerprintdb: %s: %w", filename, err)
	}
	return db, nil
}

func legacyPath(filename string) string {
	if idx := strings.LastIndexByte(filename, '.'); idx >= 0 {
		return filename[:idx] + ".pkl"
	}
	return filename + ".pkl"
}

// Cache is the process-wide, concurrency-safe table cache described in
// SPEC_FULL.md §3 and §5: a second Load of the same filename returns the
// same *DB without hitting disk again.  Backed by a bounded LRU so a
// guess-everything scan across hundreds of plugin databases doesn't grow
// memory without bound.
type Cache struct {
	lru *lru.Cache
}

// NewCache constructs a Cache holding at most size entries.
func NewCache(size int) (*Cache, error) {
	l, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("fingerprintdb: constructing cache: %w", err)
	}
	return &Cache{lru: l}, nil
}

// Load returns the cached DB for filename, loading and caching it on a miss.
func (c *Cache) Load(filename string) (*DB, error) {
	if v, ok := c.lru.Get(filename); ok {
		return v.(*DB), nil
	}
	db, err := Load(filename)
	if err != nil {
		return nil, err
	}
	c.lru.Add(filename, db)
	return db, nil
}
