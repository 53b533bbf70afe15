// Package engine implements the fingerprint engine (C6): orchestrating
// probes against a live target, intersecting the resulting constraint
// sets, optionally winnowing, and producing a best-guess version.
package engine

import (
	"context"
	"errors"

	"github.com/datawire/dlib/dlog"

	"github.com/datawire/wfscan/pkg/errorpage"
	"github.com/datawire/wfscan/pkg/fetch"
	"github.com/datawire/wfscan/pkg/fingerprintdb"
	"github.com/datawire/wfscan/pkg/massage"
	"github.com/datawire/wfscan/pkg/probeplan"
	"github.com/datawire/wfscan/pkg/version"
)

// HostDownThreshold is the number of consecutive transport failures that
// aborts a fingerprinting session.  HTTP status errors never count toward
// this threshold.
const HostDownThreshold = 2

// Options configures a single fingerprinting run.
type Options struct {
	BaseURL   string
	DB        *fingerprintdb.DB
	NumProbes int
	Winnow    bool
}

// Result is the outcome of a fingerprinting run: the surviving candidate
// versions (sorted) and, if any survived, a single recommended guess.
type Result struct {
	Candidates []version.Version
	BestGuess  *version.Version
	// HostDown reports whether the session aborted early because the
	// host became unreachable.
	HostDown bool
}

// session carries the per-run mutable state: the host-down counter and the
// error-page fingerprint, both scoped to one BaseURL per SPEC_FULL.md §5.
type session struct {
	client        *fetch.Client
	errPair       errorpage.Pair
	hostDownCount int
}

// outcome classifies what a single probe established.
type outcome int

const (
	outcomeMatch outcome = iota
	outcomeNoMatch
	outcomeCustom404
	outcomeStatusError
	outcomeTransportFailure
)

func (o outcome) String() string {
	switch o {
	case outcomeMatch:
		return "match"
	case outcomeNoMatch:
		return "no-match"
	case outcomeCustom404:
		return "custom-404"
	case outcomeStatusError:
		return "http-status"
	case outcomeTransportFailure:
		return "transport-failure"
	default:
		return "unknown"
	}
}

// Fingerprint runs a single-app (or single-plugin) fingerprinting session
// against opts.BaseURL using opts.DB, per SPEC_FULL.md §4.6.
func Fingerprint(ctx context.Context, client *fetch.Client, opts Options) Result {
	sess := &session{client: client}
	sess.errPair = errorpage.Identify(ctx, client, opts.BaseURL)

	ranked := probeplan.FingerprintFiles(opts.DB)
	n := opts.NumProbes
	if n > len(ranked) {
		n = len(ranked)
	}

	var constraints [][]version.Version
	probed := map[fingerprintdb.Path]bool{}
	for _, p := range ranked[:n] {
		probed[p] = true
		constraint, out := sess.probe(ctx, opts.DB, opts.BaseURL, p)
		if out == outcomeTransportFailure {
			if sess.hostDownCount >= HostDownThreshold {
				result := finish(constraints)
				result.HostDown = true
				return result
			}
			continue
		}
		if constraint != nil {
			constraints = append(constraints, constraint)
		}
		dlog.Debugf(ctx, "probe %s: %s", p, out)
	}

	result := finish(constraints)
	if opts.Winnow && len(result.Candidates) > 1 {
		result = winnow(ctx, sess, opts, result, probed)
	}
	return result
}

// winnow repeatedly asks the probe planner for files that would shrink the
// current candidate set, fetches them, and re-intersects, per SPEC_FULL.md
// §4.6's winnow loop.
func winnow(
	ctx context.Context,
	sess *session,
	opts Options,
	result Result,
	probed map[fingerprintdb.Path]bool,
) Result {
	constraints := [][]version.Version{result.Candidates}
	attempts := 0
	for len(result.Candidates) > 1 && attempts < opts.NumProbes {
		budget := opts.NumProbes - attempts
		paths := probeplan.WinnowFiles(opts.DB, result.Candidates, budget)
		paths = excludeProbed(paths, probed)
		if len(paths) == 0 {
			break
		}
		for _, p := range paths {
			probed[p] = true
			attempts++
			constraint, out := sess.probe(ctx, opts.DB, opts.BaseURL, p)
			if out == outcomeTransportFailure {
				if sess.hostDownCount >= HostDownThreshold {
					result = finish(constraints)
					result.HostDown = true
					return result
				}
				continue
			}
			if constraint != nil {
				constraints = append(constraints, constraint)
			}
		}
		newResult := finish(constraints)
		if len(newResult.Candidates) == len(result.Candidates) {
			// this round of winnow files made no progress; stop rather
			// than loop requesting the same files again.
			result = newResult
			break
		}
		result = newResult
	}
	return result
}

func excludeProbed(paths []fingerprintdb.Path, probed map[fingerprintdb.Path]bool) []fingerprintdb.Path {
	out := paths[:0:0] //nolint:gocritic // deliberate fresh backing array
	for _, p := range paths {
		if !probed[p] {
			out = append(out, p)
		}
	}
	return out
}

// probe fetches one path, hashes the response (applying massagers on a
// hash-miss), and classifies the result.
func (s *session) probe(
	ctx context.Context,
	db *fingerprintdb.DB,
	baseURL string,
	p fingerprintdb.Path,
) ([]version.Version, outcome) {
	body, err := s.client.Get(ctx, baseURL+string(p))
	if err != nil {
		if fetch.IsHTTPStatus(err) {
			return nil, outcomeStatusError
		}
		if errors.Is(err, context.Canceled) {
			// a cancelled request is not counted toward HostDownThreshold
			return nil, outcomeTransportFailure
		}
		s.hostDownCount++
		return nil, outcomeTransportFailure
	}
	s.hostDownCount = 0

	if vs, ok := matchHash(db, p, body); ok {
		return vs, outcomeMatch
	}

	for _, set := range massage.Subsets() {
		massaged := massage.Apply(set, body)
		if vs, ok := matchHash(db, p, massaged); ok {
			return vs, outcomeMatch
		}
	}

	if errorpage.Match(s.errPair, body) {
		return nil, outcomeCustom404
	}
	return nil, outcomeNoMatch
}

// matchHash checks a computed hash against the path-local hash set only;
// per SPEC_FULL.md §9's resolved Open Question, a hash must be found under
// pathIndex[P] specifically, never via a bare cross-path membership test.
func matchHash(db *fingerprintdb.DB, p fingerprintdb.Path, body []byte) ([]version.Version, bool) {
	h := fingerprintdb.HashResponse(body, p)
	byHash, ok := db.PathIndex[p]
	if !ok {
		return nil, false
	}
	vs, ok := byHash[h]
	return vs, ok
}

// finish applies the §4.8 intersection-inference rule to a list of
// constraint lists and computes the best guess.
func finish(constraints [][]version.Version) Result {
	candidates := Intersect(constraints)
	version.Sort(candidates)
	result := Result{Candidates: candidates}
	if guess, ok := PickLikelyVersion(candidates); ok {
		result.BestGuess = &guess
	}
	return result
}
