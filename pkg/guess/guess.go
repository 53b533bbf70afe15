// Package guess implements the existence guessers (C7): detecting that an
// application or plugin is installed without inferring its version.  The
// app guesser and plugin guesser deliberately use different existence
// criteria; see SPEC_FULL.md §9.
package guess

import (
	"context"
	"errors"

	"github.com/datawire/wfscan/pkg/errorpage"
	"github.com/datawire/wfscan/pkg/fetch"
	"github.com/datawire/wfscan/pkg/fingerprintdb"
	"github.com/datawire/wfscan/pkg/massage"
	"github.com/datawire/wfscan/pkg/probeplan"
)

// AppCandidate is one application to test for existence.
type AppCandidate struct {
	Name string
	DB   *fingerprintdb.DB
}

// App reports, for baseURL, which of candidates appear to be installed.
// An app counts as present only once one of its indicator files returns a
// known hash (a strict criterion: a live, non-404 response alone does not
// count, since many apps share generic static assets).  Per SPEC_FULL.md
// §4.7, this issues existence probes the same way C6's probe() does: on a
// hash miss, the massager subsets are tried before giving up on that file.
func App(ctx context.Context, client *fetch.Client, baseURL string, candidates []AppCandidate) []string {
	var present []string
	for _, cand := range candidates {
		indicators := probeplan.IndicatorFiles(cand.DB)
		hostDown := 0
		found := false
		for _, p := range indicators {
			if hostDown >= hostDownThreshold {
				break
			}
			body, err := client.Get(ctx, baseURL+string(p))
			if err != nil {
				if fetch.IsTransportFailure(err) && !errors.Is(err, context.Canceled) {
					hostDown++
				}
				continue
			}
			hostDown = 0
			if matchHash(cand.DB, p, body) {
				found = true
				break
			}
		}
		if found {
			present = append(present, cand.Name)
		}
	}
	return present
}

// matchHash checks body against db's path-local hash set, the same way
// engine.go's matchHash does, trying the massager subsets on a miss before
// reporting no match.
func matchHash(db *fingerprintdb.DB, p fingerprintdb.Path, body []byte) bool {
	byHash, ok := db.PathIndex[p]
	if !ok {
		return false
	}
	if _, ok := byHash[fingerprintdb.HashResponse(body, p)]; ok {
		return true
	}
	for _, set := range massage.Subsets() {
		massaged := massage.Apply(set, body)
		if _, ok := byHash[fingerprintdb.HashResponse(massaged, p)]; ok {
			return true
		}
	}
	return false
}

// PluginCandidate is one plugin to test for existence.
type PluginCandidate struct {
	Name string
	DB   *fingerprintdb.DB
}

// Plugin reports, for baseURL, which of candidates appear to be installed.
// Deliberately more permissive than App: a plugin counts as present once an
// indicator file is fetched successfully and is not a custom 404, even if
// its hash doesn't match any known release (a plugin may have been
// hand-patched, but is still "there").
func Plugin(
	ctx context.Context,
	client *fetch.Client,
	baseURL string,
	errPair errorpage.Pair,
	candidates []PluginCandidate,
) []string {
	var present []string
	for _, cand := range candidates {
		indicators := probeplan.IndicatorFiles(cand.DB)
		hostDown := 0
		found := false
		for _, p := range indicators {
			if hostDown >= hostDownThreshold {
				break
			}
			body, err := client.Get(ctx, baseURL+string(p))
			if err != nil {
				if fetch.IsTransportFailure(err) && !errors.Is(err, context.Canceled) {
					hostDown++
				}
				continue
			}
			hostDown = 0
			if !errorpage.Match(errPair, body) {
				found = true
				break
			}
		}
		if found {
			present = append(present, cand.Name)
		}
	}
	return present
}

const hostDownThreshold = 2
