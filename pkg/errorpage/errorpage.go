// Package errorpage implements the custom-404 defense (C5): a structural
// fingerprint of a target's synthetic error page, used to tell a genuine
// "file not found" apart from a genuine hash mismatch.
package errorpage

import (
	"bytes"
	"context"
	"strings"

	"github.com/datawire/wfscan/pkg/fetch"
)

// tags is the fixed closed tag set counted by Fingerprint.
var tags = []string{"</div>", "</a>", "</tr>", "</p>"} //nolint:gochecknoglobals

// parkingPhrases are fixed substrings that unambiguously indicate a
// domain-parking landing page rather than the target application's own
// custom error page.
var parkingPhrases = []string{ //nolint:gochecknoglobals
	"GoDaddy.com is the world's No. 1 ICANN-accredited domain name registrar",
	"This site is not currently available.",
}

// Tolerance is the fuzzy-match slack used by Match: two tag counts are
// considered equivalent if they differ by no more than (1-Tolerance) times
// the larger of the two.
const Tolerance = 0.9

// Fingerprint maps each tag in the fixed tag set to the number of times it
// (case-sensitive, plus its all-uppercase variant) occurs in a page.
type Fingerprint map[string]int

// Compute counts occurrences of each tag (and its uppercase form) in page.
func Compute(page []byte) Fingerprint {
	fp := make(Fingerprint, len(tags))
	for _, tag := range tags {
		count := bytes.Count(page, []byte(tag))
		count += bytes.Count(page, []byte(strings.ToUpper(tag)))
		fp[tag] = count
	}
	return fp
}

// Pair is the pair of fingerprints SPEC_FULL.md §4.5 builds from two probed
// nonexistent URLs (conventionally one .html, one .gif).  A nil Pair means
// "no custom error page was detected" (e.g. the server returns a proper
// HTTP status for missing resources).
type Pair []Fingerprint

// Identify probes baseURL+"/should/not/exist.html" and
// baseURL+"/should/not/exist.gif" and returns their fingerprints.  Each
// probe makes up to 2 total attempts on transport failure; an HTTP status
// error, or exhausting attempts on a transport failure, yields a nil Pair
// (no custom error page to defend against).
func Identify(ctx context.Context, client *fetch.Client, baseURL string) Pair {
	suffixes := []string{"/should/not/exist.html", "/should/not/exist.gif"}
	pair := make(Pair, 0, len(suffixes))
	for _, suffix := range suffixes {
		body, ok := fetchWithRetries(ctx, client, baseURL+suffix, 2)
		if !ok {
			return nil
		}
		pair = append(pair, Compute(body))
	}
	return pair
}

func fetchWithRetries(ctx context.Context, client *fetch.Client, url string, maxAttempts int) ([]byte, bool) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		body, err := client.Get(ctx, url)
		if err == nil {
			return body, true
		}
		if fetch.IsHTTPStatus(err) {
			return nil, false
		}
		// transport failure: retry, unless attempts are exhausted
	}
	return nil, false
}

// Match reports whether page looks like the error page described by pair:
// a nil pair never matches; a page containing a known parking phrase always
// matches; otherwise every tag of every fingerprint in pair must be within
// Tolerance of page's own fingerprint.
func Match(pair Pair, page []byte) bool {
	if pair == nil {
		return false
	}
	for _, phrase := range parkingPhrases {
		if bytes.Contains(page, []byte(phrase)) {
			return true
		}
	}

	candidate := Compute(page)
	for _, reference := range pair {
		for _, tag := range tags {
			ref, cand := reference[tag], candidate[tag]
			d := ref - cand
			if d < 0 {
				d = -d
			}
			b := ref
			if cand > b {
				b = cand
			}
			if float64(d) > float64(b)*(1-Tolerance) {
				return false
			}
		}
	}
	return true
}
