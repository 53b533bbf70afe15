// Package scanresult models the CLI's per-invocation report and serializes
// it as JSON or a short human-readable text summary, dispatched by output
// file extension the way the original tool's save_to_file helper did.
package scanresult

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/datawire/wfscan/pkg/version"
)

// AppResult is one application's fingerprint outcome.
type AppResult struct {
	Candidates []string `json:"candidates"`
	BestGuess  string   `json:"bestGuess,omitempty"`
	HostDown   bool     `json:"hostDown,omitempty"`
}

// Result is the full report for one CLI invocation: the target app (if
// fingerprinted), any scanned plugins, and/or guessed apps/plugins.
type Result struct {
	URL         string               `json:"url"`
	App         string               `json:"app,omitempty"`
	AppResult   *AppResult           `json:"appResult,omitempty"`
	Plugins     map[string]AppResult `json:"plugins,omitempty"`
	GuessedApps []string             `json:"guessedApps,omitempty"`
}

// FromVersions converts an engine.Result-shaped (candidates, best guess)
// pair into the serializable AppResult.
func FromVersions(candidates []version.Version, bestGuess *version.Version, hostDown bool) AppResult {
	strs := make([]string, len(candidates))
	for i, v := range candidates {
		strs[i] = v.String()
	}
	r := AppResult{Candidates: strs, HostDown: hostDown}
	if bestGuess != nil {
		r.BestGuess = bestGuess.String()
	}
	return r
}

// Format is the output encoding requested via --format.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// FormatForPath infers a Format from a filename's extension, the way the
// original tool dispatched on ".json" vs. anything else; ".json" selects
// FormatJSON, everything else (including no path at all) selects FormatText.
func FormatForPath(path string) Format {
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		return FormatJSON
	}
	return FormatText
}

// Write renders result to w in the given format.
func Write(w io.Writer, result Result, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	default:
		return writeText(w, result)
	}
}

func writeText(w io.Writer, result Result) error {
	if _, err := fmt.Fprintf(w, "url: %s\n", result.URL); err != nil {
		return err
	}
	if result.App != "" && result.AppResult != nil {
		if err := writeAppResult(w, result.App, *result.AppResult); err != nil {
			return err
		}
	}
	pluginNames := make([]string, 0, len(result.Plugins))
	for name := range result.Plugins {
		pluginNames = append(pluginNames, name)
	}
	sort.Strings(pluginNames)
	for _, name := range pluginNames {
		if err := writeAppResult(w, "plugin "+name, result.Plugins[name]); err != nil {
			return err
		}
	}
	if len(result.GuessedApps) > 0 {
		if _, err := fmt.Fprintf(w, "guessed apps: %s\n", strings.Join(result.GuessedApps, ", ")); err != nil {
			return err
		}
	}
	return nil
}

func writeAppResult(w io.Writer, label string, r AppResult) error {
	guess := r.BestGuess
	if guess == "" {
		guess = "(no guess)"
	}
	status := ""
	if r.HostDown {
		status = " [host went down mid-scan]"
	}
	_, err := fmt.Fprintf(w, "%s: best guess %s, candidates [%s]%s\n",
		label, guess, strings.Join(r.Candidates, ", "), status)
	return err
}
