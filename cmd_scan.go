package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/datawire/wfscan/pkg/appconfig"
	"github.com/datawire/wfscan/pkg/cliutil"
	"github.com/datawire/wfscan/pkg/engine"
	"github.com/datawire/wfscan/pkg/errorpage"
	"github.com/datawire/wfscan/pkg/fetch"
	"github.com/datawire/wfscan/pkg/fingerprintdb"
	"github.com/datawire/wfscan/pkg/guess"
	"github.com/datawire/wfscan/pkg/scanresult"
)

type scanFlags struct {
	plugin      string
	skipApp     bool
	numProbes   int
	winnow      bool
	list        bool
	configPath  string
	dbsPath     string
	outputPath  string
	format      string
	concurrency int
}

func init() {
	var flags scanFlags
	argparser.Args = cliutil.WrapPositionalArgs(cobra.MaximumNArgs(2))
	argparser.RunE = func(cmd *cobra.Command, args []string) error {
		return runScan(cmd, args, &flags)
	}

	argparser.Flags().StringVarP(&flags.plugin, "plugin", "p", "",
		"Fingerprint a single named `plugin` of APPNAME instead of the app itself; "+
			"pass \"guess\" to guess which plugins are installed")
	argparser.Flags().BoolVarP(&flags.skipApp, "skip-app", "s", false,
		"Skip fingerprinting the app itself (useful with --plugin)")
	argparser.Flags().IntVarP(&flags.numProbes, "num-probes", "n", 15,
		"Probe `budget` per fingerprinting session")
	argparser.Flags().BoolVarP(&flags.winnow, "winnow", "w", false,
		"Enable the winnowing pass to further narrow an ambiguous result")
	argparser.Flags().BoolVarP(&flags.list, "list", "l", false,
		"List every configured app (and its known plugins), then exit")
	argparser.Flags().StringVar(&flags.configPath, "config", "configs",
		"Directory or file holding the YAML AppConfig documents")
	argparser.Flags().StringVar(&flags.dbsPath, "dbs", "dbs",
		"Root directory holding <app>.db and <app>/<plugin>.db table files")
	argparser.Flags().StringVarP(&flags.outputPath, "output", "o", "",
		"Write the scan result to `path` instead of stdout")
	argparser.Flags().StringVar(&flags.format, "format", "",
		"Output format: json or text (default: inferred from --output's extension)")
	argparser.Flags().IntVar(&flags.concurrency, "concurrency", 4,
		"Maximum number of plugin sessions to run concurrently during a plugin guess")
}

func runScan(cmd *cobra.Command, args []string, flags *scanFlags) error {
	ctx := cmd.Context()

	configSet, err := loadConfigSet(flags.configPath)
	if err != nil {
		return err
	}

	if flags.list {
		return listApps(cmd, configSet, flags.dbsPath)
	}

	if len(args) != 2 {
		return fmt.Errorf("expected URL and APPNAME arguments (or --list)")
	}
	url := strings.TrimRight(args[0], "/")
	appName := args[1]

	client := fetch.NewClient()
	result := scanresult.Result{URL: url, App: appName}

	switch {
	case appName == "guess":
		result.GuessedApps = runAppGuess(ctx, client, url, configSet, flags.dbsPath)
	case flags.plugin == "guess":
		plugins, err := runPluginGuess(ctx, client, url, flags, appName)
		if err != nil {
			return err
		}
		result.Plugins = plugins
	default:
		if !flags.skipApp {
			dbFile := filepath.Join(flags.dbsPath, appName+".db")
			db, err := fingerprintdb.Load(dbFile)
			if err != nil {
				return fmt.Errorf("loading database for %q: %w", appName, err)
			}
			r := engine.Fingerprint(ctx, client, engine.Options{
				BaseURL: url, DB: db, NumProbes: flags.numProbes, Winnow: flags.winnow,
			})
			ar := scanresult.FromVersions(r.Candidates, r.BestGuess, r.HostDown)
			result.AppResult = &ar
		}
		if flags.plugin != "" {
			pluginDBFile := filepath.Join(flags.dbsPath, appName, flags.plugin+".db")
			db, err := fingerprintdb.Load(pluginDBFile)
			if err != nil {
				return fmt.Errorf("loading database for plugin %q: %w", flags.plugin, err)
			}
			r := engine.Fingerprint(ctx, client, engine.Options{
				BaseURL: url, DB: db, NumProbes: flags.numProbes, Winnow: flags.winnow,
			})
			ar := scanresult.FromVersions(r.Candidates, r.BestGuess, r.HostDown)
			result.Plugins = map[string]scanresult.AppResult{flags.plugin: ar}
		}
	}

	return writeResult(cmd, result, flags)
}

func loadConfigSet(path string) (appconfig.Set, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return appconfig.Set{}, nil
		}
		return nil, fmt.Errorf("reading config path %s: %w", path, err)
	}

	set := appconfig.Set{}
	var files []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("reading config directory %s: %w", path, err)
		}
		for _, e := range entries {
			if !e.IsDir() && (strings.HasSuffix(e.Name(), ".yaml") || strings.HasSuffix(e.Name(), ".yml")) {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
	} else {
		files = []string{path}
	}

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", f, err)
		}
		fileSet, err := appconfig.LoadFile(data)
		if err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", f, err)
		}
		for name, cfg := range fileSet {
			set[name] = cfg
		}
	}
	return set, nil
}

func listApps(cmd *cobra.Command, set appconfig.Set, dbsPath string) error {
	names := set.Names()
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", name) //nolint:errcheck
		plugins, _ := listPluginDBs(dbsPath, name)
		for _, p := range plugins {
			fmt.Fprintf(cmd.OutOrStdout(), "  plugin: %s\n", p) //nolint:errcheck
		}
	}
	return nil
}

// listPluginDBs returns the plugin names discovered as <dbsPath>/<app>/*.db
// (or legacy *.pkl) files.
func listPluginDBs(dbsPath, appName string) ([]string, error) {
	dir := filepath.Join(dbsPath, appName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".db"):
			names = append(names, strings.TrimSuffix(name, ".db"))
		case strings.HasSuffix(name, ".pkl"):
			names = append(names, strings.TrimSuffix(name, ".pkl"))
		}
	}
	sort.Strings(names)
	return names, nil
}

func runAppGuess(
	ctx context.Context,
	client *fetch.Client,
	url string,
	set appconfig.Set,
	dbsPath string,
) []string {
	var candidates []guess.AppCandidate
	for name := range set {
		dbFile := filepath.Join(dbsPath, name+".db")
		db, err := fingerprintdb.Load(dbFile)
		if err != nil {
			continue // ConfigMissing for this one app: skip, don't fail the whole guess
		}
		candidates = append(candidates, guess.AppCandidate{Name: name, DB: db})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })
	return guess.App(ctx, client, url, candidates)
}

func runPluginGuess(
	ctx context.Context,
	client *fetch.Client,
	url string,
	flags *scanFlags,
	appName string,
) (map[string]scanresult.AppResult, error) {
	names, err := listPluginDBs(flags.dbsPath, appName)
	if err != nil {
		return nil, fmt.Errorf("listing plugin databases for %q: %w", appName, err)
	}

	errPair := errorpage.Identify(ctx, client, url)

	var candidates []guess.PluginCandidate
	for _, name := range names {
		dbFile := filepath.Join(flags.dbsPath, appName, name+".db")
		db, err := fingerprintdb.Load(dbFile)
		if err != nil {
			continue
		}
		candidates = append(candidates, guess.PluginCandidate{Name: name, DB: db})
	}

	present := runPluginGuessConcurrently(ctx, client, url, errPair, candidates, flags.concurrency)

	out := make(map[string]scanresult.AppResult, len(present))
	for _, name := range present {
		out[name] = scanresult.AppResult{Candidates: nil, BestGuess: ""}
	}
	return out, nil
}

// runPluginGuessConcurrently bounds the plugin-guess fan-out to
// flags.concurrency sessions at a time, per SPEC_FULL.md §5's concurrency
// model: each candidate is its own independent session.
func runPluginGuessConcurrently(
	ctx context.Context,
	client *fetch.Client,
	url string,
	errPair errorpage.Pair,
	candidates []guess.PluginCandidate,
	concurrency int,
) []string {
	if concurrency < 1 {
		concurrency = 1
	}
	type result struct {
		name    string
		present bool
	}
	results := make([]result, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, concurrency)
	for i, cand := range candidates {
		i, cand := i, cand
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()
			present := guess.Plugin(gctx, client, url, errPair, []guess.PluginCandidate{cand})
			results[i] = result{name: cand.Name, present: len(present) > 0}
			return nil
		})
	}
	_ = g.Wait() // guess.Plugin never returns an error; nothing to propagate

	var out []string
	for _, r := range results {
		if r.present {
			out = append(out, r.name)
		}
	}
	sort.Strings(out)
	return out
}

func writeResult(cmd *cobra.Command, result scanresult.Result, flags *scanFlags) error {
	format := scanresult.Format(flags.format)
	if format == "" {
		format = scanresult.FormatForPath(flags.outputPath)
	}

	if flags.outputPath == "" {
		return scanresult.Write(cmd.OutOrStdout(), result, format)
	}
	f, err := os.Create(flags.outputPath)
	if err != nil {
		return fmt.Errorf("creating output file %s: %w", flags.outputPath, err)
	}
	defer f.Close() //nolint:errcheck
	return scanresult.Write(f, result, format)
}
