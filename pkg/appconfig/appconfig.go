// Package appconfig models the per-application configuration that tells the
// table builder and fingerprint engine how to recognize version directories
// and plugins for one web application, loaded from operator-authored YAML.
package appconfig

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v2"
)

// Config is one application's configuration, as described in SPEC_FULL.md
// §3.  Regex fields are stored as compiled *regexp.Regexp after Load;
// the yaml-tagged raw fields exist only to unmarshal the document.
type Config struct {
	Name string `yaml:"-"`

	VersionDirectoryRegexRaw string `yaml:"versionDirectoryRegex"`
	DirectoryExcludeRegexRaw string `yaml:"directoryExcludeRegex"`
	FileExcludeRegexRaw      string `yaml:"fileExcludeRegex"`
	PluginsRoot              string `yaml:"pluginsRoot"`
	PluginsDirectoryRegexRaw string `yaml:"pluginsDirectoryRegex"`
	IndicatorFiles           []string `yaml:"indicatorFiles"`

	VersionDirectoryRegex *regexp.Regexp `yaml:"-"`
	DirectoryExcludeRegex *regexp.Regexp `yaml:"-"`
	FileExcludeRegex      *regexp.Regexp `yaml:"-"`
	PluginsDirectoryRegex *regexp.Regexp `yaml:"-"`
}

// Set is a loaded collection of app configs, keyed by app name.
type Set map[string]*Config

// LoadFile parses a single YAML document mapping app name to Config.
func LoadFile(data []byte) (Set, error) {
	raw := map[string]*Config{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("appconfig: parsing: %w", err)
	}

	set := make(Set, len(raw))
	for name, cfg := range raw {
		cfg.Name = name
		if err := compile(cfg); err != nil {
			return nil, fmt.Errorf("appconfig: %s: %w", name, err)
		}
		set[name] = cfg
	}
	return set, nil
}

func compile(cfg *Config) error {
	var err error
	if cfg.VersionDirectoryRegexRaw == "" {
		return fmt.Errorf("versionDirectoryRegex is required")
	}
	if cfg.VersionDirectoryRegex, err = regexp.Compile(cfg.VersionDirectoryRegexRaw); err != nil {
		return fmt.Errorf("versionDirectoryRegex: %w", err)
	}
	if cfg.VersionDirectoryRegex.NumSubexp() != 1 {
		return fmt.Errorf("versionDirectoryRegex must have exactly one capturing group, got %d",
			cfg.VersionDirectoryRegex.NumSubexp())
	}
	if cfg.DirectoryExcludeRegexRaw != "" {
		if cfg.DirectoryExcludeRegex, err = regexp.Compile(cfg.DirectoryExcludeRegexRaw); err != nil {
			return fmt.Errorf("directoryExcludeRegex: %w", err)
		}
	}
	if cfg.FileExcludeRegexRaw != "" {
		if cfg.FileExcludeRegex, err = regexp.Compile(cfg.FileExcludeRegexRaw); err != nil {
			return fmt.Errorf("fileExcludeRegex: %w", err)
		}
	}
	if cfg.PluginsRoot != "" && cfg.PluginsDirectoryRegexRaw == "" {
		return fmt.Errorf("pluginsRoot is set but pluginsDirectoryRegex is missing")
	}
	if cfg.PluginsDirectoryRegexRaw != "" {
		if cfg.PluginsDirectoryRegex, err = regexp.Compile(cfg.PluginsDirectoryRegexRaw); err != nil {
			return fmt.Errorf("pluginsDirectoryRegex: %w", err)
		}
	}
	return nil
}

// Names returns the configured app names, for "-l/--list".
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	return names
}
