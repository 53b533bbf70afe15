package main

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/datawire/wfscan/pkg/cliutil"
	"github.com/datawire/wfscan/pkg/fingerprintdb"
)

func init() {
	var dirExclude, fileExclude string
	cmd := &cobra.Command{
		Use:   "build VERSION_DIRECTORY_REGEX IN_DIRNAME OUT_DBFILE",
		Short: "Build a fingerprint database from a directory of release trees",
		Long: `Build walks IN_DIRNAME, which must contain one subdirectory per released ` +
			`version whose name matches VERSION_DIRECTORY_REGEX (exactly one capturing ` +
			`group, yielding the version string), hashes every retained file, and writes ` +
			`the resulting database to OUT_DBFILE.`,
		Args: cliutil.WrapPositionalArgs(cobra.ExactArgs(3)),
		RunE: func(_ *cobra.Command, args []string) error {
			versionRE, err := regexp.Compile(args[0])
			if err != nil {
				return fmt.Errorf("VERSION_DIRECTORY_REGEX: %w", err)
			}
			if versionRE.NumSubexp() != 1 {
				return fmt.Errorf("VERSION_DIRECTORY_REGEX must have exactly one capturing group")
			}

			opts := fingerprintdb.BuildOptions{VersionDirRE: versionRE}
			if dirExclude != "" {
				if opts.DirExcludeRE, err = regexp.Compile(dirExclude); err != nil {
					return fmt.Errorf("--dir-exclude: %w", err)
				}
			}
			if fileExclude != "" {
				if opts.FileExcludeRE, err = regexp.Compile(fileExclude); err != nil {
					return fmt.Errorf("--file-exclude: %w", err)
				}
			}

			db, err := fingerprintdb.Build(args[1], opts)
			if err != nil {
				return err
			}
			return fingerprintdb.Save(db, args[2])
		},
	}
	cmd.Flags().StringVar(&dirExclude, "dir-exclude", "",
		"Regex matched against subdirectory basenames to prune while walking")
	cmd.Flags().StringVar(&fileExclude, "file-exclude", "",
		"Regex matched against file basenames to skip while walking")

	argparser.AddCommand(cmd)
}
