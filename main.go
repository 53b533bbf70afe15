// Command wfscan fingerprints web applications and their plugins over HTTP
// by comparing file hashes against a database of known releases.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datawire/wfscan/pkg/cliutil"
)

var argparser = &cobra.Command{ //nolint:gochecknoglobals
	Use:   "wfscan URL APPNAME [flags]",
	Short: "Fingerprint a web application (or guess which are installed) over HTTP",

	SilenceErrors: true, // main() will handle this after .ExecuteContext() returns
	SilenceUsage:  true, // our FlagErrorFunc will handle it
}

func init() {
	argparser.SetFlagErrorFunc(cliutil.FlagErrorFunc)
	argparser.SetHelpTemplate(cliutil.HelpTemplate)
}

func main() {
	ctx := context.Background()

	if err := argparser.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(argparser.ErrOrStderr(), "%s: error: %v\n", argparser.CommandPath(), err)
		os.Exit(1)
	}
}
