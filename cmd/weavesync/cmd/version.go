package cmd

import (
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jmcleod/weavesync/weave"
)

// Version is set at build time with -ldflags "-X ...cmd.Version=...".
var Version = "dev"

const banner = `
                              _____
 __      _____  __ ___   ____/ ____|_   _ _ __   ___
 \ \ /\ / / _ \/ _` + "`" + ` \ \ / / _ \___ \| | | | '_ \ / __|
  \ V  V /  __/ (_| |\ V /  __/___) | |_| | | | | (__
   \_/\_/ \___|\__,_| \_/ \___|____/ \__, |_| |_|\___|
                                      __/ |
                                     |___/
`

func printBanner(w io.Writer) {
	color.New(color.FgBlue).Fprint(w, banner)
	color.New(color.FgGreen).Fprintf(w, "  Firefox Sync client - Version %s (storage version %d)\n\n", Version, weave.StorageVersion)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		printBanner(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

