// Command trialctl operates on trialrun kill-switch state from outside the
// process: listing, disabling, and re-enabling experiments and trials in the
// file- or Redis-backed stores that running dispatchers read.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "trialctl",
		Short:         "Operate trialrun experiment kill switches",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(buildKillswitchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
