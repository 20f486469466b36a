package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	rollcmd "github.com/rollkit/sequencer-relayer/pkg/cmd"
	rollconf "github.com/rollkit/sequencer-relayer/pkg/config"
)

// RootCmd is the root command of the relayer. Without a subcommand it runs
// the relayer.
var RootCmd = &cobra.Command{
	Use:   rollconf.AppName,
	Short: "Relays finalized sequencer blocks to a data availability layer.",
	Long: `
sequencer-relayer subscribes to the finalized blocks of a sequencer chain, checks their
commit signatures and action tree roots, and posts them to the DA layer as a sequencer
namespace header blob plus one blob per rollup. Progress is kept in a cursor file so a
restart never skips or reorders a height.
If the --home flag is not specified, the relayer uses "~/.sequencer-relayer" for its
config and data.
`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          rollcmd.RunRelayer,
}

func main() {
	if rollcmd.Version == "" {
		rollcmd.Version = rollconf.Version
	}

	rollconf.AddGlobalFlags(RootCmd, rollconf.AppName)
	rollconf.AddFlags(RootCmd)

	RootCmd.AddCommand(
		rollcmd.NewRunCmd(),
		rollcmd.NewPrintCursorCmd(),
		rollcmd.NewResetCursorCmd(),
		rollcmd.NewInitCmd(),
		rollcmd.NewUnsafeCleanCmd(),
		rollcmd.NewVersionCmd(),
	)

	if err := RootCmd.Execute(); err != nil {
		// Print to stderr and exit with the code of the failure class
		fmt.Fprintln(os.Stderr, err)
		os.Exit(rollcmd.ExitCode(err))
	}
}
