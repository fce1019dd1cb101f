package main

import (
	"github.com/aretw0/tickler"
	"github.com/aretw0/tickler/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of tickler",
	Run: func(cmd *cobra.Command, args []string) {
		tui.PrintBanner(cmd.OutOrStdout(), "tickler version "+tickler.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
