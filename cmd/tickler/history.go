package main

import (
	"fmt"

	"github.com/aretw0/tickler/internal/cli"
	"github.com/aretw0/tickler/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect stored runs",
	Long: `Reads the run history store. The memory store lives only as long as one
process, so this is mostly useful with history.store set to redis.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored run IDs",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp(app)

		ids, err := app.Store.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print one stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, _ := cmd.Flags().GetBool("json")

		_, app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp(app)

		rec, err := app.Store.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		var render func(string) (string, error)
		if !jsonMode {
			render = tui.NewRenderer()
		}
		return cli.PrintRecord(cmd.OutOrStdout(), rec, jsonMode, render)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd)
	historyShowCmd.Flags().Bool("json", false, "Print the run record as JSON")
}
