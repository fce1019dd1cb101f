package main

import (
	"context"
	"os"

	"github.com/aretw0/tickler/internal/cli"
	"github.com/aretw0/tickler/internal/presentation/tui"
	"github.com/aretw0/tickler/pkg/domain"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [text...]",
	Short: "Process one piece of text",
	Long: `Runs the extraction pipeline once and prints a report.
The text is taken from --file, from the arguments, or from piped stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		jsonMode, _ := cmd.Flags().GetBool("json")

		text, err := cli.ReadInput(args, file, os.Stdin, cli.StdinIsTerminal())
		if err != nil {
			return err
		}

		cfg, app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer closeApp(app)

		input := domain.RawInput{Text: text}
		if err := input.Validate(cfg.MaxInputSize); err != nil {
			return err
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		result, runErr := app.Engine.Run(ctx, input)

		var render func(string) (string, error)
		if !jsonMode {
			render = tui.NewRenderer()
		}
		if err := cli.PrintRecord(cmd.OutOrStdout(), domain.NewRunRecord(input, result), jsonMode, render); err != nil {
			return err
		}

		if runErr != nil {
			if ctx.Signal() != nil {
				return context.Cause(ctx)
			}
			return runErr
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("file", "f", "", "Read the text from a file ('-' for stdin)")
	runCmd.Flags().Bool("json", false, "Print the run record as JSON")
}
