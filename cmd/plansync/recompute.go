package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Force the service to recompute the plan from scratch",
	Run: func(cmd *cobra.Command, args []string) {
		app, err := buildApp(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer app.close()

		plan, err := app.ctrl.Recompute(cmd.Context())
		if err != nil {
			reportFetchError(app, err)
			os.Exit(1)
		}

		printPlan(plan, app.cache.LastUpdated())
		if app.ctrl.HasSignificantChanges() {
			printChanges(app.ctrl.LastChanges())
		}
	},
}

func init() {
	rootCmd.AddCommand(recomputeCmd)
}
