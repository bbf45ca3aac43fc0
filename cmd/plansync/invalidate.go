package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var invalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Expire the cached plan so the next fetch goes to the network",
	Long: `Invalidate marks the cached plan as expired without deleting it, so
status can still display it while the next fetch replaces it. The mark
is persisted; the next fetch goes to the network even from a fresh
process.`,
	Run: func(cmd *cobra.Command, args []string) {
		app, err := buildApp(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer app.close()

		if err := app.ctrl.Invalidate(cmd.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Cached plan marked expired.")
	},
}

func init() {
	rootCmd.AddCommand(invalidateCmd)
}
