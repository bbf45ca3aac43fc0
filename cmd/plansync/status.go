package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the cached plan and its freshness without touching the network",
	Run: func(cmd *cobra.Command, args []string) {
		app, err := buildApp(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer app.close()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Plan Cache Status ==="))

		entry := app.cache.Peek()
		if entry == nil {
			fmt.Printf("  %s\n\n", gray("No cached plan. Run 'plansync fetch'."))
			return
		}

		freshness := green("fresh")
		switch {
		case entry.Invalidated:
			freshness = yellow("invalidated")
		case !app.cache.IsFresh():
			freshness = yellow("expired")
		case app.cache.IsStale():
			freshness = yellow("fresh (refresh due)")
		}

		fmt.Printf("  User:      %s\n", app.cfg.UserID)
		fmt.Printf("  Plan:      %s (%s)\n", entry.Plan.ID, entry.Plan.Status)
		fmt.Printf("  Updated:   %s (%s)\n", formatAge(entry.CapturedAt), freshness)
		fmt.Printf("  Backend:   %s\n", app.cfg.StoreBackend)
		printPlan(entry.Plan, time.Time{})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
