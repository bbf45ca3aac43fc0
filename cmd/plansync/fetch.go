package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kcalhq/plansync/internal/diff"
	"github.com/kcalhq/plansync/internal/types"
)

var fetchForce bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Show the current plan, fetching it if the cache is cold",
	Long: `Fetch returns the cached plan immediately when it is fresh, otherwise
asks the compute service for a new one. Use --force to make the service
recompute from scratch regardless of any caching on either side.`,
	Run: func(cmd *cobra.Command, args []string) {
		app, err := buildApp(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer app.close()

		plan, err := app.ctrl.FetchForce(cmd.Context(), fetchForce)
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
	fetchCmd.Flags().BoolVar(&fetchForce, "force", false, "ask the service to recompute from scratch")
	rootCmd.AddCommand(fetchCmd)
}

func printPlan(plan *types.Plan, lastUpdated time.Time) {
	renderPlan(os.Stdout, plan, lastUpdated)
}

func renderPlan(w io.Writer, plan *types.Plan, lastUpdated time.Time) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(w, "\n%s\n\n", cyan("=== Daily Targets ==="))
	fmt.Fprintf(w, "  Calories:  %.0f kcal\n", plan.Targets.CalorieTarget)
	fmt.Fprintf(w, "  Protein:   %.0f g\n", plan.Targets.ProteinTarget)
	fmt.Fprintf(w, "  Water:     %.0f ml\n", plan.Targets.WaterTarget)
	fmt.Fprintf(w, "  %s\n", gray(fmt.Sprintf("BMR %.0f / TDEE %.0f kcal, %+.1f kg/week", plan.Targets.BMR, plan.Targets.TDEE, plan.Targets.WeeklyRate)))
	if proj := plan.Targets.Projection; proj != nil && proj.ProjectedEndDate != nil {
		fmt.Fprintf(w, "  %s\n", gray(fmt.Sprintf("projected completion %s (~%d weeks)", proj.ProjectedEndDate.Format("2006-01-02"), proj.EstimatedWeeks)))
	}
	if !lastUpdated.IsZero() {
		fmt.Fprintf(w, "  %s\n", gray("updated "+formatAge(lastUpdated)))
	}
	fmt.Fprintln(w)
}

func printChanges(changes *diff.Summary) {
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Printf("%s %s\n\n", yellow("Targets changed:"), changes.Describe())
}

// reportFetchError renders the failure per its kind: retryable errors get
// a retry hint, terminal ones get guidance, and a preserved cached plan
// is still shown so the user is never left with nothing.
func reportFetchError(app *app, err error) {
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	pe := types.AsPlanError(err)
	fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), pe)

	switch {
	case pe.Retryable() && pe.RetryAfter != nil:
		fmt.Fprintf(os.Stderr, "%s\n", yellow(fmt.Sprintf("Try again in %s.", pe.RetryAfter.Round(time.Second))))
	case pe.Retryable():
		fmt.Fprintf(os.Stderr, "%s\n", yellow("Try again in a moment."))
	default:
		if g := pe.Guidance(); g != "" {
			fmt.Fprintf(os.Stderr, "%s\n", yellow(g))
		}
	}

	if snap := app.ctrl.Snapshot(); snap.Plan != nil {
		fmt.Fprintln(os.Stderr, "Showing the last good plan.")
		printPlan(snap.Plan, snap.LastUpdated)
	}
}
