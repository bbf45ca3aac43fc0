package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kcalhq/plansync/internal/config"
	"github.com/kcalhq/plansync/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check plansync configuration and environment health",
	Long: `Run health checks to diagnose common configuration issues.

This command checks:
- Config file validity and required fields
- Auth token presence
- Persistent store accessibility and snapshot age
- Compute service reachability

Exit codes:
  0 - All checks passed
  1 - Warnings only
  2 - Failures that prevent plansync from working`,
	Run: func(cmd *cobra.Command, args []string) {
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		fmt.Printf("Running plansync health checks...\n\n")

		var warnings, failures int

		// Check 1: configuration
		fmt.Printf("%s Configuration\n", cyan("→"))
		cfg, err := loadConfig()
		if err != nil {
			fmt.Printf("  %s %v\n", red("✗"), err)
			os.Exit(2)
		}
		fmt.Printf("  %s config valid (backend: %s)\n", green("✓"), cfg.StoreBackend)

		// Check 2: auth token
		fmt.Printf("%s Auth token\n", cyan("→"))
		if cfg.Token == "" {
			fmt.Printf("  %s no token configured; requests will be rejected\n", yellow("⚠"))
			warnings++
		} else {
			fmt.Printf("  %s token present\n", green("✓"))
		}

		// Check 3: persistent store
		fmt.Printf("%s Persistent store\n", cyan("→"))
		st, err := openStore(cfg)
		if err != nil {
			fmt.Printf("  %s cannot open store: %v\n", red("✗"), err)
			failures++
		} else {
			defer st.Close()
			rec, err := st.Load(cmd.Context(), cfg.UserID)
			switch {
			case errors.Is(err, store.ErrNotFound):
				fmt.Printf("  %s store empty (no plan fetched yet)\n", green("✓"))
			case err != nil:
				fmt.Printf("  %s stored snapshot unreadable: %v\n", red("✗"), err)
				failures++
			default:
				age := time.Since(rec.CapturedAt).Round(time.Second)
				if age > cfg.TTL.Std() {
					fmt.Printf("  %s snapshot present but expired (%s old)\n", yellow("⚠"), age)
					warnings++
				} else {
					fmt.Printf("  %s snapshot present, %s old\n", green("✓"), age)
				}
			}
		}

		// Check 4: service reachability
		fmt.Printf("%s Compute service\n", cyan("→"))
		if err := checkReachable(cmd.Context(), cfg); err != nil {
			fmt.Printf("  %s %s unreachable: %v\n", red("✗"), cfg.BaseURL, err)
			failures++
		} else {
			fmt.Printf("  %s %s reachable\n", green("✓"), cfg.BaseURL)
		}

		fmt.Println()
		switch {
		case failures > 0:
			fmt.Printf("%s %d check(s) failed\n", red("✗"), failures)
			os.Exit(2)
		case warnings > 0:
			fmt.Printf("%s all checks passed with %d warning(s)\n", yellow("⚠"), warnings)
			os.Exit(1)
		default:
			fmt.Printf("%s all checks passed\n", green("✓"))
		}
	},
}

// checkReachable confirms something HTTP-shaped answers at the base URL.
// Any status code counts: the point is connectivity, not authorization.
func checkReachable(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
