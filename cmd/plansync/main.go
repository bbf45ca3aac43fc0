package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kcalhq/plansync/internal/api"
	"github.com/kcalhq/plansync/internal/cache"
	"github.com/kcalhq/plansync/internal/config"
	"github.com/kcalhq/plansync/internal/diff"
	"github.com/kcalhq/plansync/internal/store"
	psync "github.com/kcalhq/plansync/internal/sync"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "plansync",
	Short: "Cache and synchronize your nutrition plan",
	Long: `plansync keeps a local, durable copy of the nutrition plan computed by
the remote service, serves it instantly while fresh, and refreshes it
in the background when it goes stale.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default "+config.DefaultPath()+")")
}

// app bundles everything a subcommand needs. Always defer app.close().
type app struct {
	cfg   *config.Config
	store store.Store
	cache *cache.Cache
	ctrl  *psync.Controller
}

func (a *app) close() {
	if a.ctrl != nil {
		a.ctrl.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "sqlite":
		return store.NewSQLiteStore(filepath.Join(cfg.StorePath, "plans.db"))
	default:
		return store.NewFileStore(cfg.StorePath)
	}
}

// buildApp wires config, store, cache, client, and controller, warming
// the cache from disk so commands see persisted state.
func buildApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	ca := cache.New(st, cfg.UserID, cache.Options{
		TTL:           cfg.TTL.Std(),
		SoftThreshold: cfg.SoftThreshold.Std(),
	})
	if err := ca.Load(cmd.Context()); err != nil {
		st.Close()
		return nil, err
	}

	clientOpts := []api.Option{api.WithTimeout(cfg.HTTPTimeout.Std())}
	if cfg.MinAPIVersion != "" {
		clientOpts = append(clientOpts, api.WithMinAPIVersion(cfg.MinAPIVersion))
	}
	client := api.New(cfg.BaseURL, cfg.Token, clientOpts...)

	ctrl := psync.New(client, ca, psync.Options{
		Detector: diff.Detector{
			CalorieDelta: cfg.CalorieDelta,
			ProteinDelta: cfg.ProteinDelta,
		},
	})

	return &app{cfg: cfg, store: st, cache: ca, ctrl: ctrl}, nil
}

func formatAge(since time.Time) string {
	if since.IsZero() {
		return "never"
	}
	return time.Since(since).Round(time.Second).String() + " ago"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
