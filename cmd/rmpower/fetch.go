package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var fetchForecast bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch usage data once",
	Long: `Runs a single fetch against the portal: opens a session on the remote
automation server, logs in, extracts the usage history, and stores it in the
local SQLite database.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchForecast, "forecast", false, "also fetch the billing-cycle forecast")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Fetch started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := requireCredentials(cfg); err != nil {
		return err
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	client := newFetchClient(cfg)
	ctx := cmd.Context()

	result, err := client.FetchUsage(ctx, cfg.PortalCredentials())
	if err != nil {
		return fmt.Errorf("fetching usage: %w", err)
	}

	if err := db.Store(ctx, result.Records); err != nil {
		return fmt.Errorf("storing usage: %w", err)
	}

	first := result.Records[0]
	last := result.Records[len(result.Records)-1]
	fmt.Printf("✓ Stored %d records (%s .. %s)\n", len(result.Records), first.DateKey(), last.DateKey())
	if result.AccountID != "" {
		fmt.Printf("  Account: %s\n", result.AccountID)
	}

	if fetchForecast {
		forecast, err := client.FetchForecast(ctx, cfg.PortalCredentials())
		if err != nil {
			return fmt.Errorf("fetching forecast: %w", err)
		}
		fmt.Printf("✓ Billing cycle %s .. %s, projected cost $%.0f ($%.0f - $%.0f)\n",
			forecast.CycleStart.Format("2006-01-02"),
			forecast.CycleEnd.Format("2006-01-02"),
			forecast.Cost, forecast.CostLow, forecast.CostHigh)
	}

	return nil
}
