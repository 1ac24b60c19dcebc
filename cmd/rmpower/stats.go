package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show summary statistics for stored usage data",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	stats, err := db.GetStats(cmd.Context())
	if err != nil {
		return fmt.Errorf("querying stats: %w", err)
	}

	if stats.Count == 0 {
		fmt.Println("No data stored")
		return nil
	}

	days := stats.LastDate.Sub(stats.FirstDate).Hours()/24 + 1
	fmt.Printf("Records:    %d\n", stats.Count)
	fmt.Printf("Date range: %s .. %s (%.0f days)\n",
		stats.FirstDate.Format("2006-01-02"), stats.LastDate.Format("2006-01-02"), days)
	fmt.Printf("Total:      %.1f kWh\n", stats.TotalKWh)
	fmt.Printf("Daily avg:  %.1f kWh\n", stats.TotalKWh/float64(stats.Count))
	if stats.TotalCost > 0 {
		fmt.Printf("Total cost: $%.2f\n", stats.TotalCost)
	}
	return nil
}
