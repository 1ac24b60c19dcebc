package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	listSince string
	listUntil string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored usage data",
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listSince, "since", "", "only list data since this date (YYYY-MM-DD)")
	listCmd.Flags().StringVar(&listUntil, "until", "", "only list data until this date (YYYY-MM-DD)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	var since, until time.Time
	if listSince != "" {
		if since, err = time.Parse("2006-01-02", listSince); err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}
	}
	if listUntil != "" {
		if until, err = time.Parse("2006-01-02", listUntil); err != nil {
			return fmt.Errorf("parsing --until: %w", err)
		}
	}

	records, err := db.ListUsage(cmd.Context(), since, until)
	if err != nil {
		return fmt.Errorf("listing usage: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No data found")
		return nil
	}

	fmt.Printf("%-12s %10s %8s %10s %s\n", "DATE", "USAGE", "UNIT", "COST", "PUBLISHED")
	for _, rec := range records {
		published := ""
		if rec.Published {
			published = "yes"
		}
		cost := ""
		if rec.Cost > 0 {
			cost = fmt.Sprintf("$%.2f", rec.Cost)
		}
		fmt.Printf("%-12s %10.2f %8s %10s %s\n", rec.DateKey(), rec.KWh, rec.Unit, cost, published)
	}
	fmt.Printf("%d records\n", len(records))
	return nil
}
