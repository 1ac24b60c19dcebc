package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"rmpower/internal/publisher"
)

var publishLimit int

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish stored usage data to Home Assistant",
	Long:  `Reads unpublished usage records from the database and pushes them to Home Assistant (and the MQTT broker when configured).`,
	RunE:  runPublish,
}

func init() {
	publishCmd.Flags().IntVar(&publishLimit, "limit", 0, "limit number of records to publish (0 = no limit)")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Publish started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if !cfg.HomeAssistant.Enabled && !cfg.MQTT.Enabled {
		return fmt.Errorf("no publishing destination enabled in config")
	}

	pub, err := publisher.New(cfg.MQTT, cfg.HomeAssistant)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	records, err := db.UnpublishedUsage(ctx, publishLimit)
	if err != nil {
		return fmt.Errorf("querying unpublished records: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("Nothing to publish")
		return nil
	}

	published := 0
	for _, rec := range records {
		if err := pub.Publish(rec.UsageRecord); err != nil {
			return fmt.Errorf("publishing %s (published %d of %d): %w",
				rec.DateKey(), published, len(records), err)
		}
		if err := db.MarkPublished(ctx, rec.ID); err != nil {
			return fmt.Errorf("marking %s published: %w", rec.DateKey(), err)
		}
		published++
	}

	fmt.Printf("✓ Published %d records\n", published)
	return nil
}
