package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rmpower/internal/database"
	"rmpower/internal/poller"
	"rmpower/internal/publisher"
	"rmpower/pkg/models"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Fetch usage data on a recurring schedule",
	Long: `Runs the polling loop: fetches usage on the configured interval, stores
it in the local database, and pushes new readings to Home Assistant when
publishing is enabled. Stops on failures that need operator attention
(rejected credentials, MFA challenge).`,
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)
}

// pollSink stores fetched records and forwards them to the publisher
type pollSink struct {
	db  *database.DB
	pub *publisher.Publisher
}

func (s *pollSink) Store(ctx context.Context, records []models.UsageRecord) error {
	if err := s.db.Store(ctx, records); err != nil {
		return err
	}
	if s.pub == nil {
		return nil
	}

	unpublished, err := s.db.UnpublishedUsage(ctx, 0)
	if err != nil {
		return err
	}
	for _, rec := range unpublished {
		if err := s.pub.Publish(rec.UsageRecord); err != nil {
			return fmt.Errorf("publishing %s: %w", rec.DateKey(), err)
		}
		if err := s.db.MarkPublished(ctx, rec.ID); err != nil {
			return err
		}
	}
	return nil
}

func runPoll(cmd *cobra.Command, args []string) error {
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

	sink := &pollSink{db: db}
	if cfg.HomeAssistant.Enabled || cfg.MQTT.Enabled {
		pub, err := publisher.New(cfg.MQTT, cfg.HomeAssistant)
		if err != nil {
			return fmt.Errorf("creating publisher: %w", err)
		}
		defer pub.Close()
		sink.pub = pub
	}

	p := poller.New(newFetchClient(cfg), cfg.PortalCredentials(), sink, poller.Options{
		Interval:     cfg.GetPollInterval(),
		MaxRetries:   cfg.GetMaxRetries(),
		RetryBackoff: cfg.GetRetryBackoff(),
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Polling every %s, Ctrl-C to stop\n", cfg.GetPollInterval())
	if err := p.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("polling stopped: %w", err)
	}
	return nil
}
