package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"rmpower/internal/browser"
	"rmpower/internal/config"
	"rmpower/internal/database"
	"rmpower/internal/fetch"
)

var (
	cfgFile string
	dbPath  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "rmpower",
	Short: "Fetch electrical usage data from Rocky Mountain Power",
	Long: `rmpower collects electrical usage history from the Rocky Mountain Power
account portal by driving a browser on a remote automation server. Fetched
data is stored in a local SQLite database and can be forwarded to Home
Assistant.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (default is ./data.db)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// getDBPath returns the database file path (local directory)
func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	return "data.db"
}

// loadConfig loads the configuration file
func loadConfig() (*config.Config, error) {
	return config.Load(getConfigPath())
}

// openDB opens the database connection
func openDB() (*database.DB, error) {
	path := getDBPath()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	return database.New(path)
}

// newFetchClient builds the fetch client from config
func newFetchClient(cfg *config.Config) *fetch.Client {
	transport := browser.NewRemote(browser.Options{})
	return fetch.New(cfg.Endpoint(), transport, fetch.Options{
		Timeout:     cfg.GetFetchTimeout(),
		WaitTimeout: cfg.GetWaitTimeout(),
		Extract:     cfg.ExtractOptions(),
	})
}

// requireCredentials validates the configured login before a fetch starts
func requireCredentials(cfg *config.Config) error {
	creds := cfg.PortalCredentials()
	if creds.Username == "" || creds.Password == "" {
		return fmt.Errorf("no credentials configured, add username/password to %s", getConfigPath())
	}
	return nil
}
