package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"rmpower/internal/fetch"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Verify the configured credentials against the portal",
	Long: `Runs only the sign-in leg of a fetch and reports how the portal
answered. Use this after changing credentials or when the poller stops with
an authentication failure.`,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := requireCredentials(cfg); err != nil {
		return err
	}

	client := newFetchClient(cfg)
	err = client.VerifyCredentials(cmd.Context(), cfg.PortalCredentials())
	if err == nil {
		fmt.Println("✓ Login succeeded")
		return nil
	}

	var fe *fetch.Error
	if errors.As(err, &fe) {
		switch fe.Kind {
		case fetch.KindInvalidCredentials:
			fmt.Println("✗ The portal rejected the credentials")
		case fetch.KindMfaRequired:
			fmt.Println("✗ The account requires a verification challenge; disable MFA or use a different account")
		case fetch.KindTransport:
			fmt.Println("✗ Could not reach the browser automation server")
		default:
			fmt.Printf("✗ Login failed: %s\n", fe.Kind)
		}
	}
	return err
}
