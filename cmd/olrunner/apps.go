package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "Manage the server's applications",
}

var appsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List applications and their states",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		comps, err := newComponents(cfg)
		if err != nil {
			return fmt.Errorf("failed to configure server control: %v", err)
		}
		m, err := comps.manager()
		if err != nil {
			return fmt.Errorf("failed to connect to server: %v", err)
		}

		apps, err := m.ApplicationStatuses(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list applications: %v", err)
		}
		printApplications(apps)
		return nil
	},
}

var appsRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart every application",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		comps, err := newComponents(cfg)
		if err != nil {
			return fmt.Errorf("failed to configure server control: %v", err)
		}
		m, err := comps.manager()
		if err != nil {
			return fmt.Errorf("failed to connect to server: %v", err)
		}

		restarted, err := m.RestartAllApplications(context.Background())
		fmt.Printf("Restarted %d application(s)\n", restarted)
		if err != nil {
			return fmt.Errorf("some applications failed to restart: %v", err)
		}
		return nil
	},
}

func init() {
	appsCmd.AddCommand(appsListCmd)
	appsCmd.AddCommand(appsRestartCmd)
}
