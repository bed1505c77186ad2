package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running server",
	Long: `Stop a running server with the server script, falling back to the
build tool when the server is still alive afterwards.

With --framework the OSGi framework is shut down over the management
endpoint instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		comps, err := newComponents(cfg)
		if err != nil {
			return fmt.Errorf("failed to configure server control: %v", err)
		}

		ctx := context.Background()
		if framework, _ := cmd.Flags().GetBool("framework"); framework {
			m, err := comps.manager()
			if err != nil {
				return fmt.Errorf("failed to connect to server: %v", err)
			}
			if err := m.StopServer(ctx); err != nil {
				return fmt.Errorf("failed to shut down framework: %v", err)
			}
			fmt.Println("✓ Framework shutdown requested")
			return nil
		}

		fmt.Printf("Stopping server %s...\n", cfg.Server.Name)
		outcome, err := comps.standaloneStrategy().Shutdown(ctx)
		if err != nil {
			return err
		}

		for _, a := range outcome.Attempts {
			status := "stopped"
			if a.StillRunning {
				status = "still running"
			}
			fmt.Printf("  %-8s %-14s %s (%s)\n", a.Level, a.Tier, status, a.Duration.Round(time.Millisecond))
		}
		fmt.Printf("✓ Server stopped by the %s tier\n", outcome.StoppedBy())
		return nil
	},
}

func init() {
	stopCmd.Flags().Bool("framework", false, "Shut down the OSGi framework over the management endpoint")
}
