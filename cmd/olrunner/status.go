package main

import (
	"context"
	"fmt"

	"github.com/cuemby/olrunner/pkg/lifecycle"
	"github.com/cuemby/olrunner/pkg/types"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the server",
	Long: `Show whether the server is running according to its server script,
and when the management endpoint answers, its information and the state of
its applications.`,
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
		fmt.Printf("Server: %s\n", cfg.Server.Name)

		running, err := comps.script.IsRunning(ctx)
		switch {
		case err != nil:
			fmt.Printf("  Script status: unknown (%v)\n", err)
		case running:
			fmt.Println("  Script status: running")
		default:
			fmt.Println("  Script status: not running")
		}

		if lifecycle.HasRunningMarker(cfg.Server.SourceDir) {
			fmt.Printf("  Running marker: %s\n", lifecycle.RunningMarkerPath(cfg.Server.SourceDir))
		}

		m, err := comps.manager()
		if err != nil {
			fmt.Printf("  Management: unavailable (%v)\n", err)
			return nil
		}
		if !m.IsConnectable(ctx) {
			fmt.Println("  Management: not reachable")
			return nil
		}

		info, err := m.ServerInfo(ctx)
		if err != nil {
			return fmt.Errorf("failed to read server info: %v", err)
		}
		printServerInfo(info)

		apps, err := m.ApplicationStatuses(ctx)
		if err != nil {
			return fmt.Errorf("failed to list applications: %v", err)
		}
		printApplications(apps)
		return nil
	},
}

func printServerInfo(info types.ServerInfo) {
	fmt.Printf("  Name: %s\n", info.ServerName)
	fmt.Printf("  Host: %s\n", info.DefaultHostname)
	fmt.Printf("  Liberty: %s\n", info.PlatformVersion)
	fmt.Printf("  Java: %s (spec %s)\n", info.JavaRuntimeVersion, info.JavaSpecVersion)
	fmt.Printf("  Install Directory: %s\n", info.InstallDirectory)
	fmt.Printf("  User Directory: %s\n", info.UserDirectory)
}

func printApplications(apps []types.ApplicationStatus) {
	if len(apps) == 0 {
		fmt.Println("  Applications: none")
		return
	}
	fmt.Println("  Applications:")
	for _, app := range apps {
		fmt.Printf("    %-30s %s\n", app.ApplicationName, app.State)
	}
}
