package main

import (
	"context"
	"fmt"

	"github.com/cuemby/olrunner/pkg/control"
	"github.com/spf13/cobra"
)

var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Run server script commands against the server",
}

// scriptCommand builds a subcommand that runs one server script action
func scriptCommand(use, short string, action func(ctx context.Context, s *control.ServerScript) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			comps, err := newComponents(cfg)
			if err != nil {
				return fmt.Errorf("failed to configure server control: %v", err)
			}

			out, err := action(context.Background(), comps.script)
			if err != nil {
				return fmt.Errorf("server %s failed: %v", use, err)
			}
			if out != "" {
				fmt.Println(out)
			}
			return nil
		},
	}
}

func init() {
	scriptCmd.AddCommand(scriptCommand("version", "Print the server runtime version",
		func(ctx context.Context, s *control.ServerScript) (string, error) { return s.Version(ctx) }))
	scriptCmd.AddCommand(scriptCommand("dump", "Write a server dump",
		func(ctx context.Context, s *control.ServerScript) (string, error) { return s.Dump(ctx) }))
	scriptCmd.AddCommand(scriptCommand("javadump", "Write a Java thread dump",
		func(ctx context.Context, s *control.ServerScript) (string, error) { return s.JavaDump(ctx) }))
	scriptCmd.AddCommand(scriptCommand("pause", "Pause inbound work on the server",
		func(ctx context.Context, s *control.ServerScript) (string, error) { return "", s.Pause(ctx) }))
	scriptCmd.AddCommand(scriptCommand("resume", "Resume inbound work on the server",
		func(ctx context.Context, s *control.ServerScript) (string, error) { return "", s.Resume(ctx) }))
	scriptCmd.AddCommand(scriptCommand("start", "Start the server in the background with the server script",
		func(ctx context.Context, s *control.ServerScript) (string, error) { return "", s.Start(ctx) }))

	rootCmd.AddCommand(scriptCmd)
}
