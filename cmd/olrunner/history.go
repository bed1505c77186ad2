package main

import (
	"fmt"
	"time"

	"github.com/cuemby/olrunner/pkg/config"
	"github.com/cuemby/olrunner/pkg/storage"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [SESSION_ID]",
	Short: "Show recorded runs",
	Long: `Show the runs recorded by "olrunner run", newest first. With a session
ID, show every state transition of that run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// History only needs the data directory, not a complete server config
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}

		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open session store: %v", err)
		}
		defer store.Close()

		if deleteID, _ := cmd.Flags().GetString("delete"); deleteID != "" {
			if err := store.DeleteSession(deleteID); err != nil {
				return fmt.Errorf("failed to delete session: %v", err)
			}
			fmt.Printf("✓ Session %s deleted\n", deleteID)
			return nil
		}

		if len(args) == 1 {
			session, err := store.GetSession(args[0])
			if err != nil {
				return fmt.Errorf("failed to read session: %v", err)
			}
			fmt.Printf("Session: %s\n", session.ID)
			fmt.Printf("  Server: %s\n", session.ServerName)
			fmt.Printf("  PID: %d\n", session.Pid)
			fmt.Printf("  Log File: %s\n", session.LogFile)
			fmt.Printf("  State: %s\n", session.State)
			if session.LastError != "" {
				fmt.Printf("  Last Error: %s\n", session.LastError)
			}
			fmt.Println("  Transitions:")
			for _, t := range session.Transitions {
				fmt.Printf("    %s  %-18s -> %s\n", t.At.Format(time.RFC3339), t.From, t.To)
			}
			return nil
		}

		sessions, err := store.ListSessions()
		if err != nil {
			return fmt.Errorf("failed to list sessions: %v", err)
		}
		if len(sessions) == 0 {
			fmt.Println("No runs recorded")
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		for i, s := range sessions {
			if limit > 0 && i >= limit {
				break
			}
			duration := "-"
			if s.EndedAt != nil {
				duration = s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
			}
			fmt.Printf("%s  %s  %-20s %-12s %s\n",
				s.ID, s.StartedAt.Format(time.RFC3339), s.ServerName, s.State, duration)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().String("delete", "", "Delete the recorded run with this session ID")
	historyCmd.Flags().Int("limit", 20, "Maximum number of runs to show (0 for all)")
}
