package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/cuemby/olrunner/pkg/events"
	"github.com/cuemby/olrunner/pkg/lifecycle"
	"github.com/cuemby/olrunner/pkg/metrics"
	"github.com/cuemby/olrunner/pkg/storage"
	"github.com/cuemby/olrunner/pkg/types"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the server and keep it running until interrupted",
	Long: `Start the server through the build tool, wait for it to become ready
and keep it running. On Ctrl+C (or SIGTERM) the server is stopped with the
server script, falling back to the build tool.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
			cfg.MetricsAddr = addr
		}

		comps, err := newComponents(cfg)
		if err != nil {
			return fmt.Errorf("failed to configure server control: %v", err)
		}
		if _, err := comps.buildTool.LookPath(); err != nil {
			return fmt.Errorf("build tool not found: %v", err)
		}

		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open session store: %v", err)
		}
		defer store.Close()

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()

		failed := make(chan struct{}, 1)
		sub := broker.Subscribe()
		defer broker.Unsubscribe(sub)
		go printEvents(sub, failed)

		orch, err := lifecycle.New(
			comps.lifecycleConfig(),
			&lifecycle.BuildToolLauncher{Tool: comps.buildTool},
			lifecycle.WithEvents(broker),
			lifecycle.WithStore(store),
		)
		if err != nil {
			return fmt.Errorf("failed to create orchestrator: %v", err)
		}

		var metricsServer *http.Server
		if cfg.MetricsAddr != "" {
			metricsServer = &http.Server{
				Addr:              cfg.MetricsAddr,
				Handler:           metrics.NewServeMux(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					fmt.Fprintf(os.Stderr, "Metrics server error: %v\n", err)
				}
			}()
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = metricsServer.Shutdown(ctx)
			}()
		}

		fmt.Println("Starting Open Liberty server...")
		fmt.Printf("  Server: %s\n", cfg.Server.Name)
		fmt.Printf("  Source Directory: %s\n", cfg.Server.SourceDir)
		fmt.Printf("  Session: %s\n", orch.SessionID())
		if cfg.MetricsAddr != "" {
			fmt.Printf("  Metrics: http://%s/metrics\n", cfg.MetricsAddr)
		}
		fmt.Println()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		startCtx, cancelStart := context.WithCancel(context.Background())
		go func() {
			select {
			case <-sigCh:
				cancelStart()
			case <-startCtx.Done():
			}
		}()
		err = orch.Start(startCtx)
		cancelStart()
		if err != nil {
			return fmt.Errorf("server did not start: %v", err)
		}

		fmt.Println("✓ Server is ready. Press Ctrl+C to stop.")
		if report, err := orch.Status(context.Background()); err == nil {
			printServerInfo(report.Server)
			printApplications(report.Applications)
		}

		collector := metrics.NewCollector(func(ctx context.Context) ([]types.ApplicationStatus, error) {
			m, err := orch.Manager()
			if err != nil {
				return nil, err
			}
			return m.ApplicationStatuses(ctx)
		}, metrics.DefaultCollectInterval)
		collector.Start()

		select {
		case <-sigCh:
			fmt.Println("\nStopping server...")
		case <-failed:
			collector.Stop()
			return fmt.Errorf("server failed: %s", orch.Session().LastError)
		}

		collector.Stop()
		outcome, err := orch.Stop(context.Background())
		if err != nil {
			return fmt.Errorf("failed to stop server: %v", err)
		}

		fmt.Printf("✓ Server stopped by the %s tier\n", outcome.StoppedBy())
		return nil
	},
}

func init() {
	runCmd.Flags().String("metrics-addr", "", "Address for /metrics, /health and /ready (overrides metrics_addr)")
}

// printEvents prints lifecycle events and signals failed once the
// orchestrator enters Failed
func printEvents(sub events.Subscriber, failed chan<- struct{}) {
	for event := range sub {
		line := fmt.Sprintf("[%s] %s: %s", event.Timestamp.Format("15:04:05"), event.Type, event.Message)
		if len(event.Metadata) > 0 && event.Type != events.EventStateChanged {
			keys := make([]string, 0, len(event.Metadata))
			for k := range event.Metadata {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			pairs := make([]string, 0, len(keys))
			for _, k := range keys {
				pairs = append(pairs, k+"="+event.Metadata[k])
			}
			line += " (" + strings.Join(pairs, ", ") + ")"
		}
		fmt.Println(line)

		if event.Type == events.EventStateChanged && event.Metadata["to"] == string(types.StateFailed) {
			select {
			case failed <- struct{}{}:
			default:
			}
		}
	}
}
