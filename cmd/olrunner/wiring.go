package main

import (
	"path/filepath"

	"github.com/cuemby/olrunner/pkg/config"
	"github.com/cuemby/olrunner/pkg/control"
	"github.com/cuemby/olrunner/pkg/health"
	"github.com/cuemby/olrunner/pkg/lifecycle"
	"github.com/cuemby/olrunner/pkg/manager"
	"github.com/cuemby/olrunner/pkg/mgmt"
	"github.com/cuemby/olrunner/pkg/shutdown"
)

// components are the collaborators built from one configuration
type components struct {
	cfg          *config.Config
	script       *control.ServerScript
	buildTool    *control.BuildTool
	endpointFile string
}

func newComponents(cfg *config.Config) (*components, error) {
	script, err := control.NewServerScript(control.ScriptConfig{
		InstallDir: cfg.Server.InstallDir,
		ServerName: cfg.Server.Name,
		Timeout:    cfg.Shutdown.ScriptTimeout,
		LogDir:     cfg.BuildLogDir(),
	})
	if err != nil {
		return nil, err
	}

	tool, err := control.NewBuildTool(control.BuildToolConfig{
		Command:     cfg.BuildTool.Command,
		SourceDir:   cfg.Server.SourceDir,
		LogDir:      cfg.BuildLogDir(),
		StartGoals:  cfg.BuildTool.StartGoals,
		StopGoals:   cfg.BuildTool.StopGoals,
		StopTimeout: cfg.BuildTool.StopTimeout,
	})
	if err != nil {
		return nil, err
	}

	return &components{
		cfg:          cfg,
		script:       script,
		buildTool:    tool,
		endpointFile: mgmt.EndpointFilePath(cfg.Server.OutputDir),
	}, nil
}

// managementConfig returns the client settings without an endpoint
func (c *components) managementConfig() mgmt.Config {
	return mgmt.Config{
		Username:   c.cfg.Credentials.Username,
		Password:   c.cfg.Credentials.Password,
		Timeout:    c.cfg.Management.Timeout,
		MaxRetries: c.cfg.Management.MaxRetries,
		RetryDelay: c.cfg.Management.RetryDelay,
	}
}

func (c *components) manager() (*manager.Manager, error) {
	return manager.NewFromEndpointFile(c.endpointFile, c.managementConfig())
}

func (c *components) primaryTier() shutdown.Tier {
	return shutdown.NewTier("server script", c.script.Stop)
}

func (c *components) fallbackTier() shutdown.Tier {
	return shutdown.NewTier("build tool", c.buildTool.Stop)
}

// probes returns the liveness probes that do not need the management client
func (c *components) probes() []health.Checker {
	probes := []health.Checker{health.NewScriptChecker(c.script)}
	if c.cfg.Probes.TCPAddress != "" {
		probes = append(probes, health.NewTCPChecker(c.cfg.Probes.TCPAddress))
	}
	if c.cfg.Probes.HTTPURL != "" {
		probes = append(probes, health.NewHTTPChecker(c.cfg.Probes.HTTPURL))
	}
	return probes
}

func (c *components) lifecycleConfig() lifecycle.Config {
	return lifecycle.Config{
		ServerName:      c.cfg.Server.Name,
		SourceDir:       filepath.Clean(c.cfg.Server.SourceDir),
		EndpointFile:    c.endpointFile,
		Management:      c.managementConfig(),
		GracePeriod:     c.cfg.Startup.GracePeriod,
		ReadinessWindow: c.cfg.Startup.ReadinessWindow,
		PollInterval:    c.cfg.Startup.PollInterval,
		ExitGrace:       c.cfg.Shutdown.ExitGrace,
		PrimaryStop:     c.primaryTier(),
		FallbackStop:    c.fallbackTier(),
		ConfirmTimeout:  c.cfg.Shutdown.ConfirmTimeout,
		ProbeInterval:   c.cfg.Shutdown.ProbeInterval,
		Probes:          c.probes(),
	}
}

// standaloneStrategy stops a server this process did not start. The
// management probe is only added when the endpoint file can be read.
func (c *components) standaloneStrategy() *shutdown.Strategy {
	probes := c.probes()
	if client, err := c.client(); err == nil {
		probes = append(probes, health.NewManagementChecker(client))
	}

	strategy := shutdown.NewStrategy(c.primaryTier(), c.fallbackTier(), health.Any(probes...))
	strategy.ConfirmTimeout = c.cfg.Shutdown.ConfirmTimeout
	strategy.ProbeInterval = c.cfg.Shutdown.ProbeInterval
	return strategy
}

func (c *components) client() (*mgmt.Client, error) {
	endpoint, err := mgmt.ReadEndpointFile(c.endpointFile)
	if err != nil {
		return nil, err
	}
	cfg := c.managementConfig()
	cfg.Endpoint = endpoint.String()
	return mgmt.NewClient(cfg)
}
