package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPluginConfigRelPath is where the build plugin writes its generated
// configuration, relative to the server source directory
const DefaultPluginConfigRelPath = "target/liberty-plugin-config.xml"

// Config is the complete olrunner configuration
type Config struct {
	Server      ServerConfig     `yaml:"server"`
	Credentials Credentials      `yaml:"credentials"`
	Startup     StartupConfig    `yaml:"startup"`
	Management  ManagementConfig `yaml:"management"`
	Shutdown    ShutdownConfig   `yaml:"shutdown"`
	BuildTool   BuildToolConfig  `yaml:"build_tool"`
	Probes      ProbesConfig     `yaml:"probes"`
	DataDir     string           `yaml:"data_dir"`
	MetricsAddr string           `yaml:"metrics_addr"`
	Log         LogConfig        `yaml:"log"`
}

// ServerConfig locates the server project and its runtime
type ServerConfig struct {
	SourceDir    string `yaml:"source_dir"`
	InstallDir   string `yaml:"install_dir"`
	Name         string `yaml:"name"`
	OutputDir    string `yaml:"output_dir"`
	PluginConfig string `yaml:"plugin_config"`
}

// Credentials for the management endpoint
type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// StartupConfig bounds the wait for readiness
type StartupConfig struct {
	GracePeriod     time.Duration `yaml:"grace_period"`
	ReadinessWindow time.Duration `yaml:"readiness_window"`
	PollInterval    time.Duration `yaml:"poll_interval"`
}

// ManagementConfig tunes the management client
type ManagementConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// ShutdownConfig tunes the tiered stop
type ShutdownConfig struct {
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
	ProbeInterval  time.Duration `yaml:"probe_interval"`
	ExitGrace      time.Duration `yaml:"exit_grace"`
	ScriptTimeout  time.Duration `yaml:"script_timeout"`
}

// BuildToolConfig describes the build tool used to run the server
type BuildToolConfig struct {
	Command     string        `yaml:"command"`
	StartGoals  []string      `yaml:"start_goals"`
	StopGoals   []string      `yaml:"stop_goals"`
	StopTimeout time.Duration `yaml:"stop_timeout"`
	LogDir      string        `yaml:"log_dir"`
}

// ProbesConfig adds optional liveness probes
type ProbesConfig struct {
	TCPAddress string `yaml:"tcp_address"`
	HTTPURL    string `yaml:"http_url"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	dataDir := ".olrunner"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".olrunner")
	}

	return &Config{
		Credentials: Credentials{},
		Startup: StartupConfig{
			GracePeriod:     30 * time.Second,
			ReadinessWindow: 60 * time.Second,
			PollInterval:    time.Second,
		},
		Management: ManagementConfig{
			Timeout:    5 * time.Second,
			MaxRetries: 3,
			RetryDelay: time.Second,
		},
		Shutdown: ShutdownConfig{
			ConfirmTimeout: 30 * time.Second,
			ProbeInterval:  time.Second,
			ExitGrace:      10 * time.Second,
			ScriptTimeout:  100 * time.Second,
		},
		BuildTool: BuildToolConfig{
			Command:     "mvn",
			StartGoals:  []string{"liberty:run"},
			StopGoals:   []string{"liberty:stop"},
			StopTimeout: 2 * time.Minute,
		},
		DataDir: dataDir,
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// PluginConfigPath returns the plugin configuration file to read facts from
func (c *Config) PluginConfigPath() string {
	if c.Server.PluginConfig != "" {
		return c.Server.PluginConfig
	}
	if c.Server.SourceDir == "" {
		return ""
	}
	return filepath.Join(c.Server.SourceDir, filepath.FromSlash(DefaultPluginConfigRelPath))
}

// ResolvePluginFacts fills install dir, server name and output dir from the
// plugin configuration when they are not set explicitly. A missing plugin
// file is not an error; Validate reports whatever is still missing.
func (c *Config) ResolvePluginFacts() error {
	path := c.PluginConfigPath()
	if path == "" {
		return nil
	}

	facts, err := LoadPluginFacts(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	if c.Server.InstallDir == "" {
		c.Server.InstallDir = facts.InstallDirectory
	}
	if c.Server.Name == "" {
		c.Server.Name = facts.ServerName
	}
	if c.Server.OutputDir == "" {
		c.Server.OutputDir = facts.ServerOutputDirectory
	}
	return nil
}

// BuildLogDir returns the directory for build tool and script logs
func (c *Config) BuildLogDir() string {
	if c.BuildTool.LogDir != "" {
		return c.BuildTool.LogDir
	}
	return filepath.Join(c.DataDir, "logs")
}

// Validate checks the configuration needed to run a server
func (c *Config) Validate() error {
	var errs []error

	if c.Server.SourceDir == "" {
		errs = append(errs, errors.New("server.source_dir is required"))
	}
	if c.Server.InstallDir == "" {
		errs = append(errs, errors.New("server.install_dir is required (or a readable plugin config)"))
	}
	if c.Server.Name == "" {
		errs = append(errs, errors.New("server.name is required (or a readable plugin config)"))
	}
	if c.Server.OutputDir == "" {
		errs = append(errs, errors.New("server.output_dir is required (or a readable plugin config)"))
	}
	if c.Credentials.Username == "" || c.Credentials.Password == "" {
		errs = append(errs, errors.New("credentials.username and credentials.password are required"))
	}
	if c.Management.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("management.max_retries must not be negative, got %d", c.Management.MaxRetries))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}

	durations := map[string]time.Duration{
		"startup.grace_period":     c.Startup.GracePeriod,
		"startup.readiness_window": c.Startup.ReadinessWindow,
		"startup.poll_interval":    c.Startup.PollInterval,
		"management.timeout":       c.Management.Timeout,
		"management.retry_delay":   c.Management.RetryDelay,
		"shutdown.confirm_timeout": c.Shutdown.ConfirmTimeout,
		"shutdown.probe_interval":  c.Shutdown.ProbeInterval,
		"shutdown.exit_grace":      c.Shutdown.ExitGrace,
		"shutdown.script_timeout":  c.Shutdown.ScriptTimeout,
		"build_tool.stop_timeout":  c.BuildTool.StopTimeout,
	}
	for _, name := range sortedKeys(durations) {
		if durations[name] < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}

	return errors.Join(errs...)
}
