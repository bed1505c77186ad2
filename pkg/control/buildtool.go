package control

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/cuemby/olrunner/pkg/log"
	"github.com/rs/zerolog"
)

// Defaults for the Maven Liberty plugin
const (
	DefaultBuildCommand = "mvn"
	DefaultStopTimeout  = 2 * time.Minute
)

var (
	DefaultStartGoals = []string{"liberty:run"}
	DefaultStopGoals  = []string{"liberty:stop"}
)

// BuildToolConfig describes how to run the build tool against the server project
type BuildToolConfig struct {
	Command    string
	SourceDir  string
	LogDir     string
	StartGoals []string
	StopGoals  []string

	// StopTimeout bounds the stop goals (default: 2m)
	StopTimeout  time.Duration
	LogFileLimit int
}

// BuildTool launches and stops the server through the project's build tool
type BuildTool struct {
	cfg    BuildToolConfig
	logger zerolog.Logger
}

// NewBuildTool validates cfg and fills in defaults
func NewBuildTool(cfg BuildToolConfig) (*BuildTool, error) {
	if cfg.SourceDir == "" {
		return nil, fmt.Errorf("server source directory is required")
	}
	if cfg.LogDir == "" {
		return nil, fmt.Errorf("build tool log directory is required")
	}
	if cfg.Command == "" {
		cfg.Command = DefaultBuildCommand
	}
	if len(cfg.StartGoals) == 0 {
		cfg.StartGoals = DefaultStartGoals
	}
	if len(cfg.StopGoals) == 0 {
		cfg.StopGoals = DefaultStopGoals
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if cfg.LogFileLimit <= 0 {
		cfg.LogFileLimit = DefaultLogFileLimit
	}

	return &BuildTool{
		cfg:    cfg,
		logger: log.WithComponent("build-tool"),
	}, nil
}

// Launch starts the start goals in the background with all output going to
// a new timestamped log file. It returns the running process and the log
// file path. The process outlives ctx; callers must terminate it.
func (b *BuildTool) Launch(ctx context.Context) (*Process, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	goals := strings.Join(b.cfg.StartGoals, " ")
	logFile, err := createLogFile(b.cfg.LogDir, goals, b.cfg.LogFileLimit)
	if err != nil {
		return nil, "", err
	}
	defer logFile.Close()

	// Lifetime is managed through Process, not ctx
	cmd := buildCommand(context.Background(), b.cfg.SourceDir, b.cfg.Command, b.cfg.StartGoals...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	proc, err := startProcess(cmd)
	if err != nil {
		return nil, "", err
	}

	b.logger.Info().
		Str("goals", goals).
		Int("pid", proc.Pid()).
		Str("log_file", logFile.Name()).
		Msg("Build tool launched")
	return proc, logFile.Name(), nil
}

// Stop runs the stop goals to completion
func (b *BuildTool) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.StopTimeout)
	defer cancel()

	goals := strings.Join(b.cfg.StopGoals, " ")
	logFile, err := createLogFile(b.cfg.LogDir, goals, b.cfg.LogFileLimit)
	if err != nil {
		return err
	}
	defer logFile.Close()

	cmd := buildCommand(ctx, b.cfg.SourceDir, b.cfg.Command, b.cfg.StopGoals...)
	_, err = runToCompletion(ctx, b.logger, b.cfg.Command+" "+goals, cmd, logFile)
	return err
}

// LookPath reports whether the build tool command can be found
func (b *BuildTool) LookPath() (string, error) {
	return exec.LookPath(b.cfg.Command)
}
