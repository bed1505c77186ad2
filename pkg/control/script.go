package control

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuemby/olrunner/pkg/log"
	"github.com/rs/zerolog"
)

// DefaultScriptTimeout bounds a single server script invocation
const DefaultScriptTimeout = 100 * time.Second

// ScriptConfig locates the server control script
type ScriptConfig struct {
	// InstallDir is the runtime installation directory containing bin/
	InstallDir string
	ServerName string

	// Timeout bounds each invocation (default: 100s)
	Timeout time.Duration

	// LogDir receives one log file per invocation when set
	LogDir       string
	LogFileLimit int
}

// ServerScript runs "server <command> <serverName>" from the installation's
// bin directory
type ServerScript struct {
	binDir     string
	serverName string
	timeout    time.Duration
	logDir     string
	logLimit   int
	logger     zerolog.Logger
}

// NewServerScript validates cfg and creates a script runner
func NewServerScript(cfg ScriptConfig) (*ServerScript, error) {
	if cfg.InstallDir == "" {
		return nil, fmt.Errorf("install directory is required")
	}
	if cfg.ServerName == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("script timeout must not be negative")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultScriptTimeout
	}
	limit := cfg.LogFileLimit
	if limit <= 0 {
		limit = DefaultLogFileLimit
	}
	logDir := cfg.LogDir
	if logDir != "" {
		logDir = filepath.Join(logDir, "server_script_logs")
	}

	return &ServerScript{
		binDir:     filepath.Join(cfg.InstallDir, "bin"),
		serverName: cfg.ServerName,
		timeout:    timeout,
		logDir:     logDir,
		logLimit:   limit,
		logger:     log.WithComponent("server-script"),
	}, nil
}

func (s *ServerScript) scriptPath() string {
	if isWindows {
		return filepath.Join(s.binDir, "server.bat")
	}
	return filepath.Join(s.binDir, "server")
}

// run invokes the script with command and returns its normalized output
func (s *ServerScript) run(ctx context.Context, command string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	line := command + " " + s.serverName
	cmd := buildCommand(ctx, s.binDir, s.scriptPath(), command, s.serverName)

	if s.logDir == "" {
		return runToCompletion(ctx, s.logger, line, cmd, nil)
	}

	logFile, err := createLogFile(s.logDir, line, s.logLimit)
	if err != nil {
		return "", err
	}
	defer logFile.Close()
	return runToCompletion(ctx, s.logger, line, cmd, logFile)
}

// Start starts the server in the background
func (s *ServerScript) Start(ctx context.Context) error {
	_, err := s.run(ctx, "start")
	return err
}

// Stop stops the server
func (s *ServerScript) Stop(ctx context.Context) error {
	_, err := s.run(ctx, "stop")
	return err
}

// Status returns the status message, e.g. "Server defaultServer is running with process ID 1234."
func (s *ServerScript) Status(ctx context.Context) (string, error) {
	return s.run(ctx, "status")
}

// IsRunning interprets the status command. The script exits non-zero for a
// stopped server, which is not an error here.
func (s *ServerScript) IsRunning(ctx context.Context) (bool, error) {
	output, err := s.Status(ctx)
	if err != nil {
		var scriptErr *ScriptError
		if errors.As(err, &scriptErr) && scriptErr.Err == nil && strings.Contains(scriptErr.Output, "is not running") {
			return false, nil
		}
		return false, err
	}
	if strings.Contains(output, "is not running") {
		return false, nil
	}
	return strings.Contains(output, "is running"), nil
}

// Version returns the runtime version banner
func (s *ServerScript) Version(ctx context.Context) (string, error) {
	return s.run(ctx, "version")
}

// Dump writes a server dump archive
func (s *ServerScript) Dump(ctx context.Context) (string, error) {
	return s.run(ctx, "dump")
}

// JavaDump writes a JVM thread dump
func (s *ServerScript) JavaDump(ctx context.Context) (string, error) {
	return s.run(ctx, "javadump")
}

// Pause pauses the server's inbound work
func (s *ServerScript) Pause(ctx context.Context) error {
	_, err := s.run(ctx, "pause")
	return err
}

// Resume resumes a paused server
func (s *ServerScript) Resume(ctx context.Context) error {
	_, err := s.run(ctx, "resume")
	return err
}
