package control

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// isWindows reports whether commands must be run through cmd.exe
var isWindows = runtime.GOOS == "windows"

// buildCommand creates the command for name args in dir, through cmd.exe on Windows
func buildCommand(ctx context.Context, dir, name string, args ...string) *exec.Cmd {
	var cmd *exec.Cmd
	if isWindows {
		cmd = exec.CommandContext(ctx, "cmd.exe", append([]string{"/c", name}, args...)...)
	} else {
		cmd = exec.CommandContext(ctx, name, args...)
	}
	cmd.Dir = dir
	// Grandchildren may hold the output pipes open after a kill
	cmd.WaitDelay = time.Second
	return cmd
}

// runToCompletion runs cmd, copying its output to logOut when set. Output
// is returned with blank lines removed and each line trimmed.
func runToCompletion(ctx context.Context, logger zerolog.Logger, command string, cmd *exec.Cmd, logOut io.Writer) (string, error) {
	var buf bytes.Buffer
	var out io.Writer = &buf
	if logOut != nil {
		out = io.MultiWriter(&buf, logOut)
	}
	cmd.Stdout = out
	cmd.Stderr = out

	logger.Debug().Str("command", command).Str("dir", cmd.Dir).Msg("Running command")
	err := cmd.Run()
	output := normalizeOutput(buf.String())

	if ctx.Err() != nil {
		cause := ErrTimeout
		if errors.Is(ctx.Err(), context.Canceled) {
			cause = ctx.Err()
		}
		logger.Error().Str("command", command).Msg("Command did not finish")
		return output, &ScriptError{Command: command, ExitCode: -1, Output: output, Err: cause}
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.Debug().Str("command", command).Int("exit_code", exitErr.ExitCode()).Str("output", output).Msg("Command failed")
			return output, &ScriptError{Command: command, ExitCode: exitErr.ExitCode(), Output: output}
		}
		return output, &ScriptError{Command: command, ExitCode: -1, Output: output, Err: err}
	}
	return output, nil
}

func normalizeOutput(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
