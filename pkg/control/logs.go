package control

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"
)

// DefaultLogFileLimit is how many log files are kept per command
const DefaultLogFileLimit = 5

var unsafeLogChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// LogNamePrefix turns a command line into a file-name-safe prefix
func LogNamePrefix(command string) string {
	return unsafeLogChars.ReplaceAllString(command, "_")
}

// EnforceLogFileLimit deletes the oldest files in dir starting with prefix
// so that at most limit remain
func EnforceLogFileLimit(dir, prefix string, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("log file limit must be positive, got %d", limit)
	}

	matches, err := filepath.Glob(filepath.Join(dir, prefix+"*"))
	if err != nil {
		return err
	}
	if len(matches) <= limit {
		return nil
	}

	type logFile struct {
		path    string
		modTime time.Time
	}
	files := make([]logFile, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to stat log file: %w", err)
		}
		files = append(files, logFile{path: path, modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].modTime.Equal(files[j].modTime) {
			return files[i].path < files[j].path
		}
		return files[i].modTime.Before(files[j].modTime)
	})

	for _, f := range files[:len(files)-limit] {
		if err := os.Remove(f.path); err != nil {
			return fmt.Errorf("failed to remove old log file: %w", err)
		}
	}
	return nil
}

// createLogFile rotates old logs for command and creates a new timestamped one
func createLogFile(dir, command string, limit int) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	prefix := LogNamePrefix(command)
	if err := EnforceLogFileLimit(dir, prefix, limit); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%s_%d.log", prefix, time.Now().UnixMilli())
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	return f, nil
}
