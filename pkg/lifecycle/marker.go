package lifecycle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// RunningMarkerPath returns the marker file announcing that the server built
// from sourceDir is running under this tool
func RunningMarkerPath(sourceDir string) string {
	return filepath.Clean(sourceDir) + ".running"
}

func writeRunningMarker(path, sessionID string, pid int) error {
	content := fmt.Sprintf("session=%s\npid=%d\n", sessionID, pid)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write running marker: %w", err)
	}
	return nil
}

func removeRunningMarker(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove running marker: %w", err)
	}
	return nil
}

// HasRunningMarker reports whether the running marker for sourceDir exists
func HasRunningMarker(sourceDir string) bool {
	_, err := os.Stat(RunningMarkerPath(sourceDir))
	return err == nil
}
