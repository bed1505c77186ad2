package lifecycle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunningMarker(t *testing.T) {
	source := filepath.Join(t.TempDir(), "inventory")
	path := RunningMarkerPath(source + string(filepath.Separator))
	assert.Equal(t, source+".running", path)
	assert.False(t, HasRunningMarker(source))

	require.NoError(t, writeRunningMarker(path, "session-1", 4242))
	assert.True(t, HasRunningMarker(source))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "session=session-1")
	assert.Contains(t, string(data), "pid=4242")

	require.NoError(t, removeRunningMarker(path))
	assert.False(t, HasRunningMarker(source))
	assert.NoError(t, removeRunningMarker(path), "removing a missing marker is not an error")
}
