package readiness

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const readyLine = "[10/18/26 10:00:00:000 UTC] 0000002a id=00000000 com.ibm.ws.kernel.feature.internal.FeatureManager A " +
	"[AUDIT   ] CWWKF0011I: The defaultServer server is ready to run a smarter planet. The defaultServer server started in 12.345 seconds."

func appendLog(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(text)
	require.NoError(t, err)
}

func TestDefaultPredicate(t *testing.T) {
	tests := []struct {
		name string
		line string
		want bool
	}{
		{"ready line", readyLine, true},
		{"maven prefixed", "[INFO] [AUDIT   ] CWWKF0011I: The defaultServer server is ready to run a smarter planet.", true},
		{"code only", "[AUDIT   ] CWWKF0011I: something else", false},
		{"message only", "[INFO] ready to run a smarter planet", false},
		{"different tag", "[WARNING ] CWWKF0011I: The server is ready to run a smarter planet.", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultPredicate(tt.line))
		})
	}
}

func TestFileSourceMissingFile(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "console.log"))
	lines, err := src.ReadLines(0)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestFileSourceCompleteLinesOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")
	appendLog(t, path, "first\r\nsecond\npart")

	src := NewFileSource(path)
	lines, err := src.ReadLines(0)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "first", lines[0].Text)
	assert.Equal(t, int64(7), lines[0].End)
	assert.Equal(t, "second", lines[1].Text)
	assert.Equal(t, int64(14), lines[1].End)

	appendLog(t, path, "ial\n")
	lines, err = src.ReadLines(14)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "partial", lines[0].Text)
}

func TestMonitorStopsAtFirstMatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")
	appendLog(t, path, "launching\n"+readyLine+"\nafter\n")

	m := NewMonitor(NewFileSource(path), nil, 10*time.Millisecond)
	ready, err := m.Scan()
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, int64(len("launching\n"+readyLine+"\n")), m.Offset())

	// Lines after the match are still unread
	ready, err = m.Scan()
	require.NoError(t, err)
	assert.False(t, ready)
	assert.Equal(t, int64(len("launching\n"+readyLine+"\nafter\n")), m.Offset())
}

func TestMonitorCursorNeverMovesBackward(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")
	appendLog(t, path, "one\ntwo\n")

	m := NewMonitor(NewFileSource(path), nil, 10*time.Millisecond)
	_, err := m.Scan()
	require.NoError(t, err)
	before := m.Offset()

	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0644))
	_, err = m.Scan()
	require.NoError(t, err)
	assert.Equal(t, before, m.Offset())
}

func TestAwaitReadyAppendedLater(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(100 * time.Millisecond)
		appendLog(t, path, "starting\n")
		time.Sleep(100 * time.Millisecond)
		appendLog(t, path, readyLine+"\n")
	}()

	outcome, err := AwaitReady(context.Background(), NewFileSource(path), DefaultPredicate, 20*time.Millisecond, 5*time.Second)
	wg.Wait()
	require.NoError(t, err)
	assert.Equal(t, OutcomeReady, outcome)
}

func TestAwaitReadyNeverTimesOutEarly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")
	appendLog(t, path, "starting\n")

	timeout := 250 * time.Millisecond
	pollInterval := 100 * time.Millisecond
	start := time.Now()
	outcome, err := AwaitReady(context.Background(), NewFileSource(path), DefaultPredicate, pollInterval, timeout)
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, outcome)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+pollInterval+100*time.Millisecond)
}

func TestAwaitReadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	outcome, err := AwaitReady(ctx, NewFileSource(filepath.Join(t.TempDir(), "none.log")), DefaultPredicate, 10*time.Millisecond, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeTimedOut, outcome)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "ready", OutcomeReady.String())
	assert.Equal(t, "timed_out", OutcomeTimedOut.String())
}
