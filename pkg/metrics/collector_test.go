package metrics

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/olrunner/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorPublishesApplicationStates(t *testing.T) {
	var polls atomic.Int32
	source := func(ctx context.Context) ([]types.ApplicationStatus, error) {
		polls.Add(1)
		return []types.ApplicationStatus{
			{ApplicationName: "inventory", State: "STARTED"},
			{ApplicationName: "system", State: "STARTED"},
			{ApplicationName: "legacy", State: "STOPPED"},
		}, nil
	}

	c := NewCollector(source, 10*time.Millisecond)
	c.Start()
	require.Eventually(t, func() bool { return polls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	c.Stop()
	c.Stop()

	assert.Equal(t, 2.0, testutil.ToFloat64(Applications.WithLabelValues("STARTED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(Applications.WithLabelValues("STOPPED")))
}

func TestCollectorKeepsValuesOnError(t *testing.T) {
	fail := false
	source := func(ctx context.Context) ([]types.ApplicationStatus, error) {
		if fail {
			return nil, errors.New("management endpoint unreachable")
		}
		return []types.ApplicationStatus{{ApplicationName: "inventory", State: "INSTALLED"}}, nil
	}

	c := NewCollector(source, time.Minute)
	c.collect()
	assert.Equal(t, 1.0, testutil.ToFloat64(Applications.WithLabelValues("INSTALLED")))

	fail = true
	c.collect()
	assert.Equal(t, 1.0, testutil.ToFloat64(Applications.WithLabelValues("INSTALLED")))
}

func TestNewCollectorDefaultInterval(t *testing.T) {
	c := NewCollector(nil, 0)
	assert.Equal(t, DefaultCollectInterval, c.interval)
}
