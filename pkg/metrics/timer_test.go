package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestNewTimer tests timer creation
func TestNewTimer(t *testing.T) {
	timer := NewTimer()

	if timer == nil {
		t.Fatal("NewTimer() returned nil")
	}

	if time.Since(timer.start) > time.Second {
		t.Error("NewTimer() start time is not recent")
	}
}

// TestTimerDuration tests duration measurement
func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)

	first := timer.Duration()
	if first < 20*time.Millisecond {
		t.Errorf("Timer.Duration() = %v, want >= 20ms", first)
	}

	time.Sleep(5 * time.Millisecond)
	if second := timer.Duration(); second <= first {
		t.Errorf("Duration should grow: first=%v, second=%v", first, second)
	}
}

// TestTimerObserveDurationVec tests histogram vec observation
func TestTimerObserveDurationVec(t *testing.T) {
	histogramVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "test_startup_seconds",
			Help:    "Test startup histogram",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	timer := NewTimer()
	timer.ObserveDurationVec(histogramVec, "ready")
	timer.ObserveDuration(histogramVec.WithLabelValues("failed"))

	if n := testutil.CollectAndCount(histogramVec); n != 2 {
		t.Errorf("expected 2 observed series, got %d", n)
	}
}

// TestSetLifecycleState tests that exactly one state gauge is set
func TestSetLifecycleState(t *testing.T) {
	SetLifecycleState("ready")

	if v := testutil.ToFloat64(LifecycleState.WithLabelValues("ready")); v != 1 {
		t.Errorf("expected ready gauge 1, got %v", v)
	}
	if v := testutil.ToFloat64(LifecycleState.WithLabelValues("launching")); v != 0 {
		t.Errorf("expected launching gauge 0, got %v", v)
	}

	SetLifecycleState("stopped")
	if v := testutil.ToFloat64(LifecycleState.WithLabelValues("ready")); v != 0 {
		t.Errorf("expected ready gauge 0 after transition, got %v", v)
	}
}
