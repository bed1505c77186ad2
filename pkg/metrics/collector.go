package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/olrunner/pkg/types"
)

// DefaultCollectInterval is how often the collector polls application states
const DefaultCollectInterval = 15 * time.Second

// ApplicationSource returns the current application states of the server
type ApplicationSource func(ctx context.Context) ([]types.ApplicationStatus, error)

// Collector periodically publishes application states as gauges
type Collector struct {
	source   ApplicationSource
	interval time.Duration
	timeout  time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewCollector creates a collector polling source every interval
func NewCollector(source ApplicationSource, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = DefaultCollectInterval
	}
	return &Collector{
		source:   source,
		interval: interval,
		timeout:  interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer ticker.Stop()

		// Collect immediately on start
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop stops the collector and waits for an in-flight poll
func (c *Collector) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	c.wg.Wait()
}

func (c *Collector) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	apps, err := c.source(ctx)
	if err != nil {
		// Keep the last known values
		return
	}

	counts := make(map[string]int)
	for _, app := range apps {
		counts[app.State]++
	}

	Applications.Reset()
	for state, count := range counts {
		Applications.WithLabelValues(state).Set(float64(count))
	}
}
