// Package events broadcasts lifecycle events of the managed server (state
// changes, readiness, shutdown tiers and forced kills) to any number of
// subscribers. Slow subscribers miss events rather than block the publisher.
package events
