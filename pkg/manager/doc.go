// Package manager provides server-level queries and commands on top of the
// management client: server information, application states and restarts,
// and framework shutdown.
package manager
