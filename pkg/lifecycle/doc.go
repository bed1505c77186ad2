/*
Package lifecycle orchestrates one run of the managed server.

The Orchestrator owns the lifecycle state and is its only writer:

	NotStarted -> Launching -> AwaitingReadiness -> Ready
	Ready -> StoppingPrimary -> [StoppingFallback] -> Stopped
	any non-terminal state -> Failed

Start launches the server, waits a fixed grace period, then polls the
launch log for the ready message in a background monitor. Startup is
bounded by grace plus readiness window regardless of what the monitor does.
Only after readiness is the management client built, from the address file
the server publishes. Entering Failed always kills a live launch process.

Stop runs the shutdown tiers and then terminates the launch process.
*/
package lifecycle
