/*
Package health provides liveness probes for the managed server.

A probe answers one question: is the server process still up? Probes are
used to confirm that a shutdown tier took effect.

	probe := health.Any(
		health.NewManagementChecker(client),
		health.NewScriptChecker(script),
	)
	if probe.Check(ctx).Healthy {
		// still running
	}

Any treats the server as alive as soon as one probe reports it alive, so
a server counts as stopped only when every probe agrees.
*/
package health
