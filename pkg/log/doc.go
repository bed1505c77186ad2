/*
Package log provides structured logging for olrunner using zerolog.

A single package-level zerolog.Logger is configured once at process start with
Init and shared by every component. Components derive child loggers carrying a
"component" field so that output from the management client, the readiness
monitor and the orchestrator can be told apart:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: false,
		Output:     os.Stderr,
	})

	logger := log.WithComponent("mgmt-client")
	logger.Debug().Str("url", u).Int("attempt", 2).Msg("Sending request")

Lifecycle runs additionally tag their logs with the session identifier
(WithSessionID) and management calls with the resource they target
(WithResource).

# Output

JSON output is intended for log shipping:

	{"level":"info","component":"lifecycle","session_id":"7d3c...","time":"2026-10-18T10:30:00Z","message":"Server ready"}

Console output is intended for interactive use:

	2026-10-18T10:30:00Z INF Server ready component=lifecycle session_id=7d3c...

Levels below the configured threshold are dropped through
zerolog.SetGlobalLevel, so debug-level request tracing in the management
client costs nothing at the default info level.
*/
package log
