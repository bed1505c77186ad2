/*
Package types defines the data carriers shared by olrunner components.

Management-plane values (ManagedResourceRef, TypedAttribute,
OperationDescriptor) are produced by the management client and treated as
immutable. ServerInfo and ApplicationStatus are projections built from
attribute lists by name; attribute names this package does not know are
ignored so that newer server versions keep working.

LifecycleState is the state of one orchestrator run:

	not_started → launching → awaiting_readiness → ready
	                  │               │              │
	                  └───────────────┴──► failed ◄──┤
	                                                 ▼
	                          stopping_primary → stopping_fallback
	                                 │                  │
	                                 └──► stopped ◄─────┘

stopped and failed are terminal for a run; the orchestrator never restarts a
server on its own.
*/
package types
