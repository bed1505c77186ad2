/*
Package readiness detects when the server has finished starting by tailing
its console log for the audit message

	[AUDIT   ] CWWKF0011I: The defaultServer server is ready to run a smarter planet.

The log is polled at a fixed interval. Each cycle reads the complete lines
appended since the previous cycle; partially written lines are picked up
once their newline arrives.
*/
package readiness
