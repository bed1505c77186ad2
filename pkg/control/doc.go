/*
Package control runs the external programs that start and stop the server.

ServerScript wraps the runtime's own control script
(<install>/bin/server, server.bat on Windows). BuildTool wraps the project's
build tool, which launches the server in the foreground and offers a stop
goal. Every invocation writes its output to a timestamped log file; only
the newest few files per command are kept.
*/
package control
