/*
Package storage keeps a history of orchestrated server runs in a BoltDB
file (olrunner.db) inside the data directory.

Each run is one types.Session keyed by its ID and stored as JSON in the
"sessions" bucket. The record is rewritten on every lifecycle transition,
so a crashed run still leaves its last known state behind.
*/
package storage
