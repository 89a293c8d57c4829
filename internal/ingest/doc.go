// Package ingest captures events from a running service and hands them to a
// Reporter: panics from HTTP handlers through Recoverer, and the service's
// own log entries through LogOutput.
package ingest
