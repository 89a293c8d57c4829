// Package logstore keeps a bounded, deduplicating window of recent log
// messages on top of a substrate.Backend.
//
// Reports of the same event (equal grouping keys) collapse into one entry
// whose count grows and which moves to the newest position. Saving past
// MaxBacklog evicts the oldest entry unless it is protected; protected
// entries that fall out of the window stay readable by key until they are
// unprotected. Latest pages through the window with before/after cursors.
package logstore
