// Package substrate defines the key-value contract the log store is written
// against: named lists, hashes and sets with Redis-compatible semantics, and a
// write-only atomic transaction.
//
// Two implementations live in subpackages:
//
//   - pebblekv: embedded, single-process, backed by Pebble.
//   - redisstore: remote, shared between processes, backed by Redis.
//
// The store receives a Backend through its constructor; nothing in this
// package holds process-wide state.
package substrate
