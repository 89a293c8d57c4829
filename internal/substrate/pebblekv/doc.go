// Package pebblekv implements substrate.Backend on top of an embedded Pebble
// database, for single-node deployments that do not want an external Redis.
//
// Lists are stored as sequence-numbered entries under a per-list prefix with
// a small metadata record tracking the last sequence and length. Hash fields
// and set members are plain keys under their collection prefix.
package pebblekv
