// Package message defines the log event entity stored by logstore: its
// fields, grouping fingerprint, natural ordering, persisted JSON layout and
// the request environment scrubbing applied on capture.
package message
