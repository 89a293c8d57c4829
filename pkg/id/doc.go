// Package id generates the time-ordered keys that name stored messages.
//
// An ID is 16 bytes: the unix millisecond it was made, then a per-millisecond
// sequence, both big-endian. Its hex String is the message key, so keys sort
// in creation order and carry their own timestamp.
//
//	g := id.NewGenerator()
//	key := g.Next()
//	key.String() // 32 hex characters
//	key.Millis() // creation time
package id
