// Package pebblestore wraps Pebble with an fsync policy and a commit
// observation hook. It is the storage layer under the embedded substrate
// backend.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   pebblestore.FsyncModeInterval,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	b := db.NewIndexedBatch()
//	_ = b.Set([]byte("k"), []byte("v"), nil)
//	_ = db.CommitBatch(context.Background(), b)
//	b.Close()
//
//	snap := db.NewSnapshot()
//	defer snap.Close()
package pebblestore
