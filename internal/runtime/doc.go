// Package runtime wires config, the selected substrate backend and the log
// store into a single process. It exposes Open/Close, a health check and
// the Store used by the servers.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(context.Background())
//	_ = rt.Store().Report(context.Background(), logstore.ReportParams{Severity: message.Error, Text: "boom"})
package runtime
