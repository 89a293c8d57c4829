// Package httpserver serves the log store as JSON over HTTP using a chi
// router. Panics inside handlers are recorded into the store itself.
//
// Routes:
//
//	GET    /v1/healthz
//	POST   /v1/messages
//	GET    /v1/messages?limit=&severity=&before=&after=&search=&regex=
//	GET    /v1/messages/{key}
//	POST   /v1/messages/{key}/protect
//	DELETE /v1/messages/{key}/protect
//	GET    /v1/count
//	POST   /v1/clear[?all=1]
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Config: config.Default()})
//	s := httpserver.New(rt, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver
