// Package client provides the `logwindow` command-line client.
//
// The CLI talks to the server's HTTP endpoints to inspect and manage the
// window of recent messages from a terminal.
//
// # Address configuration
//
// The HTTP base URL is discovered by the application that embeds the
// commands via a BaseURLFunc. The standalone binary reads LOGWINDOW_HTTP and
// defaults to http://127.0.0.1:8080.
//
// Usage
//
//	logwindow report -s error -p billing "card declined" --env params.order=42
//	logwindow latest --limit 20 --severity error,fatal
//	logwindow latest --search 'timeout|refused' --regex
//	logwindow latest --before KEY             # the page just older than KEY
//	logwindow latest -f                       # poll for new rows
//	logwindow get KEY
//	logwindow protect KEY
//	logwindow unprotect KEY
//	logwindow count
//	logwindow clear --confirm                 # keeps protected rows
//	logwindow clear --confirm --all
package client
