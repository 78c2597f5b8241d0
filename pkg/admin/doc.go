// Package admin serves the operator HTTP interface of a running replacer:
// metrics, health probes, manual reloads and read-only views of the rule
// collection, the current snapshot and the history journal.
//
// Routes:
//
//	GET  /metrics              Prometheus exposition (path configurable)
//	GET  /health/live          liveness
//	GET  /health/ready         readiness
//	GET  /version              build information
//	GET  /rules                installed rules in priority order
//	GET  /snapshot             current assignments
//	GET  /history              journaled snapshots (?subject=&limit=)
//	POST /reload               reload the whole rule directory
//	POST /reload/file?path=    reload one rule file under the rule directory
//	PUT  /apply                {"enabled": bool} toggles the apply pass
package admin
