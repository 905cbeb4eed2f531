/*
Package log provides structured logging for the instance controller using
zerolog.

A single global zerolog.Logger is configured once via Init and every
subsystem (catalog, lock, gateway, lifecycle, pruner, httpapi) derives a
component-scoped child logger from it with WithComponent, so log lines can be
filtered by the part of the system that emitted them.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	catalogLog := log.WithComponent("catalog")
	catalogLog.Warn().Str("challenge", name).Msg("rejected document")

JSON output is the default for production; console output is meant for local
development. Neither mode retries or rotates — rotation is left to an
external tool (logrotate, the container runtime's log driver, or a log
shipper), matching how the rest of this stack treats logging as a sink, not a
subsystem to manage.
*/
package log
