/*
Package observability turns process lifecycle events into Prometheus metrics
and structured log lines.

Both are plain domain.LifecycleHooks, so they can be merged and handed to any
process backing or to the supervisor.
*/
package observability
