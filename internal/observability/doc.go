// Package observability provides event logging, metrics, alerting and live
// progress fan-out for AI Dev Team. Events are persisted as JSON Lines and
// metrics are derived from them on demand.
package observability
