// Package tasks runs the long-lived and batch jobs built on the catalog service.
//
// # Scheduler
//
// [Scheduler] is the process-wide periodic job. Every sweep interval it asks the
// catalog to drop expired response cache entries and to trim the stream URL cache.
// It is started by the serve and mirrors watch commands and stops when its context
// is canceled or [Scheduler.Stop] is called.
//
// # Stream Export
//
// [StreamExporter.Export] resolves a stream URL for every track of an album or a
// playlist using a small worker pool paced by a rate limiter. Failures are recorded
// per track and never abort the run; cancellation does.
//
// # Progress Reporting
//
// Exports report [ProgressUpdate] values on an optional channel. Sends use select
// with default, so a slow or absent reader never blocks the workers.
package tasks
