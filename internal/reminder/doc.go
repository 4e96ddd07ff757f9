// Package reminder delivers vendor call reminders for upcoming schedule tasks.
//
// A vendor call is attached to a task with a lead time: "call the wireline
// company 12 hours before the task starts". The service periodically scans
// active schedules for tasks starting inside the look-ahead window, computes
// each call's due time, and delivers due reminders through a pluggable sink.
//
// # Pipeline
//
// Deliveries run through an async pipeline: a cron-driven scan feeds a bounded
// queue consumed by a worker pool behind a token-bucket rate limit. Reminders
// are deduplicated per call and task start time, first against an in-memory
// cache and then against the persistent dedup table, so a reminder survives
// process restarts without firing twice.
//
// # Sinks
//
// Delivery targets implement the Sink interface. The log sink writes
// reminders to the structured log; the webhook sink POSTs them as JSON.
package reminder
