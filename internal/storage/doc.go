package storage

// Package storage is the SQLite system of record for wellops.
//
// It persists:
//   - Wells and job codes
//   - Look-ahead schedules, tasks, and vendor call assignments
//   - Vendors
//   - Equipment and rental periods
//   - Audit log appends (operator actions)
//   - Reminder dedup state (to survive restarts)
