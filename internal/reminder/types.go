package reminder

import "time"

// Config controls the reminder pipeline.
type Config struct {
	Enabled     bool
	ScanSpec    string // cron spec (5-field, or 6-field with seconds)
	LookAhead   time.Duration
	Workers     int
	QueueSize   int
	RatePerSec  int
	DedupWindow time.Duration
}

// Reminder is one due vendor call, ready for delivery.
type Reminder struct {
	CallID       string    `json:"call_id"`
	VendorID     string    `json:"vendor_id"`
	VendorName   string    `json:"vendor_name"`
	VendorPhone  string    `json:"vendor_phone,omitempty"`
	TaskID       string    `json:"task_id"`
	TaskName     string    `json:"task_name"`
	TaskStart    time.Time `json:"task_start"`
	DueAt        time.Time `json:"due_at"`
	ScheduleID   string    `json:"schedule_id"`
	ScheduleName string    `json:"schedule_name"`
}

// ReminderEvent is emitted on the event bus for reminder lifecycle events.
// Keep it small; Data may be logged/serialized by subscribers.
type ReminderEvent struct {
	CallID   string    `json:"call_id"`
	VendorID string    `json:"vendor_id"`
	TaskID   string    `json:"task_id"`
	At       time.Time `json:"at"`
	Error    string    `json:"error,omitempty"`
}
