package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Status is a task's lifecycle state.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusDelayed    Status = "delayed"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus normalizes a raw status string.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusDelayed, StatusCancelled:
		return s, nil
	default:
		return "", fmt.Errorf("unknown task status %q", raw)
	}
}

// Schedule is an ordered look-ahead plan for one well.
type Schedule struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	WellID  string    `json:"well_id,omitempty"`
	Start   time.Time `json:"start"`
	Active  bool      `json:"active"`
	Created time.Time `json:"created"`
}

// Task is a single step in a look-ahead schedule.
//
// Seq defines the total order within the schedule (dense, 0-based).
// Start/End are derived: they are owned by the cascade and overwritten
// on every recompute.
type Task struct {
	ID         string `json:"id"`
	ScheduleID string `json:"schedule_id"`
	Name       string `json:"name"`
	Seq        int    `json:"seq"`
	// DurationMin is the estimated duration in whole minutes.
	DurationMin int       `json:"duration_min"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Status      Status    `json:"status"`
	WellID      string    `json:"well_id,omitempty"`
	JobCode     string    `json:"job_code,omitempty"`
}

// Duration returns the task's estimated duration.
func (t Task) Duration() time.Duration {
	return time.Duration(t.DurationMin) * time.Minute
}

// VendorCall links a task to a vendor that must be called ahead of the
// task's start time.
type VendorCall struct {
	ID       string `json:"id"`
	TaskID   string `json:"task_id"`
	VendorID string `json:"vendor_id"`
	// LeadMin is how many minutes before the task's start the call is due.
	LeadMin int `json:"lead_min"`
}

// DueAt returns when the call should be placed for a task starting at start.
func (c VendorCall) DueAt(start time.Time) time.Time {
	return start.Add(-time.Duration(c.LeadMin) * time.Minute)
}
