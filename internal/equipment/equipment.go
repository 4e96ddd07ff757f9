// Package equipment tracks rental equipment across wells and accrues
// rental cost per day on location.
package equipment

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound        = errors.New("equipment not found")
	ErrDuplicateSerial = errors.New("equipment serial already registered")
)

// Status is a piece of equipment's whereabouts.
type Status string

const (
	StatusAvailable  Status = "available"
	StatusOnLocation Status = "on_location"
	StatusInTransit  Status = "in_transit"
	StatusReturned   Status = "returned"
	StatusLost       Status = "lost"
)

// ParseStatus normalizes a raw status string.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusAvailable, StatusOnLocation, StatusInTransit, StatusReturned, StatusLost:
		return s, nil
	default:
		return "", fmt.Errorf("unknown equipment status %q", raw)
	}
}

// Item is one trackable piece of rental equipment.
//
// Serial is the unique business key (CSV import matches on it).
// Money is carried in cents to keep totals exact.
type Item struct {
	ID             string `json:"id"`
	Serial         string `json:"serial"`
	Name           string `json:"name"`
	Category       string `json:"category,omitempty"`
	VendorID       string `json:"vendor_id,omitempty"`
	DailyRateCents int64  `json:"daily_rate_cents"`
	Status         Status `json:"status"`
	WellID         string `json:"well_id,omitempty"` // empty when not on a well
}

// RentalPeriod is one stay of one item on one well.
//
// End.IsZero() means the period is still open and accrues cost daily.
// The rate is frozen at open time so later rate edits don't rewrite
// historical charges.
type RentalPeriod struct {
	ID             string    `json:"id"`
	EquipmentID    string    `json:"equipment_id"`
	WellID         string    `json:"well_id"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end,omitzero"`
	DailyRateCents int64     `json:"daily_rate_cents"`
}

// Open reports whether the period is still accruing.
func (p RentalPeriod) Open() bool { return p.End.IsZero() }
