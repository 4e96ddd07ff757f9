// Package finance assembles company rental statements from wells,
// equipment, and rental periods.
package finance

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"wellops/internal/equipment"
	"wellops/internal/well"
)

// Store is the read surface statement building needs.
// An empty wellID means "all wells".
type Store interface {
	ListWells(ctx context.Context) ([]well.Well, error)
	ListEquipment(ctx context.Context, wellID string) ([]equipment.Item, error)
	ListRentalPeriods(ctx context.Context, wellID string, from, to time.Time) ([]equipment.RentalPeriod, error)
}

// Line is one equipment charge on a statement.
type Line struct {
	EquipmentName string `json:"equipment_name"`
	Serial        string `json:"serial"`
	Category      string `json:"category,omitempty"`
	Days          int    `json:"days"`
	RateCents     int64  `json:"rate_cents"`
	AmountCents   int64  `json:"amount_cents"`
}

// WellSection groups a well's charges with a subtotal.
type WellSection struct {
	WellID        string `json:"well_id"`
	WellName      string `json:"well_name"`
	Lease         string `json:"lease,omitempty"`
	Lines         []Line `json:"lines"`
	SubtotalCents int64  `json:"subtotal_cents"`
}

// Statement is a company rental statement for a period.
type Statement struct {
	Company    string        `json:"company"`
	From       time.Time     `json:"from"`
	To         time.Time     `json:"to"`
	Wells      []WellSection `json:"wells"`
	TotalCents int64         `json:"total_cents"`
}

type Builder struct {
	store   Store
	company string

	mu  sync.Mutex
	loc *time.Location
}

func NewBuilder(store Store, company string) *Builder {
	return &Builder{store: store, company: company, loc: time.Local}
}

// SetLocation changes the timezone statement dates are rendered in.
// Safe to call while statements are being built.
func (b *Builder) SetLocation(loc *time.Location) {
	if loc == nil {
		loc = time.Local
	}
	b.mu.Lock()
	b.loc = loc
	b.mu.Unlock()
}

func (b *Builder) location() *time.Location {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loc
}

// Build assembles the statement for [from, to]. Rental periods are
// clipped to the window so a long stay only bills the days inside it;
// open periods accrue up to the window end.
func (b *Builder) Build(ctx context.Context, from, to time.Time) (Statement, error) {
	if to.Before(from) {
		return Statement{}, fmt.Errorf("statement window ends before it starts")
	}
	wells, err := b.store.ListWells(ctx)
	if err != nil {
		return Statement{}, err
	}
	items, err := b.store.ListEquipment(ctx, "")
	if err != nil {
		return Statement{}, err
	}
	byID := make(map[string]equipment.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	loc := b.location()
	st := Statement{Company: b.company, From: from.In(loc), To: to.In(loc)}
	for _, w := range wells {
		periods, err := b.store.ListRentalPeriods(ctx, w.ID, from, to)
		if err != nil {
			return Statement{}, err
		}
		sec := WellSection{WellID: w.ID, WellName: w.Name, Lease: w.Lease}
		for _, p := range periods {
			clipped := clip(p, from, to)
			if clipped.End.Before(clipped.Start) {
				continue
			}
			days := equipment.BillableDays(clipped.Start, clipped.End)
			amount := int64(days) * p.DailyRateCents

			line := Line{
				Category:    "uncategorized",
				Days:        days,
				RateCents:   p.DailyRateCents,
				AmountCents: amount,
			}
			if it, ok := byID[p.EquipmentID]; ok {
				line.EquipmentName = it.Name
				line.Serial = it.Serial
				if it.Category != "" {
					line.Category = it.Category
				}
			}
			sec.Lines = append(sec.Lines, line)
			sec.SubtotalCents += amount
		}
		if len(sec.Lines) == 0 {
			continue
		}
		slices.SortFunc(sec.Lines, func(a, b Line) int {
			if c := cmp.Compare(a.Category, b.Category); c != 0 {
				return c
			}
			return cmp.Compare(a.Serial, b.Serial)
		})
		st.Wells = append(st.Wells, sec)
		st.TotalCents += sec.SubtotalCents
	}
	slices.SortFunc(st.Wells, func(a, b WellSection) int { return cmp.Compare(a.WellName, b.WellName) })
	return st, nil
}

// clip bounds a period to the statement window. Open periods close at
// the window end for billing purposes.
func clip(p equipment.RentalPeriod, from, to time.Time) equipment.RentalPeriod {
	if p.Start.Before(from) {
		p.Start = from
	}
	if p.Open() || p.End.After(to) {
		p.End = to
	}
	return p
}
