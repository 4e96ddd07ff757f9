// Package importer loads equipment and vendor records from CSV files.
//
// Matching is by business key: equipment by serial, vendors by
// case-insensitive name. Matched rows update the existing record,
// unmatched rows create a new one. Bad rows are skipped with a per-row
// reason; a malformed file fails the whole import.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"wellops/internal/equipment"
	"wellops/internal/eventbus"
	"wellops/internal/vendor"
	logx "wellops/pkg/logx"
)

// Store is the persistence surface imports need. *storage.Store satisfies it.
type Store interface {
	FindEquipmentBySerial(ctx context.Context, serial string) (equipment.Item, bool, error)
	CreateEquipment(ctx context.Context, it equipment.Item) error
	UpdateEquipment(ctx context.Context, it equipment.Item) error

	FindVendorByName(ctx context.Context, name string) (vendor.Vendor, bool, error)
	CreateVendor(ctx context.Context, v vendor.Vendor) error
	UpdateVendor(ctx context.Context, v vendor.Vendor) error
}

// RowIssue explains why a data row was skipped.
type RowIssue struct {
	Line   int    `json:"line"` // 1-based, counting the header
	Reason string `json:"reason"`
}

// Summary is the result of one import pass.
type Summary struct {
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Skipped int        `json:"skipped"`
	Issues  []RowIssue `json:"issues,omitempty"`
}

// ImportEvent is emitted on the event bus after an import completes.
type ImportEvent struct {
	Kind    string    `json:"kind"` // "equipment" or "vendors"
	Summary Summary   `json:"summary"`
	At      time.Time `json:"at"`
}

type Service struct {
	store Store
	bus   eventbus.Bus
	log   logx.Logger
}

func NewService(store Store, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{store: store, bus: bus, log: log}
}

// header maps lowercased, trimmed column names to their index.
type header map[string]int

func readHeader(rec []string) header {
	h := header{}
	for i, name := range rec {
		h[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return h
}

func (h header) get(rec []string, name string) string {
	i, ok := h[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (h header) require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := h[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ImportEquipment reads equipment rows from r.
//
// Required columns: serial, name. Recognized columns: category, vendor
// (vendor name, resolved or created), daily_rate (dollars, e.g. "125.00").
func (s *Service) ImportEquipment(ctx context.Context, r io.Reader) (Summary, error) {
	var sum Summary

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	first, err := cr.Read()
	if err != nil {
		return sum, fmt.Errorf("read header: %w", err)
	}
	h := readHeader(first)
	if err := h.require("serial", "name"); err != nil {
		return sum, err
	}

	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sum, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		serial := h.get(rec, "serial")
		name := h.get(rec, "name")
		if serial == "" || name == "" {
			sum.skip(line, "serial and name are required")
			continue
		}

		rate, err := ParseCents(h.get(rec, "daily_rate"))
		if err != nil {
			sum.skip(line, fmt.Sprintf("daily_rate: %v", err))
			continue
		}

		vendorID := ""
		if vn := h.get(rec, "vendor"); vn != "" {
			vendorID, err = s.resolveVendor(ctx, vn)
			if err != nil {
				return sum, fmt.Errorf("line %d: resolve vendor %q: %w", line, vn, err)
			}
		}

		existing, found, err := s.store.FindEquipmentBySerial(ctx, serial)
		if err != nil {
			return sum, fmt.Errorf("line %d: lookup serial %q: %w", line, serial, err)
		}
		if found {
			existing.Name = name
			if c := h.get(rec, "category"); c != "" {
				existing.Category = c
			}
			if vendorID != "" {
				existing.VendorID = vendorID
			}
			existing.DailyRateCents = rate
			if err := s.store.UpdateEquipment(ctx, existing); err != nil {
				return sum, fmt.Errorf("line %d: update %q: %w", line, serial, err)
			}
			sum.Updated++
			continue
		}

		it := equipment.Item{
			ID:             uuid.NewString(),
			Serial:         serial,
			Name:           name,
			Category:       h.get(rec, "category"),
			VendorID:       vendorID,
			DailyRateCents: rate,
			Status:         equipment.StatusAvailable,
		}
		if err := s.store.CreateEquipment(ctx, it); err != nil {
			return sum, fmt.Errorf("line %d: create %q: %w", line, serial, err)
		}
		sum.Created++
	}

	s.finish(ctx, "equipment", sum)
	return sum, nil
}

// ImportVendors reads vendor rows from r.
//
// Required column: name. Recognized columns: service, phone, email.
func (s *Service) ImportVendors(ctx context.Context, r io.Reader) (Summary, error) {
	var sum Summary

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	first, err := cr.Read()
	if err != nil {
		return sum, fmt.Errorf("read header: %w", err)
	}
	h := readHeader(first)
	if err := h.require("name"); err != nil {
		return sum, err
	}

	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sum, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		name := h.get(rec, "name")
		if name == "" {
			sum.skip(line, "name is required")
			continue
		}

		existing, found, err := s.store.FindVendorByName(ctx, name)
		if err != nil {
			return sum, fmt.Errorf("line %d: lookup vendor %q: %w", line, name, err)
		}
		if found {
			if v := h.get(rec, "service"); v != "" {
				existing.Service = v
			}
			if v := h.get(rec, "phone"); v != "" {
				existing.Phone = v
			}
			if v := h.get(rec, "email"); v != "" {
				existing.Email = v
			}
			if err := s.store.UpdateVendor(ctx, existing); err != nil {
				return sum, fmt.Errorf("line %d: update %q: %w", line, name, err)
			}
			sum.Updated++
			continue
		}

		v := vendor.Vendor{
			ID:      uuid.NewString(),
			Name:    name,
			Service: h.get(rec, "service"),
			Phone:   h.get(rec, "phone"),
			Email:   h.get(rec, "email"),
			Active:  true,
		}
		if err := s.store.CreateVendor(ctx, v); err != nil {
			return sum, fmt.Errorf("line %d: create %q: %w", line, name, err)
		}
		sum.Created++
	}

	s.finish(ctx, "vendors", sum)
	return sum, nil
}

func (s *Service) resolveVendor(ctx context.Context, name string) (string, error) {
	v, found, err := s.store.FindVendorByName(ctx, name)
	if err != nil {
		return "", err
	}
	if found {
		return v.ID, nil
	}
	v = vendor.Vendor{ID: uuid.NewString(), Name: name, Active: true}
	if err := s.store.CreateVendor(ctx, v); err != nil {
		return "", err
	}
	return v.ID, nil
}

func (s *Service) finish(_ context.Context, kind string, sum Summary) {
	s.log.Info("import completed",
		logx.String("kind", kind),
		logx.Int("created", sum.Created),
		logx.Int("updated", sum.Updated),
		logx.Int("skipped", sum.Skipped),
	)
	if s.bus != nil {
		now := time.Now()
		s.bus.Publish(eventbus.Event{Type: eventbus.TypeImportCompleted, Time: now, Data: ImportEvent{
			Kind: kind, Summary: sum, At: now,
		}})
	}
}

func (sum *Summary) skip(line int, reason string) {
	sum.Skipped++
	sum.Issues = append(sum.Issues, RowIssue{Line: line, Reason: reason})
}

// ParseCents converts a dollar amount string ("125", "125.5", "$1,250.00")
// to cents. Empty input is zero.
func ParseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, nil
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	var dollars int64
	for _, c := range whole {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
		dollars = dollars*10 + int64(c-'0')
		if dollars > 1<<40 {
			return 0, fmt.Errorf("amount %q too large", s)
		}
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("amount %q has more than two decimal places", s)
	}
	var sub int64
	for _, c := range frac {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
		sub = sub*10 + int64(c-'0')
	}
	if len(frac) == 1 {
		sub *= 10
	}
	cents := dollars*100 + sub
	if neg {
		cents = -cents
	}
	return cents, nil
}
