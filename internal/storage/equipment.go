package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"wellops/internal/equipment"
)

func (s *Store) CreateEquipment(ctx context.Context, it equipment.Item) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO equipment(id, serial, name, category, vendor_id, daily_rate_cents, status, well_id)
		 VALUES(?,?,?,?,?,?,?,?)`,
		it.ID, it.Serial, it.Name, nullStr(it.Category), nullStr(it.VendorID),
		it.DailyRateCents, string(it.Status), nullStr(it.WellID),
	)
	return err
}

func (s *Store) GetEquipment(ctx context.Context, id string) (equipment.Item, error) {
	it, err := scanEquipment(s.db.QueryRowContext(ctx,
		`SELECT id, serial, name, category, vendor_id, daily_rate_cents, status, well_id
		 FROM equipment WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return equipment.Item{}, fmt.Errorf("equipment %s: %w", id, ErrNotFound)
	}
	return it, err
}

// FindEquipmentBySerial matches the unique serial (exact, case-insensitive).
func (s *Store) FindEquipmentBySerial(ctx context.Context, serial string) (equipment.Item, bool, error) {
	it, err := scanEquipment(s.db.QueryRowContext(ctx,
		`SELECT id, serial, name, category, vendor_id, daily_rate_cents, status, well_id
		 FROM equipment WHERE serial = ? COLLATE NOCASE LIMIT 1`, strings.TrimSpace(serial)))
	if errors.Is(err, sql.ErrNoRows) {
		return equipment.Item{}, false, nil
	}
	if err != nil {
		return equipment.Item{}, false, err
	}
	return it, true, nil
}

// ListEquipment filters by well when wellID is non-empty.
func (s *Store) ListEquipment(ctx context.Context, wellID string) ([]equipment.Item, error) {
	q := `SELECT id, serial, name, category, vendor_id, daily_rate_cents, status, well_id FROM equipment`
	var args []any
	if wellID != "" {
		q += ` WHERE well_id = ?`
		args = append(args, wellID)
	}
	q += ` ORDER BY serial`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []equipment.Item
	for rows.Next() {
		it, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) UpdateEquipment(ctx context.Context, it equipment.Item) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE equipment SET serial = ?, name = ?, category = ?, vendor_id = ?,
		   daily_rate_cents = ?, status = ?, well_id = ? WHERE id = ?`,
		it.Serial, it.Name, nullStr(it.Category), nullStr(it.VendorID),
		it.DailyRateCents, string(it.Status), nullStr(it.WellID), it.ID,
	)
	if err != nil {
		return err
	}
	return requireHit(res, "equipment "+it.ID)
}

func (s *Store) OpenRentalPeriod(ctx context.Context, p equipment.RentalPeriod) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rental_periods(id, equipment_id, well_id, start_ms, end_ms, daily_rate_cents)
		 VALUES(?,?,?,?,?,?)`,
		p.ID, p.EquipmentID, p.WellID, msOf(p.Start), nullMS(p.End), p.DailyRateCents,
	)
	return err
}

// CloseOpenRentalPeriod sets End on the item's open period, if any.
// Closing when no period is open is a no-op.
func (s *Store) CloseOpenRentalPeriod(ctx context.Context, equipmentID string, end time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rental_periods SET end_ms = ? WHERE equipment_id = ? AND end_ms IS NULL`,
		msOf(end), equipmentID,
	)
	return err
}

// ListRentalPeriods returns periods overlapping [from, to], filtered by
// well when wellID is non-empty. Open periods overlap any window that
// ends after their start.
func (s *Store) ListRentalPeriods(ctx context.Context, wellID string, from, to time.Time) ([]equipment.RentalPeriod, error) {
	q := `SELECT id, equipment_id, well_id, start_ms, end_ms, daily_rate_cents
	      FROM rental_periods
	      WHERE start_ms <= ? AND (end_ms IS NULL OR end_ms >= ?)`
	args := []any{msOf(to), msOf(from)}
	if wellID != "" {
		q += ` AND well_id = ?`
		args = append(args, wellID)
	}
	q += ` ORDER BY start_ms`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []equipment.RentalPeriod
	for rows.Next() {
		var (
			p       equipment.RentalPeriod
			startMS int64
			endMS   sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.EquipmentID, &p.WellID, &startMS, &endMS, &p.DailyRateCents); err != nil {
			return nil, err
		}
		p.Start = timeOfMS(startMS)
		p.End = timeOfNullMS(endMS)
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanEquipment(row interface{ Scan(...any) error }) (equipment.Item, error) {
	var (
		it                        equipment.Item
		category, vendorID, wellID sql.NullString
	)
	if err := row.Scan(&it.ID, &it.Serial, &it.Name, &category, &vendorID,
		&it.DailyRateCents, &it.Status, &wellID); err != nil {
		return equipment.Item{}, err
	}
	it.Category = strOrEmpty(category)
	it.VendorID = strOrEmpty(vendorID)
	it.WellID = strOrEmpty(wellID)
	return it, nil
}
