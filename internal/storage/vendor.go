package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"wellops/internal/vendor"
)

func (s *Store) CreateVendor(ctx context.Context, v vendor.Vendor) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vendors(id, name, service, phone, email, active) VALUES(?,?,?,?,?,?)`,
		v.ID, v.Name, nullStr(v.Service), nullStr(v.Phone), nullStr(v.Email), boolInt(v.Active),
	)
	return err
}

func (s *Store) GetVendor(ctx context.Context, id string) (vendor.Vendor, error) {
	v, err := s.scanVendorRow(s.db.QueryRowContext(ctx,
		`SELECT id, name, service, phone, email, active FROM vendors WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return vendor.Vendor{}, fmt.Errorf("vendor %s: %w", id, ErrNotFound)
	}
	return v, err
}

// FindVendorByName matches case-insensitively on the exact name.
func (s *Store) FindVendorByName(ctx context.Context, name string) (vendor.Vendor, bool, error) {
	v, err := s.scanVendorRow(s.db.QueryRowContext(ctx,
		`SELECT id, name, service, phone, email, active FROM vendors
		 WHERE name = ? COLLATE NOCASE LIMIT 1`, strings.TrimSpace(name)))
	if errors.Is(err, sql.ErrNoRows) {
		return vendor.Vendor{}, false, nil
	}
	if err != nil {
		return vendor.Vendor{}, false, err
	}
	return v, true, nil
}

func (s *Store) ListVendors(ctx context.Context, activeOnly bool) ([]vendor.Vendor, error) {
	q := `SELECT id, name, service, phone, email, active FROM vendors`
	if activeOnly {
		q += ` WHERE active = 1`
	}
	q += ` ORDER BY name`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []vendor.Vendor
	for rows.Next() {
		v, err := s.scanVendorRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) UpdateVendor(ctx context.Context, v vendor.Vendor) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vendors SET name = ?, service = ?, phone = ?, email = ?, active = ? WHERE id = ?`,
		v.Name, nullStr(v.Service), nullStr(v.Phone), nullStr(v.Email), boolInt(v.Active), v.ID,
	)
	if err != nil {
		return err
	}
	return requireHit(res, "vendor "+v.ID)
}

func (s *Store) scanVendorRow(row interface{ Scan(...any) error }) (vendor.Vendor, error) {
	var (
		v                     vendor.Vendor
		service, phone, email sql.NullString
		active                int
	)
	if err := row.Scan(&v.ID, &v.Name, &service, &phone, &email, &active); err != nil {
		return vendor.Vendor{}, err
	}
	v.Service = strOrEmpty(service)
	v.Phone = strOrEmpty(phone)
	v.Email = strOrEmpty(email)
	v.Active = active != 0
	return v, nil
}
