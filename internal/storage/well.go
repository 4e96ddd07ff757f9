package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"wellops/internal/well"
)

func (s *Store) CreateWell(ctx context.Context, w well.Well) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO wells(id, name, lease, status) VALUES(?,?,?,?)`,
		w.ID, w.Name, nullStr(w.Lease), string(w.Status),
	)
	return err
}

func (s *Store) GetWell(ctx context.Context, id string) (well.Well, error) {
	var (
		w     well.Well
		lease sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, lease, status FROM wells WHERE id = ?`, id).
		Scan(&w.ID, &w.Name, &lease, &w.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return well.Well{}, fmt.Errorf("well %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return well.Well{}, err
	}
	w.Lease = strOrEmpty(lease)
	return w, nil
}

func (s *Store) ListWells(ctx context.Context) ([]well.Well, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, lease, status FROM wells ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []well.Well
	for rows.Next() {
		var (
			w     well.Well
			lease sql.NullString
		)
		if err := rows.Scan(&w.ID, &w.Name, &lease, &w.Status); err != nil {
			return nil, err
		}
		w.Lease = strOrEmpty(lease)
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) UpdateWell(ctx context.Context, w well.Well) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE wells SET name = ?, lease = ?, status = ? WHERE id = ?`,
		w.Name, nullStr(w.Lease), string(w.Status), w.ID,
	)
	if err != nil {
		return err
	}
	return requireHit(res, "well "+w.ID)
}

func (s *Store) CreateJobCode(ctx context.Context, jc well.JobCode) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_codes(id, code, description) VALUES(?,?,?)`,
		jc.ID, jc.Code, nullStr(jc.Description),
	)
	return err
}

func (s *Store) ListJobCodes(ctx context.Context) ([]well.JobCode, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, code, description FROM job_codes ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []well.JobCode
	for rows.Next() {
		var (
			jc   well.JobCode
			desc sql.NullString
		)
		if err := rows.Scan(&jc.ID, &jc.Code, &desc); err != nil {
			return nil, err
		}
		jc.Description = strOrEmpty(desc)
		out = append(out, jc)
	}
	return out, rows.Err()
}
