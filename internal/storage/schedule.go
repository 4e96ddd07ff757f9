package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wellops/internal/schedule"
)

func (s *Store) CreateSchedule(ctx context.Context, sc schedule.Schedule) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schedules(id, name, well_id, start_ms, active, created_ms)
		 VALUES(?,?,?,?,?,?)`,
		sc.ID, sc.Name, nullStr(sc.WellID), msOf(sc.Start), boolInt(sc.Active), msOf(sc.Created),
	)
	return err
}

func (s *Store) GetSchedule(ctx context.Context, id string) (schedule.Schedule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, well_id, start_ms, active, created_ms FROM schedules WHERE id = ?`, id)
	sc, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return schedule.Schedule{}, fmt.Errorf("schedule %s: %w", id, ErrNotFound)
	}
	return sc, err
}

func (s *Store) ListSchedules(ctx context.Context) ([]schedule.Schedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, well_id, start_ms, active, created_ms FROM schedules ORDER BY created_ms`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Store) UpdateSchedule(ctx context.Context, sc schedule.Schedule) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET name = ?, well_id = ?, start_ms = ?, active = ? WHERE id = ?`,
		sc.Name, nullStr(sc.WellID), msOf(sc.Start), boolInt(sc.Active), sc.ID,
	)
	if err != nil {
		return err
	}
	return requireHit(res, "schedule "+sc.ID)
}

// ActivateSchedule marks one schedule active and deactivates every other
// schedule on the same well, in one transaction.
func (s *Store) ActivateSchedule(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var wellID sql.NullString
		err := tx.QueryRowContext(ctx, `SELECT well_id FROM schedules WHERE id = ?`, id).Scan(&wellID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("schedule %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if wellID.Valid {
			if _, err := tx.ExecContext(ctx,
				`UPDATE schedules SET active = 0 WHERE well_id = ? AND id <> ?`, wellID.String, id); err != nil {
				return err
			}
		} else {
			// Unassigned schedules compete with each other.
			if _, err := tx.ExecContext(ctx,
				`UPDATE schedules SET active = 0 WHERE well_id IS NULL AND id <> ?`, id); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, `UPDATE schedules SET active = 1 WHERE id = ?`, id)
		return err
	})
}

func (s *Store) TasksBySchedule(ctx context.Context, scheduleID string) ([]schedule.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, schedule_id, name, seq, duration_min, start_ms, end_ms, status, well_id, job_code
		 FROM tasks WHERE schedule_id = ? ORDER BY seq`, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Task
	for rows.Next() {
		var (
			t                gschedTask
			wellID, jobCode  sql.NullString
			startMS, endMS   int64
		)
		if err := rows.Scan(&t.ID, &t.ScheduleID, &t.Name, &t.Seq, &t.DurationMin,
			&startMS, &endMS, &t.Status, &wellID, &jobCode); err != nil {
			return nil, err
		}
		out = append(out, schedule.Task{
			ID:          t.ID,
			ScheduleID:  t.ScheduleID,
			Name:        t.Name,
			Seq:         t.Seq,
			DurationMin: t.DurationMin,
			Start:       timeOfMS(startMS),
			End:         timeOfMS(endMS),
			Status:      schedule.Status(t.Status),
			WellID:      strOrEmpty(wellID),
			JobCode:     strOrEmpty(jobCode),
		})
	}
	return out, rows.Err()
}

type gschedTask struct {
	ID, ScheduleID, Name, Status string
	Seq, DurationMin             int
}

// ReplaceTasks swaps the schedule's full task list in one transaction.
// Vendor call assignments survive for task IDs that remain.
func (s *Store) ReplaceTasks(ctx context.Context, scheduleID string, tasks []schedule.Task) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		keep := make([]any, 0, len(tasks))
		for _, t := range tasks {
			keep = append(keep, t.ID)
		}

		// Drop tasks that are no longer in the list (cascades to their calls).
		if len(keep) == 0 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE schedule_id = ?`, scheduleID); err != nil {
				return err
			}
		} else {
			q := `DELETE FROM tasks WHERE schedule_id = ? AND id NOT IN (?` +
				repeatPlaceholder(len(keep)-1) + `)`
			args := append([]any{scheduleID}, keep...)
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return err
			}
		}

		for _, t := range tasks {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO tasks(id, schedule_id, name, seq, duration_min, start_ms, end_ms, status, well_id, job_code)
				 VALUES(?,?,?,?,?,?,?,?,?,?)
				 ON CONFLICT(id) DO UPDATE SET
				   name = excluded.name,
				   seq = excluded.seq,
				   duration_min = excluded.duration_min,
				   start_ms = excluded.start_ms,
				   end_ms = excluded.end_ms,
				   status = excluded.status,
				   well_id = excluded.well_id,
				   job_code = excluded.job_code`,
				t.ID, scheduleID, t.Name, t.Seq, t.DurationMin,
				msOf(t.Start), msOf(t.End), string(t.Status), nullStr(t.WellID), nullStr(t.JobCode),
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) CreateVendorCall(ctx context.Context, c schedule.VendorCall) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vendor_calls(id, task_id, vendor_id, lead_min) VALUES(?,?,?,?)`,
		c.ID, c.TaskID, c.VendorID, c.LeadMin,
	)
	return err
}

func (s *Store) DeleteVendorCall(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM vendor_calls WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireHit(res, "vendor call "+id)
}

func (s *Store) VendorCallsByTask(ctx context.Context, taskID string) ([]schedule.VendorCall, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, vendor_id, lead_min FROM vendor_calls WHERE task_id = ?`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.VendorCall
	for rows.Next() {
		var c schedule.VendorCall
		if err := rows.Scan(&c.ID, &c.TaskID, &c.VendorID, &c.LeadMin); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpcomingVendorCalls returns pending calls for tasks starting inside
// [now, now+lookAhead], joined with what the reminder needs to render.
func (s *Store) UpcomingVendorCalls(ctx context.Context, now, until int64) ([]UpcomingCall, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT vc.id, vc.vendor_id, vc.lead_min, t.id, t.name, t.start_ms, sch.id, sch.name
		 FROM vendor_calls vc
		 JOIN tasks t ON t.id = vc.task_id
		 JOIN schedules sch ON sch.id = t.schedule_id
		 WHERE sch.active = 1
		   AND t.status IN ('scheduled', 'delayed')
		   AND t.start_ms BETWEEN ? AND ?
		 ORDER BY t.start_ms`, now, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UpcomingCall
	for rows.Next() {
		var (
			c       UpcomingCall
			startMS int64
		)
		if err := rows.Scan(&c.CallID, &c.VendorID, &c.LeadMin, &c.TaskID, &c.TaskName,
			&startMS, &c.ScheduleID, &c.ScheduleName); err != nil {
			return nil, err
		}
		c.TaskStart = timeOfMS(startMS)
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpcomingCall is a denormalized row for the reminder scan.
type UpcomingCall struct {
	CallID       string
	VendorID     string
	LeadMin      int
	TaskID       string
	TaskName     string
	TaskStart    time.Time
	ScheduleID   string
	ScheduleName string
}

func scanSchedule(row interface{ Scan(...any) error }) (schedule.Schedule, error) {
	var (
		sc                 schedule.Schedule
		wellID             sql.NullString
		startMS, createdMS int64
		active             int
	)
	if err := row.Scan(&sc.ID, &sc.Name, &wellID, &startMS, &active, &createdMS); err != nil {
		return schedule.Schedule{}, err
	}
	sc.WellID = strOrEmpty(wellID)
	sc.Start = timeOfMS(startMS)
	sc.Created = timeOfMS(createdMS)
	sc.Active = active != 0
	return sc, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ",?"
	}
	return out
}

func requireHit(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
