package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"wellops/internal/eventbus"
	logx "wellops/pkg/logx"
)

var ErrNotFound = errors.New("schedule not found")

// Store is the persistence surface the schedule service needs.
// *storage.Store satisfies it.
type Store interface {
	CreateSchedule(ctx context.Context, s Schedule) error
	GetSchedule(ctx context.Context, id string) (Schedule, error)
	ListSchedules(ctx context.Context) ([]Schedule, error)
	UpdateSchedule(ctx context.Context, s Schedule) error
	// ActivateSchedule marks one schedule active and deactivates every other
	// schedule on the same well, in one transaction.
	ActivateSchedule(ctx context.Context, id string) error

	TasksBySchedule(ctx context.Context, scheduleID string) ([]Task, error)
	// ReplaceTasks swaps the schedule's full task list in one transaction.
	ReplaceTasks(ctx context.Context, scheduleID string, tasks []Task) error

	CreateVendorCall(ctx context.Context, c VendorCall) error
	DeleteVendorCall(ctx context.Context, id string) error
	VendorCallsByTask(ctx context.Context, taskID string) ([]VendorCall, error)
}

// TaskInput carries user-editable task fields.
type TaskInput struct {
	Name        string
	DurationMin int
	Status      Status
	WellID      string
	JobCode     string
}

func (in TaskInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("task name is required")
	}
	if in.DurationMin < 0 {
		return fmt.Errorf("task duration must be >= 0 minutes")
	}
	return nil
}

// Service owns look-ahead schedule mutations. Every structural edit goes
// through the cascade so the chain invariant holds after each call.
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

func (s *Service) Create(ctx context.Context, name, wellID string, start time.Time) (Schedule, error) {
	if strings.TrimSpace(name) == "" {
		return Schedule{}, fmt.Errorf("schedule name is required")
	}
	sch := Schedule{
		ID:      uuid.NewString(),
		Name:    name,
		WellID:  wellID,
		Start:   start,
		Created: time.Now(),
	}
	if err := s.store.CreateSchedule(ctx, sch); err != nil {
		return Schedule{}, err
	}
	s.log.Info("schedule created", logx.String("schedule", sch.ID), logx.String("name", name))
	return sch, nil
}

func (s *Service) Get(ctx context.Context, id string) (Schedule, []Task, error) {
	sch, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return Schedule{}, nil, err
	}
	tasks, err := s.store.TasksBySchedule(ctx, id)
	if err != nil {
		return Schedule{}, nil, err
	}
	return sch, tasks, nil
}

func (s *Service) List(ctx context.Context) ([]Schedule, error) {
	return s.store.ListSchedules(ctx)
}

// Activate makes the schedule the single active one on its well.
func (s *Service) Activate(ctx context.Context, id string) error {
	if err := s.store.ActivateSchedule(ctx, id); err != nil {
		return err
	}
	s.publish(eventbus.TypeScheduleActivated, id, 0)
	return nil
}

// Duplicate copies a schedule and all its tasks under a new name, with
// times recomputed from the new start date.
func (s *Service) Duplicate(ctx context.Context, id, newName string, newStart time.Time) (Schedule, error) {
	src, tasks, err := s.Get(ctx, id)
	if err != nil {
		return Schedule{}, err
	}
	// The copy stays on the source's well; only times move.
	dup, err := s.Create(ctx, newName, src.WellID, newStart)
	if err != nil {
		return Schedule{}, err
	}
	copied := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		t.ID = uuid.NewString()
		t.ScheduleID = dup.ID
		copied = append(copied, t)
	}
	copied = Cascade(newStart, copied)
	if err := s.store.ReplaceTasks(ctx, dup.ID, copied); err != nil {
		return Schedule{}, err
	}
	s.publish(eventbus.TypeScheduleRecalculated, dup.ID, len(copied))
	return dup, nil
}

// SetStartDate moves the whole chain to a new start.
func (s *Service) SetStartDate(ctx context.Context, id string, start time.Time) ([]Task, error) {
	sch, tasks, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sch.Start = start
	if err := s.store.UpdateSchedule(ctx, sch); err != nil {
		return nil, err
	}
	return s.commit(ctx, sch, Cascade(start, tasks))
}

// AddTask inserts a new task at position at (clamped) and cascades.
func (s *Service) AddTask(ctx context.Context, scheduleID string, at int, in TaskInput) ([]Task, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	sch, tasks, err := s.Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = StatusScheduled
	}
	t := Task{
		ID:          uuid.NewString(),
		ScheduleID:  scheduleID,
		Name:        in.Name,
		DurationMin: in.DurationMin,
		Status:      status,
		WellID:      in.WellID,
		JobCode:     in.JobCode,
	}
	return s.commit(ctx, sch, Insert(sch.Start, tasks, at, t))
}

// RemoveTask deletes a task, closes the sequence gap, and cascades.
func (s *Service) RemoveTask(ctx context.Context, scheduleID, taskID string) ([]Task, error) {
	sch, tasks, err := s.Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	next, ok := Remove(sch.Start, tasks, taskID)
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	return s.commit(ctx, sch, next)
}

// MoveTask relocates one task to a new position and cascades.
func (s *Service) MoveTask(ctx context.Context, scheduleID, taskID string, to int) ([]Task, error) {
	sch, tasks, err := s.Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	next, err := Move(sch.Start, tasks, taskID, to)
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, sch, next)
}

// ReorderTasks applies a full new ordering (drag-reorder) and cascades.
func (s *Service) ReorderTasks(ctx context.Context, scheduleID string, ids []string) ([]Task, error) {
	sch, tasks, err := s.Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	next, err := Reorder(sch.Start, tasks, ids)
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, sch, next)
}

// SetTaskDuration resizes a task and cascades.
func (s *Service) SetTaskDuration(ctx context.Context, scheduleID, taskID string, minutes int) ([]Task, error) {
	if minutes < 0 {
		return nil, fmt.Errorf("task duration must be >= 0 minutes")
	}
	sch, tasks, err := s.Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	next, ok := SetDuration(sch.Start, tasks, taskID, minutes)
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	return s.commit(ctx, sch, next)
}

// SetTaskStatus updates a task's lifecycle state. Status changes don't
// affect the chain, but the list is still persisted through the cascade
// path so a stale chain self-heals on the next edit.
func (s *Service) SetTaskStatus(ctx context.Context, scheduleID, taskID string, status Status) ([]Task, error) {
	sch, tasks, err := s.Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	found := false
	for i := range tasks {
		if tasks[i].ID == taskID {
			tasks[i].Status = status
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	return s.commit(ctx, sch, Cascade(sch.Start, tasks))
}

// AssignVendorCall links a vendor call reminder to a task.
func (s *Service) AssignVendorCall(ctx context.Context, taskID, vendorID string, leadMin int) (VendorCall, error) {
	if leadMin < 0 {
		return VendorCall{}, fmt.Errorf("lead time must be >= 0 minutes")
	}
	c := VendorCall{
		ID:       uuid.NewString(),
		TaskID:   taskID,
		VendorID: vendorID,
		LeadMin:  leadMin,
	}
	if err := s.store.CreateVendorCall(ctx, c); err != nil {
		return VendorCall{}, err
	}
	return c, nil
}

func (s *Service) RemoveVendorCall(ctx context.Context, id string) error {
	return s.store.DeleteVendorCall(ctx, id)
}

func (s *Service) commit(ctx context.Context, sch Schedule, tasks []Task) ([]Task, error) {
	if err := s.store.ReplaceTasks(ctx, sch.ID, tasks); err != nil {
		return nil, err
	}
	s.publish(eventbus.TypeScheduleRecalculated, sch.ID, len(tasks))
	return tasks, nil
}

// RecalcEvent is the payload for schedule.* events.
type RecalcEvent struct {
	ScheduleID string `json:"schedule_id"`
	Tasks      int    `json:"tasks"`
}

func (s *Service) publish(typ, scheduleID string, n int) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: RecalcEvent{ScheduleID: scheduleID, Tasks: n}})
}
