package schedule

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

// Cascade recomputes every task's start/end from the schedule start, in
// sequence order. Tasks are sorted by Seq, renumbered densely from 0,
// and mutated in place:
//
//	task[0].Start = start
//	task[i].Start = task[i-1].End
//	task[i].End   = task[i].Start + task[i].Duration
//
// The pass is O(n) and idempotent: cascading an already-consistent chain
// changes nothing.
func Cascade(start time.Time, tasks []Task) []Task {
	slices.SortStableFunc(tasks, func(a, b Task) int { return cmp.Compare(a.Seq, b.Seq) })
	cursor := start
	for i := range tasks {
		tasks[i].Seq = i
		tasks[i].Start = cursor
		tasks[i].End = cursor.Add(tasks[i].Duration())
		cursor = tasks[i].End
	}
	return tasks
}

// Insert places t at position at (clamped to [0, len]) and cascades.
// Existing tasks at or after the position shift forward by one.
func Insert(start time.Time, tasks []Task, at int, t Task) []Task {
	tasks = Cascade(start, tasks)
	if at < 0 {
		at = 0
	}
	if at > len(tasks) {
		at = len(tasks)
	}
	for i := at; i < len(tasks); i++ {
		tasks[i].Seq++
	}
	t.Seq = at
	tasks = append(tasks, t)
	return Cascade(start, tasks)
}

// Remove deletes the task with the given id, closes the sequence gap,
// and cascades. The second result reports whether the id was found.
func Remove(start time.Time, tasks []Task, id string) ([]Task, bool) {
	idx := slices.IndexFunc(tasks, func(t Task) bool { return t.ID == id })
	if idx == -1 {
		return Cascade(start, tasks), false
	}
	tasks = slices.Delete(tasks, idx, idx+1)
	return Cascade(start, tasks), true
}

// Move relocates the task with the given id to position to (clamped) and
// cascades. Relative order of the remaining tasks is preserved.
func Move(start time.Time, tasks []Task, id string, to int) ([]Task, error) {
	tasks = Cascade(start, tasks)
	from := slices.IndexFunc(tasks, func(t Task) bool { return t.ID == id })
	if from == -1 {
		return tasks, fmt.Errorf("task %s not in schedule", id)
	}
	if to < 0 {
		to = 0
	}
	if to >= len(tasks) {
		to = len(tasks) - 1
	}
	if to == from {
		return tasks, nil
	}
	moved := tasks[from]
	tasks = slices.Delete(tasks, from, from+1)
	tasks = slices.Insert(tasks, to, moved)
	for i := range tasks {
		tasks[i].Seq = i
	}
	return Cascade(start, tasks), nil
}

// Reorder applies a complete new ordering given as task IDs and cascades.
// ids must be a permutation of the current task IDs.
func Reorder(start time.Time, tasks []Task, ids []string) ([]Task, error) {
	if len(ids) != len(tasks) {
		return nil, fmt.Errorf("reorder: got %d ids for %d tasks", len(ids), len(tasks))
	}
	byID := make(map[string]Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	out := make([]Task, 0, len(ids))
	for i, id := range ids {
		t, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("reorder: unknown task id %s", id)
		}
		delete(byID, id)
		t.Seq = i
		out = append(out, t)
	}
	return Cascade(start, out), nil
}

// SetDuration updates a task's estimated duration and cascades.
// The second result reports whether the id was found.
func SetDuration(start time.Time, tasks []Task, id string, minutes int) ([]Task, bool) {
	found := false
	for i := range tasks {
		if tasks[i].ID == id {
			tasks[i].DurationMin = minutes
			found = true
			break
		}
	}
	return Cascade(start, tasks), found
}

// Validate reports the first violation of the chain invariant, or nil.
// Useful for asserting storage round-trips kept the chain intact.
func Validate(start time.Time, tasks []Task) error {
	slices.SortStableFunc(tasks, func(a, b Task) int { return cmp.Compare(a.Seq, b.Seq) })
	cursor := start
	for i, t := range tasks {
		if t.Seq != i {
			return fmt.Errorf("task %s: seq %d, want %d", t.ID, t.Seq, i)
		}
		if !t.Start.Equal(cursor) {
			return fmt.Errorf("task %s: start %v, want %v", t.ID, t.Start, cursor)
		}
		if want := t.Start.Add(t.Duration()); !t.End.Equal(want) {
			return fmt.Errorf("task %s: end %v, want %v", t.ID, t.End, want)
		}
		cursor = t.End
	}
	return nil
}
