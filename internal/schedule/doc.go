// Package schedule implements look-ahead schedules for well operations.
//
// A schedule is an ordered plan of upcoming tasks. Tasks form a strict
// time chain: the first task starts at the schedule's start date, every
// later task starts exactly when the previous one ends, and a task ends
// at its start plus its estimated duration. Every structural edit
// (insert, remove, reorder, resize, start-date change) cascades a full
// recomputation forward through the chain.
package schedule
