package schedule

import (
	"testing"
	"time"
)

var chainStart = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

func chainTasks() []Task {
	return []Task{
		{ID: "a", Name: "Rig up", Seq: 0, DurationMin: 60, Status: StatusScheduled},
		{ID: "b", Name: "Pressure test", Seq: 1, DurationMin: 30, Status: StatusScheduled},
		{ID: "c", Name: "Run pipe", Seq: 2, DurationMin: 90, Status: StatusScheduled},
	}
}

func at(t *testing.T, hour, min int) time.Time {
	t.Helper()
	return time.Date(2025, 1, 1, hour, min, 0, 0, time.UTC)
}

func checkWindow(t *testing.T, task Task, start, end time.Time) {
	t.Helper()
	if !task.Start.Equal(start) || !task.End.Equal(end) {
		t.Fatalf("task %s: [%v, %v), want [%v, %v)", task.ID, task.Start, task.End, start, end)
	}
}

func TestCascadeChain(t *testing.T) {
	tasks := Cascade(chainStart, chainTasks())

	checkWindow(t, tasks[0], at(t, 8, 0), at(t, 9, 0))
	checkWindow(t, tasks[1], at(t, 9, 0), at(t, 9, 30))
	checkWindow(t, tasks[2], at(t, 9, 30), at(t, 11, 0))

	if err := Validate(chainStart, tasks); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestCascadeIdempotent(t *testing.T) {
	once := Cascade(chainStart, chainTasks())
	twice := Cascade(chainStart, append([]Task(nil), once...))
	for i := range once {
		if !once[i].Start.Equal(twice[i].Start) || !once[i].End.Equal(twice[i].End) || once[i].Seq != twice[i].Seq {
			t.Fatalf("second cascade changed task %s: %+v vs %+v", once[i].ID, once[i], twice[i])
		}
	}
}

func TestCascadeRenumbersSparseSeq(t *testing.T) {
	tasks := []Task{
		{ID: "y", Seq: 10, DurationMin: 15},
		{ID: "x", Seq: 3, DurationMin: 45},
	}
	tasks = Cascade(chainStart, tasks)
	if tasks[0].ID != "x" || tasks[0].Seq != 0 || tasks[1].ID != "y" || tasks[1].Seq != 1 {
		t.Fatalf("unexpected order after renumber: %+v", tasks)
	}
	checkWindow(t, tasks[1], at(t, 8, 45), at(t, 9, 0))
}

func TestCascadeEmpty(t *testing.T) {
	if got := Cascade(chainStart, nil); len(got) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
}

func TestReorderSwap(t *testing.T) {
	tasks, err := Reorder(chainStart, chainTasks(), []string{"a", "c", "b"})
	if err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	checkWindow(t, tasks[0], at(t, 8, 0), at(t, 9, 0))
	checkWindow(t, tasks[1], at(t, 9, 0), at(t, 10, 30)) // c
	checkWindow(t, tasks[2], at(t, 10, 30), at(t, 11, 0)) // b
}

func TestReorderRejectsBadPermutation(t *testing.T) {
	if _, err := Reorder(chainStart, chainTasks(), []string{"a", "b"}); err == nil {
		t.Fatalf("expected length mismatch error")
	}
	if _, err := Reorder(chainStart, chainTasks(), []string{"a", "b", "zz"}); err == nil {
		t.Fatalf("expected unknown id error")
	}
}

func TestInsertBetween(t *testing.T) {
	d := Task{ID: "d", Name: "Wait on cement", DurationMin: 15, Status: StatusScheduled}
	tasks := Insert(chainStart, chainTasks(), 1, d)

	if len(tasks) != 4 {
		t.Fatalf("expected 4 tasks, got %d", len(tasks))
	}
	checkWindow(t, tasks[0], at(t, 8, 0), at(t, 9, 0))  // a unchanged
	checkWindow(t, tasks[1], at(t, 9, 0), at(t, 9, 15)) // d
	checkWindow(t, tasks[2], at(t, 9, 15), at(t, 9, 45))
	checkWindow(t, tasks[3], at(t, 9, 45), at(t, 11, 15))
	for i, want := range []string{"a", "d", "b", "c"} {
		if tasks[i].ID != want {
			t.Fatalf("position %d: got %s, want %s", i, tasks[i].ID, want)
		}
	}
}

func TestInsertClampsPosition(t *testing.T) {
	tail := Task{ID: "z", DurationMin: 10}
	tasks := Insert(chainStart, chainTasks(), 99, tail)
	if tasks[len(tasks)-1].ID != "z" {
		t.Fatalf("expected z appended, got %+v", tasks)
	}
	head := Task{ID: "w", DurationMin: 10}
	tasks = Insert(chainStart, chainTasks(), -5, head)
	if tasks[0].ID != "w" || !tasks[0].Start.Equal(chainStart) {
		t.Fatalf("expected w first at start date, got %+v", tasks[0])
	}
}

func TestRemoveClosesGap(t *testing.T) {
	tasks, ok := Remove(chainStart, chainTasks(), "b")
	if !ok {
		t.Fatalf("expected removal")
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	checkWindow(t, tasks[1], at(t, 9, 0), at(t, 10, 30))
	if tasks[1].Seq != 1 {
		t.Fatalf("seq gap not closed: %+v", tasks[1])
	}

	if _, ok := Remove(chainStart, chainTasks(), "nope"); ok {
		t.Fatalf("expected ok=false for unknown id")
	}
}

func TestMove(t *testing.T) {
	tasks, err := Move(chainStart, chainTasks(), "c", 0)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	checkWindow(t, tasks[0], at(t, 8, 0), at(t, 9, 30)) // c first
	checkWindow(t, tasks[1], at(t, 9, 30), at(t, 10, 30))
	checkWindow(t, tasks[2], at(t, 10, 30), at(t, 11, 0))

	if _, err := Move(chainStart, chainTasks(), "nope", 0); err == nil {
		t.Fatalf("expected error for unknown id")
	}
}

func TestSetDuration(t *testing.T) {
	tasks, ok := SetDuration(chainStart, chainTasks(), "a", 120)
	if !ok {
		t.Fatalf("expected task found")
	}
	checkWindow(t, tasks[0], at(t, 8, 0), at(t, 10, 0))
	checkWindow(t, tasks[1], at(t, 10, 0), at(t, 10, 30))
	checkWindow(t, tasks[2], at(t, 10, 30), at(t, 12, 0))
}

func TestSetStartDateShiftsWholeChain(t *testing.T) {
	newStart := time.Date(2025, 1, 2, 6, 0, 0, 0, time.UTC)
	tasks := Cascade(newStart, Cascade(chainStart, chainTasks()))
	if !tasks[0].Start.Equal(newStart) {
		t.Fatalf("first task start = %v, want %v", tasks[0].Start, newStart)
	}
	if err := Validate(newStart, tasks); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestVendorCallDueAt(t *testing.T) {
	c := VendorCall{LeadMin: 90}
	start := at(t, 9, 30)
	if got := c.DueAt(start); !got.Equal(at(t, 8, 0)) {
		t.Fatalf("DueAt = %v, want %v", got, at(t, 8, 0))
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus(" In_Progress "); err != nil || s != StatusInProgress {
		t.Fatalf("ParseStatus: %v %v", s, err)
	}
	if _, err := ParseStatus("paused"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}
