package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wellops/internal/eventbus"
	"wellops/internal/storage"
	"wellops/internal/vendor"
	logx "wellops/pkg/logx"
)

type fakeStore struct {
	mu      sync.Mutex
	calls   []storage.UpcomingCall
	vendors map[string]vendor.Vendor
	dedup   map[string]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		vendors: map[string]vendor.Vendor{},
		dedup:   map[string]time.Time{},
	}
}

func (f *fakeStore) UpcomingVendorCalls(_ context.Context, now, until int64) ([]storage.UpcomingCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.UpcomingCall
	for _, c := range f.calls {
		ms := c.TaskStart.UnixMilli()
		if ms >= now && ms <= until {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) GetVendor(_ context.Context, id string) (vendor.Vendor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vendors[id]
	if !ok {
		return vendor.Vendor{}, storage.ErrNotFound
	}
	return v, nil
}

func (f *fakeStore) PutDedup(_ context.Context, key string, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dedup[key] = until
	return nil
}

func (f *fakeStore) GetDedup(_ context.Context, key string) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.dedup[key]
	return t, ok, nil
}

func (f *fakeStore) PruneDedup(context.Context) error { return nil }

type captureSink struct {
	mu   sync.Mutex
	got  []Reminder
	fail error
	ch   chan Reminder
}

func newCaptureSink() *captureSink {
	return &captureSink{ch: make(chan Reminder, 16)}
}

func (c *captureSink) Send(_ context.Context, r Reminder) error {
	c.mu.Lock()
	fail := c.fail
	if fail == nil {
		c.got = append(c.got, r)
	}
	c.mu.Unlock()
	if fail != nil {
		return fail
	}
	c.ch <- r
	return nil
}

func (c *captureSink) sent() []Reminder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Reminder(nil), c.got...)
}

func waitReminder(t *testing.T, ch <-chan Reminder) Reminder {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reminder delivery")
		return Reminder{}
	}
}

func startService(t *testing.T, st Store, sink Sink, bus eventbus.Bus) *Service {
	t.Helper()
	svc := New(Config{
		Enabled:     true,
		ScanSpec:    "@every 1h", // scans are driven manually in tests
		LookAhead:   24 * time.Hour,
		DedupWindow: time.Hour,
	}, sink, logx.Nop(), bus, st)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		svc.Stop(ctx)
	})
	return svc
}

func TestScanDeliversDueCall(t *testing.T) {
	st := newFakeStore()
	st.vendors["v1"] = vendor.Vendor{ID: "v1", Name: "Basin Wireline", Phone: "555-0100"}
	taskStart := time.Now().Add(2 * time.Hour)
	st.calls = []storage.UpcomingCall{{
		CallID:       "c1",
		VendorID:     "v1",
		LeadMin:      180, // due an hour ago
		TaskID:       "t1",
		TaskName:     "Rig up wireline",
		TaskStart:    taskStart,
		ScheduleID:   "s1",
		ScheduleName: "Well 12 workover",
	}}

	sink := newCaptureSink()
	svc := startService(t, st, sink, nil)

	if err := svc.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	r := waitReminder(t, sink.ch)
	if r.CallID != "c1" || r.VendorName != "Basin Wireline" || r.VendorPhone != "555-0100" {
		t.Fatalf("unexpected reminder: %+v", r)
	}
	wantDue := taskStart.Add(-3 * time.Hour)
	if !r.DueAt.Equal(wantDue) {
		t.Fatalf("DueAt = %v, want %v", r.DueAt, wantDue)
	}
}

func TestScanSkipsNotYetDue(t *testing.T) {
	st := newFakeStore()
	st.calls = []storage.UpcomingCall{{
		CallID:    "c1",
		VendorID:  "v1",
		LeadMin:   30, // due in 90 minutes
		TaskID:    "t1",
		TaskStart: time.Now().Add(2 * time.Hour),
	}}

	sink := newCaptureSink()
	svc := startService(t, st, sink, nil)

	if err := svc.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if got := sink.sent(); len(got) != 0 {
		t.Fatalf("expected no deliveries, got %d", len(got))
	}
}

func TestScanDedupsRepeatedPasses(t *testing.T) {
	st := newFakeStore()
	st.vendors["v1"] = vendor.Vendor{ID: "v1", Name: "Vendor"}
	st.calls = []storage.UpcomingCall{{
		CallID:    "c1",
		VendorID:  "v1",
		LeadMin:   120,
		TaskID:    "t1",
		TaskStart: time.Now().Add(time.Hour),
	}}

	sink := newCaptureSink()
	svc := startService(t, st, sink, nil)

	for i := 0; i < 3; i++ {
		if err := svc.Scan(context.Background()); err != nil {
			t.Fatalf("Scan #%d: %v", i+1, err)
		}
	}
	waitReminder(t, sink.ch)
	time.Sleep(100 * time.Millisecond)
	if got := sink.sent(); len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(got))
	}
}

func TestRescheduleReArmsReminder(t *testing.T) {
	st := newFakeStore()
	st.vendors["v1"] = vendor.Vendor{ID: "v1", Name: "Vendor"}
	start := time.Now().Add(time.Hour)
	st.calls = []storage.UpcomingCall{{
		CallID: "c1", VendorID: "v1", LeadMin: 120, TaskID: "t1", TaskStart: start,
	}}

	sink := newCaptureSink()
	svc := startService(t, st, sink, nil)

	if err := svc.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	waitReminder(t, sink.ch)

	// The task slips by two hours; the same call becomes due again.
	st.mu.Lock()
	st.calls[0].TaskStart = start.Add(30 * time.Minute)
	st.mu.Unlock()

	if err := svc.Scan(context.Background()); err != nil {
		t.Fatalf("Scan after reschedule: %v", err)
	}
	waitReminder(t, sink.ch)
	if got := sink.sent(); len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
}

func TestFailedDeliveryRetriesOnNextScan(t *testing.T) {
	st := newFakeStore()
	st.vendors["v1"] = vendor.Vendor{ID: "v1", Name: "Vendor"}
	st.calls = []storage.UpcomingCall{{
		CallID: "c1", VendorID: "v1", LeadMin: 120, TaskID: "t1", TaskStart: time.Now().Add(time.Hour),
	}}

	sink := newCaptureSink()
	sink.fail = errors.New("sink down")
	svc := startService(t, st, sink, nil)

	if err := svc.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	// Wait for the failed delivery to clear the in-memory dedup mark.
	deadline := time.Now().Add(2 * time.Second)
	for {
		svc.dmu.Lock()
		n := len(svc.dedup)
		svc.dmu.Unlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("dedup mark not cleared after failed delivery")
		}
		time.Sleep(10 * time.Millisecond)
	}

	sink.mu.Lock()
	sink.fail = nil
	sink.mu.Unlock()

	if err := svc.Scan(context.Background()); err != nil {
		t.Fatalf("Scan retry: %v", err)
	}
	r := waitReminder(t, sink.ch)
	if r.CallID != "c1" {
		t.Fatalf("unexpected reminder: %+v", r)
	}
}

func TestSentEventPublished(t *testing.T) {
	st := newFakeStore()
	st.vendors["v1"] = vendor.Vendor{ID: "v1", Name: "Vendor"}
	st.calls = []storage.UpcomingCall{{
		CallID: "c1", VendorID: "v1", LeadMin: 120, TaskID: "t1", TaskStart: time.Now().Add(time.Hour),
	}}

	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()

	sink := newCaptureSink()
	svc := startService(t, st, sink, bus)

	if err := svc.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	waitReminder(t, sink.ch)

	select {
	case ev := <-events:
		if ev.Type != eventbus.TypeReminderSent {
			t.Fatalf("event type = %q", ev.Type)
		}
		re, ok := ev.Data.(ReminderEvent)
		if !ok || re.CallID != "c1" || re.Error != "" {
			t.Fatalf("unexpected event data: %+v", ev.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestParseSpec(t *testing.T) {
	for _, spec := range []string{"*/1 * * * *", "0 */5 * * * *", "@every 30s"} {
		if _, err := ParseSpec(spec); err != nil {
			t.Errorf("ParseSpec(%q): %v", spec, err)
		}
	}
	if _, err := ParseSpec("not a spec"); err == nil {
		t.Error("ParseSpec accepted garbage")
	}
}

func TestStartDisabled(t *testing.T) {
	svc := New(Config{Enabled: false}, nil, logx.Nop(), nil, newFakeStore())
	if err := svc.Start(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Fatalf("Start = %v, want ErrDisabled", err)
	}
}
