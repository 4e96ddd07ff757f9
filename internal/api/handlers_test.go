package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wellops/internal/equipment"
	"wellops/internal/finance"
	"wellops/internal/importer"
	"wellops/internal/schedule"
	"wellops/internal/storage"
	"wellops/internal/vendor"
	"wellops/internal/well"
	logx "wellops/pkg/logx"
)

func newTestHandler(t *testing.T, token string) http.Handler {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "ops.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	srv := New(Config{Enabled: true}, Deps{
		Schedules: schedule.NewService(st, nil, logx.Nop()),
		Wells:     well.NewService(st),
		Vendors:   vendor.NewService(st),
		Equipment: equipment.NewService(st, nil, logx.Nop()),
		Finance:   finance.NewBuilder(st, "Test Oil Co"),
		Imports:   importer.NewService(st, nil, logx.Nop()),
		Audit:     st,
	}, logx.Nop())
	return srv.handler(token)
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(t, "")
	w := doJSON(t, h, "GET", "/healthz", "")
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", w.Code, w.Body.String())
	}
}

func TestAuthToken(t *testing.T) {
	h := newTestHandler(t, "sekret")

	// Liveness needs no token.
	if w := doJSON(t, h, "GET", "/healthz", ""); w.Code != http.StatusOK {
		t.Fatalf("healthz with token set: %d", w.Code)
	}

	if w := doJSON(t, h, "GET", "/api/v1/wells", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", w.Code)
	}

	r := httptest.NewRequest("GET", "/api/v1/wells", nil)
	r.Header.Set("Authorization", "Bearer sekret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("with token: %d %s", w.Code, w.Body.String())
	}
}

func TestScheduleLifecycle(t *testing.T) {
	h := newTestHandler(t, "")

	w := doJSON(t, h, "POST", "/api/v1/schedules",
		`{"name":"Well 7 workover","start":"2026-03-01T08:00:00Z"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create schedule: %d %s", w.Code, w.Body.String())
	}
	sch := decodeBody[schedule.Schedule](t, w)

	for _, task := range []string{
		`{"name":"MIRU","duration_min":60}`,
		`{"name":"Kill well","duration_min":30}`,
		`{"name":"Pull tubing","duration_min":90}`,
	} {
		w = doJSON(t, h, "POST", "/api/v1/schedules/"+sch.ID+"/tasks", task)
		if w.Code != http.StatusCreated {
			t.Fatalf("add task: %d %s", w.Code, w.Body.String())
		}
	}
	tasks := decodeBody[[]schedule.Task](t, w)
	if len(tasks) != 3 {
		t.Fatalf("task count = %d", len(tasks))
	}
	// The chain cascades from the schedule start.
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	if !tasks[0].Start.Equal(start) {
		t.Fatalf("task[0].Start = %v", tasks[0].Start)
	}
	if !tasks[1].Start.Equal(start.Add(60*time.Minute)) || !tasks[2].Start.Equal(start.Add(90*time.Minute)) {
		t.Fatalf("chain broken: %v / %v", tasks[1].Start, tasks[2].Start)
	}

	// Shift the start date; every task moves.
	w = doJSON(t, h, "PUT", "/api/v1/schedules/"+sch.ID+"/start", `{"start":"2026-03-02T06:00:00Z"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("set start: %d %s", w.Code, w.Body.String())
	}
	tasks = decodeBody[[]schedule.Task](t, w)
	if !tasks[0].Start.Equal(time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)) {
		t.Fatalf("start shift: %v", tasks[0].Start)
	}

	// Move the last task to the front.
	w = doJSON(t, h, "POST", "/api/v1/schedules/"+sch.ID+"/tasks/"+tasks[2].ID+"/move", `{"to":0}`)
	if w.Code != http.StatusOK {
		t.Fatalf("move: %d %s", w.Code, w.Body.String())
	}
	tasks = decodeBody[[]schedule.Task](t, w)
	if tasks[0].Name != "Pull tubing" {
		t.Fatalf("move result: %s", tasks[0].Name)
	}

	if w = doJSON(t, h, "POST", "/api/v1/schedules/"+sch.ID+"/activate", ""); w.Code != http.StatusOK {
		t.Fatalf("activate: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(t, h, "GET", "/api/v1/schedules/"+sch.ID, "")
	view := decodeBody[scheduleView](t, w)
	if !view.Schedule.Active {
		t.Fatal("schedule not active")
	}

	if w = doJSON(t, h, "GET", "/api/v1/schedules/nope", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing schedule: %d", w.Code)
	}
}

func TestDuplicateScheduleKeepsWell(t *testing.T) {
	h := newTestHandler(t, "")

	w := doJSON(t, h, "POST", "/api/v1/wells", `{"name":"Baker 9-1","lease":"Baker"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create well: %d %s", w.Code, w.Body.String())
	}
	wl := decodeBody[well.Well](t, w)

	body := fmt.Sprintf(`{"name":"Original","well_id":%q,"start":"2026-04-01T08:00:00Z"}`, wl.ID)
	w = doJSON(t, h, "POST", "/api/v1/schedules", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create schedule: %d %s", w.Code, w.Body.String())
	}
	sch := decodeBody[schedule.Schedule](t, w)

	w = doJSON(t, h, "POST", "/api/v1/schedules/"+sch.ID+"/tasks", `{"name":"MIRU","duration_min":45}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("add task: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, "POST", "/api/v1/schedules/"+sch.ID+"/duplicate",
		`{"name":"Copy","start":"2026-05-01T06:00:00Z"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("duplicate: %d %s", w.Code, w.Body.String())
	}
	dup := decodeBody[schedule.Schedule](t, w)
	if dup.WellID != wl.ID {
		t.Fatalf("duplicate lost well linkage: %q, want %q", dup.WellID, wl.ID)
	}

	w = doJSON(t, h, "GET", "/api/v1/schedules/"+dup.ID, "")
	view := decodeBody[scheduleView](t, w)
	if len(view.Tasks) != 1 || view.Tasks[0].Name != "MIRU" {
		t.Fatalf("duplicate tasks: %+v", view.Tasks)
	}
	if !view.Tasks[0].Start.Equal(time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)) {
		t.Fatalf("duplicate did not cascade from new start: %v", view.Tasks[0].Start)
	}
}

func TestEquipmentTransferAndStatement(t *testing.T) {
	h := newTestHandler(t, "")

	w := doJSON(t, h, "POST", "/api/v1/wells", `{"name":"Smith 14-2","lease":"Smith"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create well: %d %s", w.Code, w.Body.String())
	}
	wl := decodeBody[well.Well](t, w)

	w = doJSON(t, h, "POST", "/api/v1/equipment",
		`{"serial":"PMP-101","name":"Triplex pump","category":"pumps","daily_rate":"450.00"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	it := decodeBody[equipment.Item](t, w)

	// Duplicate serial conflicts.
	w = doJSON(t, h, "POST", "/api/v1/equipment", `{"serial":"pmp-101","name":"Dup","daily_rate":"1"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate serial: %d %s", w.Code, w.Body.String())
	}

	body := fmt.Sprintf(`{"well_id":%q,"at":"2026-03-01T00:00:00Z"}`, wl.ID)
	w = doJSON(t, h, "POST", "/api/v1/equipment/"+it.ID+"/transfer", body)
	if w.Code != http.StatusOK {
		t.Fatalf("transfer: %d %s", w.Code, w.Body.String())
	}
	moved := decodeBody[equipment.Item](t, w)
	if moved.Status != equipment.StatusOnLocation || moved.WellID != wl.ID {
		t.Fatalf("transfer state: %+v", moved)
	}

	w = doJSON(t, h, "POST", "/api/v1/equipment/"+it.ID+"/return", `{"at":"2026-03-05T00:00:00Z"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("return: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, "GET", "/api/v1/statement?from=2026-03-01&to=2026-03-31", "")
	if w.Code != http.StatusOK {
		t.Fatalf("statement: %d %s", w.Code, w.Body.String())
	}
	st := decodeBody[finance.Statement](t, w)
	if len(st.Wells) != 1 || len(st.Wells[0].Lines) != 1 {
		t.Fatalf("statement shape: %+v", st)
	}
	// Midnight Mar 1 through midnight Mar 5 is four full billable days.
	if st.TotalCents != 4*45000 {
		t.Fatalf("total = %d", st.TotalCents)
	}

	w = doJSON(t, h, "GET", "/api/v1/statement?from=2026-03-01&to=2026-03-31&format=text", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Smith 14-2") {
		t.Fatalf("text statement: %d %q", w.Code, w.Body.String())
	}

	w = doJSON(t, h, "GET", "/api/v1/equipment/costs?from=2026-03-01&to=2026-03-31", "")
	if w.Code != http.StatusOK {
		t.Fatalf("costs: %d %s", w.Code, w.Body.String())
	}
	sum := decodeBody[equipment.CostSummary](t, w)
	if sum.TotalCents != 4*45000 || sum.ByCategoryCents["pumps"] != 4*45000 {
		t.Fatalf("cost summary: %+v", sum)
	}
}

func TestImportEndpoint(t *testing.T) {
	h := newTestHandler(t, "")

	csv := "serial,name,daily_rate\nBOP-007,Annular BOP,1250\n"
	r := httptest.NewRequest("POST", "/api/v1/import/equipment", strings.NewReader(csv))
	r.Header.Set("Content-Type", "text/csv")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("import: %d %s", w.Code, w.Body.String())
	}
	sum := decodeBody[importer.Summary](t, w)
	if sum.Created != 1 || sum.Updated != 0 {
		t.Fatalf("summary: %+v", sum)
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:7070": true,
		"localhost:7070": true,
		"[::1]:7070":     true,
		"0.0.0.0:7070":   false,
		":7070":          false,
		"10.0.0.5:7070":  false,
		"garbage":        false,
	}
	for addr, want := range cases {
		if got := isLoopbackAddr(addr); got != want {
			t.Errorf("isLoopbackAddr(%q) = %v, want %v", addr, got, want)
		}
	}
}
