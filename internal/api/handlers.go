package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"wellops/internal/equipment"
	"wellops/internal/finance"
	"wellops/internal/importer"
	"wellops/internal/reminder"
	"wellops/internal/schedule"
	"wellops/internal/storage"
	"wellops/internal/vendor"
	"wellops/internal/well"
)

// Deps are the service handles the API exposes. Reminders and Audit are
// optional; their endpoints 404 when unset.
type Deps struct {
	Schedules *schedule.Service
	Wells     *well.Service
	Vendors   *vendor.Service
	Equipment *equipment.Service
	Finance   *finance.Builder
	Imports   *importer.Service
	Reminders *reminder.Service
	Audit     AuditStore
}

// AuditStore is the read surface for the audit endpoint.
type AuditStore interface {
	RecentAudit(ctx context.Context, n int) ([]storage.AuditEntry, error)
}

func (s *Server) handler(token string) http.Handler {
	mux := http.NewServeMux()

	// Liveness stays unauthenticated so probes work without the token.
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	api := http.NewServeMux()
	s.routes(api)
	mux.Handle("/api/v1/", withAuth(token, http.StripPrefix("/api/v1", api)))
	return mux
}

func (s *Server) routes(mux *http.ServeMux) {
	d := s.deps

	mux.HandleFunc("GET /health", s.handleHealth)

	// Wells and job codes.
	mux.HandleFunc("GET /wells", func(w http.ResponseWriter, r *http.Request) {
		list, err := d.Wells.List(r.Context())
		respond(w, list, err)
	})
	mux.HandleFunc("POST /wells", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Name   string `json:"name"`
			Lease  string `json:"lease"`
			Status string `json:"status"`
		}
		if !decode(w, r, &in) {
			return
		}
		st, err := well.ParseWellStatus(in.Status)
		if err != nil {
			badRequest(w, err)
			return
		}
		wl, err := d.Wells.Create(r.Context(), in.Name, in.Lease, st)
		respondCreated(w, wl, err)
	})
	mux.HandleFunc("GET /wells/{id}", func(w http.ResponseWriter, r *http.Request) {
		wl, err := d.Wells.Get(r.Context(), r.PathValue("id"))
		respond(w, wl, err)
	})
	mux.HandleFunc("PUT /wells/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Status string `json:"status"`
		}
		if !decode(w, r, &in) {
			return
		}
		st, err := well.ParseWellStatus(in.Status)
		if err != nil {
			badRequest(w, err)
			return
		}
		wl, err := d.Wells.SetStatus(r.Context(), r.PathValue("id"), st)
		respond(w, wl, err)
	})
	mux.HandleFunc("GET /jobcodes", func(w http.ResponseWriter, r *http.Request) {
		list, err := d.Wells.JobCodes(r.Context())
		respond(w, list, err)
	})
	mux.HandleFunc("POST /jobcodes", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		}
		if !decode(w, r, &in) {
			return
		}
		jc, err := d.Wells.AddJobCode(r.Context(), in.Code, in.Description)
		respondCreated(w, jc, err)
	})

	// Vendors.
	mux.HandleFunc("GET /vendors", func(w http.ResponseWriter, r *http.Request) {
		activeOnly := r.URL.Query().Get("all") == ""
		list, err := d.Vendors.List(r.Context(), activeOnly)
		respond(w, list, err)
	})
	mux.HandleFunc("POST /vendors", func(w http.ResponseWriter, r *http.Request) {
		var in vendor.Input
		if !decode(w, r, &in) {
			return
		}
		v, err := d.Vendors.Create(r.Context(), in)
		respondCreated(w, v, err)
	})
	mux.HandleFunc("GET /vendors/{id}", func(w http.ResponseWriter, r *http.Request) {
		v, err := d.Vendors.Get(r.Context(), r.PathValue("id"))
		respond(w, v, err)
	})
	mux.HandleFunc("PUT /vendors/{id}", func(w http.ResponseWriter, r *http.Request) {
		var in vendor.Input
		if !decode(w, r, &in) {
			return
		}
		v, err := d.Vendors.Update(r.Context(), r.PathValue("id"), in)
		respond(w, v, err)
	})
	mux.HandleFunc("DELETE /vendors/{id}", func(w http.ResponseWriter, r *http.Request) {
		err := d.Vendors.Deactivate(r.Context(), r.PathValue("id"))
		respond(w, map[string]bool{"ok": true}, err)
	})

	// Equipment and rentals.
	mux.HandleFunc("GET /equipment", func(w http.ResponseWriter, r *http.Request) {
		list, err := d.Equipment.List(r.Context(), r.URL.Query().Get("well_id"))
		respond(w, list, err)
	})
	mux.HandleFunc("POST /equipment", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Serial    string `json:"serial"`
			Name      string `json:"name"`
			Category  string `json:"category"`
			VendorID  string `json:"vendor_id"`
			DailyRate string `json:"daily_rate"`
		}
		if !decode(w, r, &in) {
			return
		}
		rate, err := importer.ParseCents(in.DailyRate)
		if err != nil {
			badRequest(w, err)
			return
		}
		it, err := d.Equipment.Register(r.Context(), equipment.Input{
			Serial:         in.Serial,
			Name:           in.Name,
			Category:       in.Category,
			VendorID:       in.VendorID,
			DailyRateCents: rate,
		})
		respondCreated(w, it, err)
	})
	mux.HandleFunc("GET /equipment/{id}", func(w http.ResponseWriter, r *http.Request) {
		it, err := d.Equipment.Get(r.Context(), r.PathValue("id"))
		respond(w, it, err)
	})
	mux.HandleFunc("POST /equipment/{id}/transfer", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			WellID string `json:"well_id"`
			At     string `json:"at"`
		}
		if !decode(w, r, &in) {
			return
		}
		at, err := parseTime(in.At)
		if err != nil {
			badRequest(w, err)
			return
		}
		it, err := d.Equipment.Transfer(r.Context(), r.PathValue("id"), in.WellID, at)
		respond(w, it, err)
	})
	mux.HandleFunc("POST /equipment/{id}/return", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			At string `json:"at"`
		}
		if !decode(w, r, &in) {
			return
		}
		at, err := parseTime(in.At)
		if err != nil {
			badRequest(w, err)
			return
		}
		it, err := d.Equipment.Return(r.Context(), r.PathValue("id"), at)
		respond(w, it, err)
	})
	mux.HandleFunc("POST /equipment/{id}/lost", func(w http.ResponseWriter, r *http.Request) {
		it, err := d.Equipment.MarkLost(r.Context(), r.PathValue("id"), time.Now())
		respond(w, it, err)
	})
	mux.HandleFunc("GET /equipment/costs", func(w http.ResponseWriter, r *http.Request) {
		from, err := parseTime(r.URL.Query().Get("from"))
		if err != nil {
			badRequest(w, fmt.Errorf("from: %w", err))
			return
		}
		to, err := parseTime(r.URL.Query().Get("to"))
		if err != nil {
			badRequest(w, fmt.Errorf("to: %w", err))
			return
		}
		sum, err := d.Equipment.Costs(r.Context(), r.URL.Query().Get("well_id"), from, to)
		respond(w, sum, err)
	})

	// Schedules and tasks.
	mux.HandleFunc("GET /schedules", func(w http.ResponseWriter, r *http.Request) {
		list, err := d.Schedules.List(r.Context())
		respond(w, list, err)
	})
	mux.HandleFunc("POST /schedules", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Name   string `json:"name"`
			WellID string `json:"well_id"`
			Start  string `json:"start"`
		}
		if !decode(w, r, &in) {
			return
		}
		start, err := parseTime(in.Start)
		if err != nil {
			badRequest(w, err)
			return
		}
		sch, err := d.Schedules.Create(r.Context(), in.Name, in.WellID, start)
		respondCreated(w, sch, err)
	})
	mux.HandleFunc("GET /schedules/{id}", func(w http.ResponseWriter, r *http.Request) {
		sch, tasks, err := d.Schedules.Get(r.Context(), r.PathValue("id"))
		respond(w, scheduleView{Schedule: sch, Tasks: tasks}, err)
	})
	mux.HandleFunc("POST /schedules/{id}/activate", func(w http.ResponseWriter, r *http.Request) {
		err := d.Schedules.Activate(r.Context(), r.PathValue("id"))
		respond(w, map[string]bool{"ok": true}, err)
	})
	mux.HandleFunc("POST /schedules/{id}/duplicate", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Name  string `json:"name"`
			Start string `json:"start"`
		}
		if !decode(w, r, &in) {
			return
		}
		start, err := parseTime(in.Start)
		if err != nil {
			badRequest(w, err)
			return
		}
		sch, err := d.Schedules.Duplicate(r.Context(), r.PathValue("id"), in.Name, start)
		respondCreated(w, sch, err)
	})
	mux.HandleFunc("PUT /schedules/{id}/start", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Start string `json:"start"`
		}
		if !decode(w, r, &in) {
			return
		}
		start, err := parseTime(in.Start)
		if err != nil {
			badRequest(w, err)
			return
		}
		tasks, err := d.Schedules.SetStartDate(r.Context(), r.PathValue("id"), start)
		respond(w, tasks, err)
	})
	mux.HandleFunc("POST /schedules/{id}/tasks", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			At          *int   `json:"at"` // omitted means append
			Name        string `json:"name"`
			DurationMin int    `json:"duration_min"`
			Status      string `json:"status"`
			WellID      string `json:"well_id"`
			JobCode     string `json:"job_code"`
		}
		if !decode(w, r, &in) {
			return
		}
		st := schedule.StatusScheduled
		if in.Status != "" {
			var err error
			st, err = schedule.ParseStatus(in.Status)
			if err != nil {
				badRequest(w, err)
				return
			}
		}
		at := int(^uint(0) >> 1) // append
		if in.At != nil {
			at = *in.At
		}
		tasks, err := d.Schedules.AddTask(r.Context(), r.PathValue("id"), at, schedule.TaskInput{
			Name:        in.Name,
			DurationMin: in.DurationMin,
			Status:      st,
			WellID:      in.WellID,
			JobCode:     in.JobCode,
		})
		respondCreated(w, tasks, err)
	})
	mux.HandleFunc("DELETE /schedules/{id}/tasks/{task}", func(w http.ResponseWriter, r *http.Request) {
		tasks, err := d.Schedules.RemoveTask(r.Context(), r.PathValue("id"), r.PathValue("task"))
		respond(w, tasks, err)
	})
	mux.HandleFunc("POST /schedules/{id}/tasks/{task}/move", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			To int `json:"to"`
		}
		if !decode(w, r, &in) {
			return
		}
		tasks, err := d.Schedules.MoveTask(r.Context(), r.PathValue("id"), r.PathValue("task"), in.To)
		respond(w, tasks, err)
	})
	mux.HandleFunc("POST /schedules/{id}/reorder", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			IDs []string `json:"ids"`
		}
		if !decode(w, r, &in) {
			return
		}
		tasks, err := d.Schedules.ReorderTasks(r.Context(), r.PathValue("id"), in.IDs)
		respond(w, tasks, err)
	})
	mux.HandleFunc("PUT /schedules/{id}/tasks/{task}/duration", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Minutes int `json:"minutes"`
		}
		if !decode(w, r, &in) {
			return
		}
		tasks, err := d.Schedules.SetTaskDuration(r.Context(), r.PathValue("id"), r.PathValue("task"), in.Minutes)
		respond(w, tasks, err)
	})
	mux.HandleFunc("PUT /schedules/{id}/tasks/{task}/status", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Status string `json:"status"`
		}
		if !decode(w, r, &in) {
			return
		}
		st, err := schedule.ParseStatus(in.Status)
		if err != nil {
			badRequest(w, err)
			return
		}
		tasks, err := d.Schedules.SetTaskStatus(r.Context(), r.PathValue("id"), r.PathValue("task"), st)
		respond(w, tasks, err)
	})

	// Vendor call assignments.
	mux.HandleFunc("POST /tasks/{task}/calls", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			VendorID string `json:"vendor_id"`
			LeadMin  int    `json:"lead_min"`
		}
		if !decode(w, r, &in) {
			return
		}
		c, err := d.Schedules.AssignVendorCall(r.Context(), r.PathValue("task"), in.VendorID, in.LeadMin)
		respondCreated(w, c, err)
	})
	mux.HandleFunc("DELETE /calls/{id}", func(w http.ResponseWriter, r *http.Request) {
		err := d.Schedules.RemoveVendorCall(r.Context(), r.PathValue("id"))
		respond(w, map[string]bool{"ok": true}, err)
	})

	// Statement.
	mux.HandleFunc("GET /statement", func(w http.ResponseWriter, r *http.Request) {
		from, err := parseTime(r.URL.Query().Get("from"))
		if err != nil {
			badRequest(w, fmt.Errorf("from: %w", err))
			return
		}
		to, err := parseTime(r.URL.Query().Get("to"))
		if err != nil {
			badRequest(w, fmt.Errorf("to: %w", err))
			return
		}
		st, err := d.Finance.Build(r.Context(), from, to)
		if err != nil {
			writeError(w, err)
			return
		}
		if r.URL.Query().Get("format") == "text" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			finance.RenderText(w, st)
			return
		}
		writeJSON(w, http.StatusOK, st)
	})

	// CSV imports. The request body is the CSV file.
	mux.HandleFunc("POST /import/equipment", func(w http.ResponseWriter, r *http.Request) {
		sum, err := d.Imports.ImportEquipment(r.Context(), r.Body)
		respond(w, sum, err)
	})
	mux.HandleFunc("POST /import/vendors", func(w http.ResponseWriter, r *http.Request) {
		sum, err := d.Imports.ImportVendors(r.Context(), r.Body)
		respond(w, sum, err)
	})

	// Reminders and audit.
	mux.HandleFunc("POST /reminders/scan", func(w http.ResponseWriter, r *http.Request) {
		if d.Reminders == nil {
			http.NotFound(w, r)
			return
		}
		err := d.Reminders.Scan(r.Context())
		respond(w, map[string]bool{"ok": true}, err)
	})
	mux.HandleFunc("GET /audit", func(w http.ResponseWriter, r *http.Request) {
		if d.Audit == nil {
			http.NotFound(w, r)
			return
		}
		n := 100
		if raw := r.URL.Query().Get("n"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v <= 0 {
				badRequest(w, fmt.Errorf("n must be a positive integer"))
				return
			}
			n = v
		}
		list, err := d.Audit.RecentAudit(r.Context(), n)
		respond(w, list, err)
	})
}

type scheduleView struct {
	Schedule schedule.Schedule `json:"schedule"`
	Tasks    []schedule.Task   `json:"tasks"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{"status": "ok", "time": time.Now().UTC()}
	if sup := s.Supervisor(); sup != nil {
		out["api"] = sup.Counters()
	}
	if s.deps.Reminders != nil {
		if sup := s.deps.Reminders.Supervisor(); sup != nil {
			out["reminder"] = sup.Counters()
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		badRequest(w, fmt.Errorf("decode request: %w", err))
		return false
	}
	return true
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("time is required (RFC 3339 or YYYY-MM-DD)")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("bad time %q (want RFC 3339 or YYYY-MM-DD)", s)
}

func respond(w http.ResponseWriter, v any, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func respondCreated(w http.ResponseWriter, v any, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusBadRequest
	switch {
	case isNotFound(err):
		code = http.StatusNotFound
	case errors.Is(err, equipment.ErrDuplicateSerial):
		code = http.StatusConflict
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound) ||
		errors.Is(err, schedule.ErrNotFound) ||
		errors.Is(err, equipment.ErrNotFound) ||
		errors.Is(err, vendor.ErrNotFound) ||
		errors.Is(err, well.ErrNotFound)
}
