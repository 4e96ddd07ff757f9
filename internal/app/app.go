// Package app wires configuration, storage, and services into a running
// daemon: config manager with hot reload, logging, the SQLite store, the
// domain services, the reminder pipeline, and the HTTP API.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"wellops/internal/api"
	"wellops/internal/config"
	"wellops/internal/equipment"
	"wellops/internal/eventbus"
	"wellops/internal/finance"
	"wellops/internal/importer"
	"wellops/internal/reminder"
	"wellops/internal/runtime/supervisor"
	"wellops/internal/schedule"
	"wellops/internal/storage"
	"wellops/internal/vendor"
	"wellops/internal/well"
	logx "wellops/pkg/logx"
)

// StopReason tags why the app is shutting down (for the final log line).
type StopReason string

const (
	StopUnknown    StopReason = "unknown"
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
	StopAppStop    StopReason = "app_stop"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store *storage.Store

	schedules *schedule.Service
	wells     *well.Service
	vendors   *vendor.Service
	equipment *equipment.Service
	finance   *finance.Builder
	imports   *importer.Service
	reminders *reminder.Service
	api       *api.Server
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	schedules := schedule.NewService(store, bus, log.With(logx.String("comp", "schedule")))
	wells := well.NewService(store)
	vendors := vendor.NewService(store)
	equip := equipment.NewService(store, bus, log.With(logx.String("comp", "equipment")))
	fin := finance.NewBuilder(store, cfg.Company.Name)
	loc, err := loadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: %w", err)
	}
	fin.SetLocation(loc)
	imports := importer.NewService(store, bus, log.With(logx.String("comp", "import")))

	rcfg, sink, err := mapReminderConfig(cfg, log)
	if err != nil {
		return nil, err
	}
	reminders := reminder.New(rcfg, sink, log.With(logx.String("comp", "reminder")), bus, store)

	acfg, err := mapAPIConfig(cfg)
	if err != nil {
		return nil, err
	}
	apiSrv := api.New(acfg, api.Deps{
		Schedules: schedules,
		Wells:     wells,
		Vendors:   vendors,
		Equipment: equip,
		Finance:   fin,
		Imports:   imports,
		Reminders: reminders,
		Audit:     store,
	}, log.With(logx.String("comp", "api")))

	return &App{
		cfgPath:   cfgPath,
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		bus:       bus,
		store:     store,
		schedules: schedules,
		wells:     wells,
		vendors:   vendors,
		equipment: equip,
		finance:   fin,
		imports:   imports,
		reminders: reminders,
		api:       apiSrv,
	}, nil
}

// Store exposes the system of record for CLI subcommands that operate
// directly (import, statement) without the daemon running.
func (a *App) Store() *storage.Store { return a.store }

func (a *App) Schedules() *schedule.Service { return a.schedules }
func (a *App) Imports() *importer.Service   { return a.imports }
func (a *App) Finance() *finance.Builder    { return a.finance }
func (a *App) Logger() logx.Logger          { return a.log }

// Done is closed when the app supervisor context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// Transactional config reload: validate before commit/publish.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		if _, _, err := mapReminderConfig(cfg, logx.Nop()); err != nil {
			return err
		}
		if _, err := mapAPIConfig(cfg); err != nil {
			return err
		}
		if _, err := loadLocation(cfg.Schedule.Timezone); err != nil {
			return fmt.Errorf("schedule.timezone: %w", err)
		}
		return nil
	})

	if a.reminders.Enabled() {
		if err := a.reminders.Start(a.sup.Context()); err != nil {
			return err
		}
	}
	if a.api.Enabled() {
		a.api.Start(a.sup.Context())
	}

	a.startAuditWriter()

	// Hot reload config fan-out.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(c, newCfg)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	if cfg == nil {
		return
	}

	// Logging applies live.
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	// Reminder pipeline applies live; sink and storage changes need a restart.
	prevEnabled := a.reminders.Enabled()
	rcfg, _, err := mapReminderConfig(cfg, logx.Nop())
	if err != nil {
		a.log.Warn("invalid reminder config; keeping previous", logx.Err(err))
	} else {
		a.reminders.Apply(rcfg)
		switch {
		case prevEnabled && !rcfg.Enabled:
			a.log.Info("reminders disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.reminders.Stop(stopCtx)
			cancel()
		case !prevEnabled && rcfg.Enabled:
			a.log.Info("reminders enabled via config")
			if err := a.reminders.Start(ctx); err != nil {
				a.log.Warn("reminder start failed", logx.Err(err))
			}
		}
	}

	// Statement dates follow the configured timezone.
	if loc, err := loadLocation(cfg.Schedule.Timezone); err != nil {
		a.log.Warn("invalid schedule.timezone; keeping previous", logx.Err(err))
	} else {
		a.finance.SetLocation(loc)
	}

	// API restarts itself when the bind or auth settings changed.
	if acfg, err := mapAPIConfig(cfg); err != nil {
		a.log.Warn("invalid api config; keeping previous", logx.Err(err))
	} else {
		a.api.Reconfigure(ctx, acfg)
	}

	a.log.Info("config reloaded")
}

// startAuditWriter subscribes to the event bus and appends an audit row
// for every domain event. Audit is best-effort: a write failure logs a
// warning and moves on.
func (a *App) startAuditWriter() {
	events, unsub := a.bus.Subscribe(256)
	a.sup.Go0("audit.writer", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				entry, ok := auditEntryFor(e)
				if !ok {
					continue
				}
				wctx, cancel := context.WithTimeout(c, time.Second)
				err := a.store.AppendAudit(wctx, entry)
				cancel()
				if err != nil && c.Err() == nil {
					a.log.Warn("audit write failed", logx.String("type", e.Type), logx.Err(err))
				}
			}
		}
	})
}

func auditEntryFor(e eventbus.Event) (storage.AuditEntry, bool) {
	entry := storage.AuditEntry{At: e.Time, Action: e.Type}
	switch data := e.Data.(type) {
	case schedule.RecalcEvent:
		entry.Entity = "schedule"
		entry.EntityID = data.ScheduleID
	case equipment.TransferEvent:
		entry.Entity = "equipment"
		entry.EntityID = data.EquipmentID
	case importer.ImportEvent:
		entry.Entity = "import"
		entry.EntityID = data.Kind
	case reminder.ReminderEvent:
		entry.Entity = "vendor_call"
		entry.EntityID = data.CallID
	default:
		return storage.AuditEntry{}, false
	}
	if b, err := json.Marshal(e.Data); err == nil {
		entry.Detail = string(b)
	}
	return entry, true
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// Each shutdown step gets an upper bound so one component can't stall
	// the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context)) {
		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, max)
		}
		done := make(chan struct{})
		go func() {
			defer close(done)
			defer func() {
				if r := recover(); r != nil {
					a.log.Warn("panic in stop step", logx.String("name", name), logx.Any("panic", r))
				}
			}()
			fn(stepCtx)
		}()
		select {
		case <-done:
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name))
		}
		if cancel != nil {
			cancel()
		}
	}

	step("api", 2*time.Second, func(c context.Context) { a.api.Stop(c) })
	step("reminders", 2*time.Second, func(c context.Context) { a.reminders.Stop(c) })
	step("storage", time.Second, func(context.Context) { _ = a.store.Close() })
	step("supervisor", 2*time.Second, func(c context.Context) { _ = a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}

// loadLocation resolves the configured IANA timezone. Empty means the
// host's local timezone.
func loadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid %q: %w", tz, err)
	}
	return loc, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Path: cfg.Storage.Path, BusyTimeout: busy}, nil
}

func mapReminderConfig(cfg *config.Config, log logx.Logger) (reminder.Config, reminder.Sink, error) {
	rc := cfg.Reminder
	if rc == nil {
		return reminder.Config{}, nil, nil
	}

	lookAhead, err := config.ParseDurationOrDefault("reminder.look_ahead", rc.LookAhead, 0)
	if err != nil {
		return reminder.Config{}, nil, err
	}
	dedup, err := config.ParseDurationOrDefault("reminder.dedup_window", rc.DedupWindow, 0)
	if err != nil {
		return reminder.Config{}, nil, err
	}
	if spec := strings.TrimSpace(rc.ScanSpec); spec != "" {
		if _, err := reminder.ParseSpec(spec); err != nil {
			return reminder.Config{}, nil, fmt.Errorf("reminder.scan_spec: %w", err)
		}
	}

	out := reminder.Config{
		Enabled:     rc.Enabled,
		ScanSpec:    rc.ScanSpec,
		LookAhead:   lookAhead,
		Workers:     rc.Workers,
		QueueSize:   rc.QueueSize,
		RatePerSec:  rc.RatePerSec,
		DedupWindow: dedup,
	}

	var sink reminder.Sink
	switch strings.ToLower(strings.TrimSpace(rc.Sink.Type)) {
	case "", "log":
		sink = reminder.LogSink{Log: log.With(logx.String("comp", "reminder"))}
	case "webhook":
		if strings.TrimSpace(rc.Sink.URL) == "" {
			return reminder.Config{}, nil, fmt.Errorf("reminder.sink.url is required for webhook sink")
		}
		timeout, err := config.ParseDurationOrDefault("reminder.sink.timeout", rc.Sink.Timeout, 10*time.Second)
		if err != nil {
			return reminder.Config{}, nil, err
		}
		sink = reminder.NewWebhookSink(rc.Sink.URL, timeout)
	default:
		return reminder.Config{}, nil, fmt.Errorf("reminder.sink.type: unknown %q", rc.Sink.Type)
	}
	return out, sink, nil
}

func mapAPIConfig(cfg *config.Config) (api.Config, error) {
	ac := cfg.API
	if ac == nil {
		return api.Config{}, nil
	}
	read, err := config.ParseDurationOrDefault("api.read_timeout", ac.ReadTimeout, 10*time.Second)
	if err != nil {
		return api.Config{}, err
	}
	write, err := config.ParseDurationOrDefault("api.write_timeout", ac.WriteTimeout, 30*time.Second)
	if err != nil {
		return api.Config{}, err
	}
	idle, err := config.ParseDurationOrDefault("api.idle_timeout", ac.IdleTimeout, 60*time.Second)
	if err != nil {
		return api.Config{}, err
	}
	return api.Config{
		Enabled:       ac.Enabled,
		Addr:          ac.Addr,
		Token:         ac.Token,
		AllowInsecure: ac.AllowInsecure,
		ReadTimeout:   read,
		WriteTimeout:  write,
		IdleTimeout:   idle,
	}, nil
}
