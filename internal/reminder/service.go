package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wellops/internal/eventbus"
	rtsup "wellops/internal/runtime/supervisor"
	"wellops/internal/storage"
	"wellops/internal/vendor"
	logx "wellops/pkg/logx"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"
)

var (
	ErrDisabled  = errors.New("reminder disabled")
	ErrQueueFull = errors.New("reminder queue full")
	ErrStopped   = errors.New("reminder stopped")
)

// Store is the persistence surface the reminder pipeline needs.
// *storage.Store satisfies it.
type Store interface {
	UpcomingVendorCalls(ctx context.Context, now, until int64) ([]storage.UpcomingCall, error)
	GetVendor(ctx context.Context, id string) (vendor.Vendor, error)
	PutDedup(ctx context.Context, key string, until time.Time) error
	GetDedup(ctx context.Context, key string) (time.Time, bool, error)
	PruneDedup(ctx context.Context) error
}

type job struct {
	r Reminder
	// dedupKey is computed at scan time for cheap per-worker processing.
	dedupKey string
}

// Service implements the async reminder pipeline:
// cron scan + queue + worker pool + rate limit + dedup.
//
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log   logx.Logger
	sink  Sink
	bus   eventbus.Bus
	store Store

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	enqueueWG sync.WaitGroup

	queue    chan job
	sup      *rtsup.Supervisor
	stopDone chan struct{} // non-nil while stopping

	// In-memory dedup cache: key -> suppress until
	dmu   sync.Mutex
	dedup map[string]time.Time
}

func New(cfg Config, sink Sink, log logx.Logger, bus eventbus.Bus, store Store) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if sink == nil {
		sink = LogSink{Log: log}
	}
	s := &Service{
		sink:  sink,
		log:   log,
		bus:   bus,
		store: store,
		dedup: map[string]time.Time{},
	}
	s.applyLocked(cfg)
	return s
}

// Supervisor returns the pipeline's internal supervisor (nil if not started).
// This is used for operational visibility (e.g. the health endpoint).
func (s *Service) Supervisor() *rtsup.Supervisor {
	s.mu.Lock()
	sup := s.sup
	s.mu.Unlock()
	return sup
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	// Defaults
	if cfg.ScanSpec == "" {
		cfg.ScanSpec = "*/1 * * * *"
	}
	if cfg.LookAhead <= 0 {
		cfg.LookAhead = 24 * time.Hour
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = 24 * time.Hour
	}

	s.cfg = cfg
	// Token bucket: burst = rate per sec, so short spikes don't block too hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// ParseSpec validates a scan cron spec. Both 5-field and 6-field (with
// seconds) specs are accepted, plus descriptors like "@every 5m".
func ParseSpec(spec string) (cron.Schedule, error) {
	p := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return p.Parse(spec)
}

// Start launches the scan loop and worker pool. It is idempotent.
func (s *Service) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	// If stopping, wait for it to finish before restarting.
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
	}
	if s.queue != nil {
		s.mu.Unlock()
		return nil
	}
	if !s.cfg.Enabled {
		s.mu.Unlock()
		return ErrDisabled
	}

	sched, err := ParseSpec(s.cfg.ScanSpec)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("scan spec %q: %w", s.cfg.ScanSpec, err)
	}

	s.queue = make(chan job, s.cfg.QueueSize)
	s.accepting = true
	workers := s.cfg.Workers

	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log.With(logx.String("comp", "reminder"))),
		// Reminder failures should not take down the whole app.
		rtsup.WithCancelOnError(false),
	)
	sup := s.sup
	q := s.queue
	s.mu.Unlock()

	sup.GoRestart("scan", func(c context.Context) error {
		s.scanLoop(c, sched)
		return c.Err()
	})

	for i := 0; i < workers; i++ {
		name := fmt.Sprintf("worker.%d", i)
		sup.GoRestart(name, func(c context.Context) error {
			s.workerLoop(c, q)
			// Clean exits happen on shutdown (queue close).
			s.mu.Lock()
			stopping := s.stopDone != nil
			s.mu.Unlock()
			if stopping {
				return context.Canceled
			}
			return c.Err()
		})
	}
	return nil
}

// Stop stops intake and drains the queue best-effort until ctx deadline.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	q := s.queue
	sup := s.sup
	if q == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}

	done := make(chan struct{})
	s.stopDone = done
	s.accepting = false
	s.mu.Unlock()

	// Shutdown happens asynchronously so callers can time out without leaking state.
	go func() {
		defer close(done)
		// Wait for in-flight enqueues to finish, then close the queue so workers can drain.
		s.enqueueWG.Wait()
		func() {
			defer func() { _ = recover() }()
			close(q)
		}()
		if sup != nil {
			sup.Cancel()
			_ = sup.Wait(context.Background())
		}

		s.mu.Lock()
		s.queue = nil
		s.stopDone = nil
		s.sup = nil
		s.mu.Unlock()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if sup != nil {
			sup.Cancel()
		}
	}
}

func (s *Service) scanLoop(ctx context.Context, sched cron.Schedule) {
	for {
		next := sched.Next(time.Now())
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}
		if err := s.Scan(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("reminder scan failed", logx.Err(err))
		}
	}
}

// Scan finds due vendor calls and enqueues reminders for them. It is called
// by the scan loop on the configured cron spec, and may also be invoked
// directly to force an immediate pass.
func (s *Service) Scan(ctx context.Context) error {
	s.mu.Lock()
	lookAhead := s.cfg.LookAhead
	window := s.cfg.DedupWindow
	st := s.store
	s.mu.Unlock()

	if st == nil {
		return nil
	}

	now := time.Now()
	until := now.Add(lookAhead)
	calls, err := st.UpcomingVendorCalls(ctx, now.UnixMilli(), until.UnixMilli())
	if err != nil {
		return fmt.Errorf("scan upcoming calls: %w", err)
	}

	enqueued := 0
	for _, c := range calls {
		dueAt := c.TaskStart.Add(-time.Duration(c.LeadMin) * time.Minute)
		if dueAt.After(now) {
			continue
		}

		// Reschedules change the task start, which re-arms the reminder.
		key := fmt.Sprintf("call|%s|%d", c.CallID, c.TaskStart.UnixMilli())
		if !s.dedupAllow(ctx, key, now, window, st) {
			continue
		}

		r := Reminder{
			CallID:       c.CallID,
			VendorID:     c.VendorID,
			TaskID:       c.TaskID,
			TaskName:     c.TaskName,
			TaskStart:    c.TaskStart,
			DueAt:        dueAt,
			ScheduleID:   c.ScheduleID,
			ScheduleName: c.ScheduleName,
		}
		if v, verr := st.GetVendor(ctx, c.VendorID); verr == nil {
			r.VendorName = v.Name
			r.VendorPhone = v.Phone
		} else {
			r.VendorName = c.VendorID
		}

		if err := s.enqueue(r, key); err != nil {
			if errors.Is(err, ErrQueueFull) {
				s.log.Warn("reminder queue full", logx.String("call_id", c.CallID))
				continue
			}
			return err
		}
		enqueued++
	}

	// Expired dedup rows accumulate slowly; pruning per scan keeps the table small.
	_ = st.PruneDedup(ctx)

	if enqueued > 0 {
		s.log.Debug("reminder scan", logx.Int("due", enqueued), logx.Int("upcoming", len(calls)))
	}
	return nil
}

func (s *Service) enqueue(r Reminder, key string) error {
	s.mu.Lock()
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return ErrStopped
	}
	q := s.queue
	s.enqueueWG.Add(1)
	s.mu.Unlock()
	defer s.enqueueWG.Done()

	select {
	case q <- job{r: r, dedupKey: key}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *Service) workerLoop(ctx context.Context, q <-chan job) {
	if q == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			s.deliver(ctx, j)
		}
	}
}

func (s *Service) deliver(ctx context.Context, j job) {
	s.mu.Lock()
	lim := s.limiter
	sink := s.sink
	bus := s.bus
	st := s.store
	window := s.cfg.DedupWindow
	s.mu.Unlock()

	if sink == nil {
		return
	}

	// Rate limit (honor cancellation).
	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return
		}
	}

	// Bound per-send call. Keep tight to avoid hanging workers.
	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err := sink.Send(callCtx, j.r)
	cancel()

	now := time.Now()
	if err != nil {
		// The dedup mark is only written after a successful send, so the
		// next scan retries failed deliveries.
		s.clearDedup(j.dedupKey)
		s.log.Warn("reminder delivery failed",
			logx.String("call_id", j.r.CallID),
			logx.String("vendor", j.r.VendorName),
			logx.Err(err),
		)
		if bus != nil {
			bus.Publish(eventbus.Event{Type: eventbus.TypeReminderSent, Time: now, Data: ReminderEvent{
				CallID: j.r.CallID, VendorID: j.r.VendorID, TaskID: j.r.TaskID, At: now, Error: err.Error(),
			}})
		}
		return
	}

	if st != nil {
		pctx, pcancel := context.WithTimeout(ctx, 250*time.Millisecond)
		_ = st.PutDedup(pctx, j.dedupKey, now.Add(window))
		pcancel()
	}
	if bus != nil {
		bus.Publish(eventbus.Event{Type: eventbus.TypeReminderSent, Time: now, Data: ReminderEvent{
			CallID: j.r.CallID, VendorID: j.r.VendorID, TaskID: j.r.TaskID, At: now,
		}})
	}
}

// dedupAllow reports whether a reminder with this key may be enqueued now.
// A successful check reserves the key in memory so concurrent scans don't
// double-enqueue; the persistent mark is written after delivery.
func (s *Service) dedupAllow(ctx context.Context, key string, now time.Time, window time.Duration, st Store) bool {
	s.dmu.Lock()
	if s.dedup == nil {
		s.dedup = map[string]time.Time{}
	}
	if until, ok := s.dedup[key]; ok && now.Before(until) {
		s.dmu.Unlock()
		return false
	}
	s.dmu.Unlock()

	// Persistent check for cross-restart dedup (best-effort).
	if st != nil {
		cctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		until, ok, err := st.GetDedup(cctx, key)
		cancel()
		if err == nil && ok && now.Before(until) {
			s.dmu.Lock()
			s.dedup[key] = until
			s.dmu.Unlock()
			return false
		}
	}

	s.dmu.Lock()
	s.dedup[key] = now.Add(window)
	// Prune expired entries opportunistically.
	for k, until := range s.dedup {
		if !now.Before(until) {
			delete(s.dedup, k)
		}
	}
	s.dmu.Unlock()
	return true
}

func (s *Service) clearDedup(key string) {
	s.dmu.Lock()
	delete(s.dedup, key)
	s.dmu.Unlock()
}
