package reminder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	logx "wellops/pkg/logx"
)

// Sink delivers a single reminder. Implementations must be safe for
// concurrent use; the worker pool calls Send from multiple goroutines.
type Sink interface {
	Send(ctx context.Context, r Reminder) error
}

// LogSink writes reminders to the structured log. It is the default sink
// and never fails.
type LogSink struct {
	Log logx.Logger
}

func (s LogSink) Send(_ context.Context, r Reminder) error {
	log := s.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	log.Info("vendor call due",
		logx.String("vendor", r.VendorName),
		logx.String("phone", r.VendorPhone),
		logx.String("task", r.TaskName),
		logx.Time("task_start", r.TaskStart),
		logx.Time("due_at", r.DueAt),
		logx.String("schedule", r.ScheduleName),
	)
	return nil
}

// WebhookSink POSTs reminders as JSON to a fixed URL.
type WebhookSink struct {
	URL    string
	Client *http.Client
}

func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSink{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

func (s *WebhookSink) Send(ctx context.Context, r Reminder) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode reminder: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	cl := s.Client
	if cl == nil {
		cl = http.DefaultClient
	}
	resp, err := cl.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}
