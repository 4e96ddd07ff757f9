// Package well holds the well and job-code registries referenced by
// schedules and rentals.
package well

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("well not found")

// WellStatus tracks a well's operational state.
type WellStatus string

const (
	WellActive    WellStatus = "active"
	WellShutIn    WellStatus = "shut_in"
	WellPlugged   WellStatus = "plugged"
	WellDrilling  WellStatus = "drilling"
	WellCompleted WellStatus = "completed"
)

// ParseWellStatus normalizes a raw status string. Empty means active.
func ParseWellStatus(raw string) (WellStatus, error) {
	switch s := WellStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case "":
		return WellActive, nil
	case WellActive, WellShutIn, WellPlugged, WellDrilling, WellCompleted:
		return s, nil
	default:
		return "", fmt.Errorf("unknown well status %q", raw)
	}
}

type Well struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Lease  string     `json:"lease,omitempty"`
	Status WellStatus `json:"status"`
}

// JobCode classifies work for cost and statement grouping.
type JobCode struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

// Store is the persistence surface the well registry needs.
type Store interface {
	CreateWell(ctx context.Context, w Well) error
	GetWell(ctx context.Context, id string) (Well, error)
	ListWells(ctx context.Context) ([]Well, error)
	UpdateWell(ctx context.Context, w Well) error

	CreateJobCode(ctx context.Context, jc JobCode) error
	ListJobCodes(ctx context.Context) ([]JobCode, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service { return &Service{store: store} }

func (s *Service) Create(ctx context.Context, name, lease string, status WellStatus) (Well, error) {
	if strings.TrimSpace(name) == "" {
		return Well{}, fmt.Errorf("well name is required")
	}
	if status == "" {
		status = WellActive
	}
	w := Well{ID: uuid.NewString(), Name: name, Lease: lease, Status: status}
	if err := s.store.CreateWell(ctx, w); err != nil {
		return Well{}, err
	}
	return w, nil
}

func (s *Service) Get(ctx context.Context, id string) (Well, error) {
	return s.store.GetWell(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Well, error) {
	return s.store.ListWells(ctx)
}

func (s *Service) SetStatus(ctx context.Context, id string, status WellStatus) (Well, error) {
	w, err := s.store.GetWell(ctx, id)
	if err != nil {
		return Well{}, err
	}
	w.Status = status
	if err := s.store.UpdateWell(ctx, w); err != nil {
		return Well{}, err
	}
	return w, nil
}

func (s *Service) AddJobCode(ctx context.Context, code, description string) (JobCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return JobCode{}, fmt.Errorf("job code is required")
	}
	jc := JobCode{ID: uuid.NewString(), Code: code, Description: description}
	if err := s.store.CreateJobCode(ctx, jc); err != nil {
		return JobCode{}, err
	}
	return jc, nil
}

func (s *Service) JobCodes(ctx context.Context) ([]JobCode, error) {
	return s.store.ListJobCodes(ctx)
}
