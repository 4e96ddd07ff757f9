package equipment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"wellops/internal/eventbus"
	logx "wellops/pkg/logx"
)

// Store is the persistence surface the equipment service needs.
type Store interface {
	CreateEquipment(ctx context.Context, it Item) error
	GetEquipment(ctx context.Context, id string) (Item, error)
	// FindEquipmentBySerial matches the unique serial (exact, case-insensitive).
	FindEquipmentBySerial(ctx context.Context, serial string) (Item, bool, error)
	ListEquipment(ctx context.Context, wellID string) ([]Item, error)
	UpdateEquipment(ctx context.Context, it Item) error

	OpenRentalPeriod(ctx context.Context, p RentalPeriod) error
	// CloseOpenRentalPeriod sets End on the item's open period, if any.
	CloseOpenRentalPeriod(ctx context.Context, equipmentID string, end time.Time) error
	ListRentalPeriods(ctx context.Context, wellID string, from, to time.Time) ([]RentalPeriod, error)
}

type Input struct {
	Serial         string
	Name           string
	Category       string
	VendorID       string
	DailyRateCents int64
}

func (in Input) validate() error {
	if strings.TrimSpace(in.Serial) == "" {
		return fmt.Errorf("equipment serial is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("equipment name is required")
	}
	if in.DailyRateCents < 0 {
		return fmt.Errorf("daily rate must be >= 0")
	}
	return nil
}

// Service owns the equipment registry and rental movements.
type Service struct {
	store Store
	bus   eventbus.Bus
	log   logx.Logger
}

func NewService(store Store, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{store: store, bus: bus, log: log}
}

func (s *Service) Register(ctx context.Context, in Input) (Item, error) {
	if err := in.validate(); err != nil {
		return Item{}, err
	}
	if _, ok, err := s.store.FindEquipmentBySerial(ctx, in.Serial); err != nil {
		return Item{}, err
	} else if ok {
		return Item{}, fmt.Errorf("serial %s: %w", in.Serial, ErrDuplicateSerial)
	}
	it := Item{
		ID:             uuid.NewString(),
		Serial:         strings.TrimSpace(in.Serial),
		Name:           in.Name,
		Category:       in.Category,
		VendorID:       in.VendorID,
		DailyRateCents: in.DailyRateCents,
		Status:         StatusAvailable,
	}
	if err := s.store.CreateEquipment(ctx, it); err != nil {
		return Item{}, err
	}
	s.log.Info("equipment registered", logx.String("serial", it.Serial), logx.String("name", it.Name))
	return it, nil
}

func (s *Service) Get(ctx context.Context, id string) (Item, error) {
	return s.store.GetEquipment(ctx, id)
}

func (s *Service) List(ctx context.Context, wellID string) ([]Item, error) {
	return s.store.ListEquipment(ctx, wellID)
}

// TransferEvent is the payload for equipment.transferred events.
type TransferEvent struct {
	EquipmentID string `json:"equipment_id"`
	FromWellID  string `json:"from_well_id,omitempty"`
	ToWellID    string `json:"to_well_id,omitempty"`
}

// Transfer moves equipment onto a well: the open rental period on the
// previous well (if any) closes at `when`, and a new period opens on the
// destination well at the item's current daily rate.
func (s *Service) Transfer(ctx context.Context, id, toWellID string, when time.Time) (Item, error) {
	if strings.TrimSpace(toWellID) == "" {
		return Item{}, fmt.Errorf("destination well is required")
	}
	it, err := s.store.GetEquipment(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if it.Status == StatusLost {
		return Item{}, fmt.Errorf("equipment %s is marked lost", it.Serial)
	}
	if it.WellID == toWellID {
		return it, nil
	}
	from := it.WellID

	if err := s.store.CloseOpenRentalPeriod(ctx, it.ID, when); err != nil {
		return Item{}, err
	}
	if err := s.store.OpenRentalPeriod(ctx, RentalPeriod{
		ID:             uuid.NewString(),
		EquipmentID:    it.ID,
		WellID:         toWellID,
		Start:          when,
		DailyRateCents: it.DailyRateCents,
	}); err != nil {
		return Item{}, err
	}

	it.WellID = toWellID
	it.Status = StatusOnLocation
	if err := s.store.UpdateEquipment(ctx, it); err != nil {
		return Item{}, err
	}

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Type: eventbus.TypeEquipmentTransferred,
			Data: TransferEvent{EquipmentID: it.ID, FromWellID: from, ToWellID: toWellID},
		})
	}
	s.log.Info("equipment transferred",
		logx.String("serial", it.Serial),
		logx.String("from_well", from),
		logx.String("to_well", toWellID),
	)
	return it, nil
}

// Return pulls equipment off its well back to the yard. The open rental
// period closes at `when` and stops accruing.
func (s *Service) Return(ctx context.Context, id string, when time.Time) (Item, error) {
	it, err := s.store.GetEquipment(ctx, id)
	if err != nil {
		return Item{}, err
	}
	from := it.WellID
	if err := s.store.CloseOpenRentalPeriod(ctx, it.ID, when); err != nil {
		return Item{}, err
	}
	it.WellID = ""
	it.Status = StatusReturned
	if err := s.store.UpdateEquipment(ctx, it); err != nil {
		return Item{}, err
	}

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Type: eventbus.TypeEquipmentTransferred,
			Data: TransferEvent{EquipmentID: it.ID, FromWellID: from},
		})
	}
	return it, nil
}

// MarkLost flags equipment lost in hole; its open period closes at `when`
// (lost-in-hole charges are handled as a statement adjustment, not here).
func (s *Service) MarkLost(ctx context.Context, id string, when time.Time) (Item, error) {
	it, err := s.store.GetEquipment(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if err := s.store.CloseOpenRentalPeriod(ctx, it.ID, when); err != nil {
		return Item{}, err
	}
	it.Status = StatusLost
	if err := s.store.UpdateEquipment(ctx, it); err != nil {
		return Item{}, err
	}
	return it, nil
}

// CostSummary groups accrued rental cost over a window.
type CostSummary struct {
	ByWellCents     map[string]int64 `json:"by_well_cents"`
	ByCategoryCents map[string]int64 `json:"by_category_cents"`
	TotalCents      int64            `json:"total_cents"`
}

// Costs returns accrued rental cost grouped by well and by category.
// An empty wellID covers every well. Open periods accrue up to `to`.
func (s *Service) Costs(ctx context.Context, wellID string, from, to time.Time) (CostSummary, error) {
	periods, err := s.store.ListRentalPeriods(ctx, wellID, from, to)
	if err != nil {
		return CostSummary{}, err
	}
	// Categories come off the full registry: a period may belong to
	// equipment that has since moved to another well.
	items, err := s.store.ListEquipment(ctx, "")
	if err != nil {
		return CostSummary{}, err
	}
	categoryOf := make(map[string]string, len(items))
	for _, it := range items {
		categoryOf[it.ID] = it.Category
	}
	sum := CostSummary{
		ByWellCents:     TotalByWell(periods, to),
		ByCategoryCents: TotalByCategory(periods, categoryOf, to),
	}
	for _, cents := range sum.ByWellCents {
		sum.TotalCents += cents
	}
	return sum, nil
}
