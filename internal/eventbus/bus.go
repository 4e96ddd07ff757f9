package eventbus

import (
	"sync"
	"time"
)

// Event types published by wellops services. Data payloads are small
// structs owned by the publishing package.
const (
	TypeScheduleRecalculated = "schedule.recalculated"
	TypeScheduleActivated    = "schedule.activated"
	TypeEquipmentTransferred = "equipment.transferred"
	TypeImportCompleted      = "import.completed"
	TypeReminderSent         = "reminder.sent"
)

// Event is a lightweight in-memory signal used to decouple components.
type Event struct {
	Type string
	Time time.Time
	Data any
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns an in-memory fanout bus. It owns no background goroutines.
func New() Bus {
	return &bus{}
}

type subscriber struct {
	ch     chan Event
	closed bool
}

type bus struct {
	mu   sync.Mutex
	subs []*subscriber
}

// Publish holds the lock across the fanout. Sends are non-blocking and
// unsubscribe closes channels under the same lock, so a send can never
// race a close.
func (b *bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		if s.closed {
			continue
		}
		select {
		case s.ch <- e:
		default:
		}
	}
}

func (b *bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	s := &subscriber{ch: make(chan Event, buffer)}

	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			s.closed = true
			for i, cur := range b.subs {
				if cur == s {
					b.subs = append(b.subs[:i], b.subs[i+1:]...)
					break
				}
			}
			close(s.ch)
			b.mu.Unlock()
		})
	}
	return s.ch, unsub
}
