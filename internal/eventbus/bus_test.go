package eventbus

import "testing"

func TestPublishDelivers(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(4)
	defer unsub()

	b.Publish(Event{Type: TypeScheduleRecalculated, Data: "x"})
	e := <-ch
	if e.Type != TypeScheduleRecalculated || e.Data != "x" {
		t.Fatalf("got %+v", e)
	}
	if e.Time.IsZero() {
		t.Fatal("Publish did not stamp Time")
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: TypeReminderSent})
	b.Publish(Event{Type: TypeReminderSent}) // buffer full, must not block

	<-ch
	select {
	case e := <-ch:
		t.Fatalf("expected second event dropped, got %+v", e)
	default:
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub() // idempotent

	b.Publish(Event{Type: TypeImportCompleted})
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
}
