package event

import (
	"sync"
	"testing"
)

func TestOnReceivesMatchingEvents(t *testing.T) {
	e := NewEmitter()

	var got []Event
	e.On(MessageCreated, func(ev Event) { got = append(got, ev) })

	e.Emit(MessageCreatedEvent{MessageID: "m1", BranchID: "b1"})
	e.Emit(BranchDeletedEvent{BranchID: "b1"}) // different event, not delivered

	if len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(got))
	}
	if ev, ok := got[0].(MessageCreatedEvent); !ok || ev.MessageID != "m1" {
		t.Errorf("unexpected event: %+v", got[0])
	}
}

func TestOnAnyReceivesEverything(t *testing.T) {
	e := NewEmitter()

	var count int
	e.OnAny(func(Event) { count++ })

	e.Emit(MessageCreatedEvent{MessageID: "m1", BranchID: "b1"})
	e.Emit(BranchSummaryUpdatedEvent{BranchID: "b1", MessageCount: 12})

	if count != 2 {
		t.Fatalf("expected 2 deliveries, got %d", count)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	e := NewEmitter()

	var count int
	unsubscribe := e.On(MessageCreated, func(Event) { count++ })

	e.Emit(MessageCreatedEvent{MessageID: "m1", BranchID: "b1"})
	unsubscribe()
	e.Emit(MessageCreatedEvent{MessageID: "m2", BranchID: "b1"})

	if count != 1 {
		t.Fatalf("expected 1 delivery after unsubscribe, got %d", count)
	}
}

func TestUnsubscribeRemovesOnlyItself(t *testing.T) {
	e := NewEmitter()

	var first, second int
	unsub1 := e.On(MessageCreated, func(Event) { first++ })
	e.On(MessageCreated, func(Event) { second++ })

	unsub1()
	e.Emit(MessageCreatedEvent{MessageID: "m1", BranchID: "b1"})

	if first != 0 || second != 1 {
		t.Fatalf("unsubscribe removed the wrong listener: first=%d second=%d", first, second)
	}
}

func TestConcurrentEmitAndSubscribe(t *testing.T) {
	e := NewEmitter()

	var mu sync.Mutex
	total := 0
	e.OnAny(func(Event) {
		mu.Lock()
		total++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				e.Emit(MessageCreatedEvent{MessageID: "m", BranchID: "b"})
			}
		}()
	}
	wg.Wait()

	if total != 1000 {
		t.Fatalf("expected 1000 deliveries, got %d", total)
	}
}
