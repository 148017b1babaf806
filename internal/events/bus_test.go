package events

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	t.Parallel()

	bus := NewBus(4)
	ch := bus.Subscribe("sub-1")
	defer bus.Unsubscribe("sub-1")

	bus.Publish(Event{Type: IncidentUpdated, DedupeKey: "dk-1", Namespace: "prod", Service: "api", State: "OPEN"})

	select {
	case evt := <-ch:
		if evt.DedupeKey != "dk-1" || evt.State != "OPEN" {
			t.Errorf("event = %+v", evt)
		}
		if evt.Timestamp.IsZero() {
			t.Error("timestamp should be stamped on publish")
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestPublish_FanOut(t *testing.T) {
	t.Parallel()

	bus := NewBus(4)
	chans := make([]<-chan Event, 3)
	for i := range chans {
		chans[i] = bus.Subscribe(fmt.Sprintf("sub-%d", i))
	}

	bus.Publish(Event{Type: IncidentUpdated, DedupeKey: "dk-1"})

	for i, ch := range chans {
		select {
		case evt := <-ch:
			if evt.DedupeKey != "dk-1" {
				t.Errorf("subscriber %d got %+v", i, evt)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d received nothing", i)
		}
	}
}

func TestPublish_SlowSubscriberDropsNotBlocks(t *testing.T) {
	t.Parallel()

	bus := NewBus(1)
	slow := bus.Subscribe("slow")

	var mu sync.Mutex
	drops := map[string]int{}
	bus.SetDropHook(func(id string) {
		mu.Lock()
		drops[id]++
		mu.Unlock()
	})

	// nobody drains, so everything past the buffer of 1 is dropped and every
	// Publish returns immediately
	for i := 0; i < 10; i++ {
		bus.Publish(Event{Type: IncidentUpdated, DedupeKey: fmt.Sprintf("dk-%d", i)})
	}

	mu.Lock()
	defer mu.Unlock()
	if drops["slow"] != 9 {
		t.Errorf("slow drops = %d, want 9 (buffer of 1)", drops["slow"])
	}

	// the slow subscriber still holds the first message
	select {
	case evt := <-slow:
		if evt.DedupeKey != "dk-0" {
			t.Errorf("buffered event = %+v, want dk-0", evt)
		}
	default:
		t.Error("expected one buffered event for slow subscriber")
	}
}

func TestUnsubscribe_ClosesChannel(t *testing.T) {
	t.Parallel()

	bus := NewBus(4)
	ch := bus.Subscribe("sub-1")
	if bus.SubscriberCount() != 1 {
		t.Fatalf("count = %d, want 1", bus.SubscriberCount())
	}

	bus.Unsubscribe("sub-1")
	if bus.SubscriberCount() != 0 {
		t.Errorf("count = %d, want 0", bus.SubscriberCount())
	}

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Unsubscribe")
	}

	// double unsubscribe is a no-op
	bus.Unsubscribe("sub-1")
}

func TestPublish_NoSubscribers(t *testing.T) {
	t.Parallel()

	bus := NewBus(4)
	// must not panic or block
	bus.Publish(Event{Type: IncidentUpdated})
}

func TestPublish_ConcurrentWithSubscribe(t *testing.T) {
	t.Parallel()

	bus := NewBus(64)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("sub-%d", i)
			bus.Subscribe(id)
			bus.Unsubscribe(id)
		}(i)
		go func() {
			defer wg.Done()
			bus.Publish(Event{Type: IncidentUpdated})
		}()
	}
	wg.Wait()
}
