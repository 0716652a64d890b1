package bus

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	b := New()
	if b == nil {
		t.Fatal("New returned nil")
	}
	if b.historySize != DefaultHistorySize {
		t.Errorf("expected history size %d, got %d", DefaultHistorySize, b.historySize)
	}
	b.Close()
}

func TestSubscribeAndPublish(t *testing.T) {
	b := New()
	defer b.Close()

	done := make(chan Event, 1)
	id := b.Subscribe(EventTurnStarted, func(e Event) {
		done <- e
	})
	if id == "" {
		t.Fatal("Subscribe returned empty ID")
	}

	event := NewTurnEvent(EventTurnStarted, "turn-1", "text")
	if err := b.Publish(event); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case got := <-done:
		if got.TurnID != "turn-1" {
			t.Errorf("TurnID = %q, want turn-1", got.TurnID)
		}
		if got.Mode != "text" {
			t.Errorf("Mode = %q, want text", got.Mode)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestTypedSubscriptionFilters(t *testing.T) {
	b := New()
	defer b.Close()

	var count atomic.Int32
	b.Subscribe(EventTimerFired, func(e Event) {
		count.Add(1)
	})

	b.Publish(NewEvent(EventTurnStarted))
	b.Publish(NewEvent(EventActivation))
	b.Publish(NewEvent(EventTimerFired))

	time.Sleep(100 * time.Millisecond)
	if got := count.Load(); got != 1 {
		t.Errorf("typed subscriber saw %d events, want 1", got)
	}
}

func TestWildcardSubscription(t *testing.T) {
	b := New()
	defer b.Close()

	var count atomic.Int32
	b.Subscribe(EventType(""), func(e Event) {
		count.Add(1)
	})

	b.Publish(NewEvent(EventTurnStarted))
	b.Publish(NewEvent(EventTimerFired))
	b.Publish(NewEvent(EventActivation))

	time.Sleep(100 * time.Millisecond)
	if got := count.Load(); got != 3 {
		t.Errorf("wildcard subscriber saw %d events, want 3", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	defer b.Close()

	var count atomic.Int32
	id := b.Subscribe(EventActivation, func(e Event) {
		count.Add(1)
	})

	b.Publish(NewEvent(EventActivation))
	time.Sleep(50 * time.Millisecond)

	if err := b.Unsubscribe(id); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}

	b.Publish(NewEvent(EventActivation))
	time.Sleep(50 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("subscriber saw %d events after unsubscribe, want 1", got)
	}
}

func TestUnsubscribeUnknown(t *testing.T) {
	b := New()
	defer b.Close()

	if err := b.Unsubscribe("sub_999"); err == nil {
		t.Error("expected error unsubscribing unknown ID")
	}
}

func TestHistoryBounded(t *testing.T) {
	b := NewWithHistory(5)
	defer b.Close()

	for i := 0; i < 10; i++ {
		b.Publish(NewEvent(EventTurnStage))
	}

	if got := len(b.History()); got != 5 {
		t.Errorf("history length = %d, want 5", got)
	}
}

func TestRecent(t *testing.T) {
	b := New()
	defer b.Close()

	b.Publish(NewTurnEvent(EventTurnStarted, "a", "text"))
	b.Publish(NewTurnEvent(EventTurnCompleted, "a", "text"))
	b.Publish(NewTurnEvent(EventTurnStarted, "b", "text"))

	recent := b.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("Recent(2) returned %d events", len(recent))
	}
	if recent[1].TurnID != "b" {
		t.Errorf("last event TurnID = %q, want b", recent[1].TurnID)
	}
}

func TestPublishAfterClose(t *testing.T) {
	b := New()
	b.Close()

	if err := b.Publish(NewEvent(EventActivation)); err == nil {
		t.Error("expected error publishing to closed bus")
	}
	if id := b.Subscribe(EventActivation, func(Event) {}); id != "" {
		t.Error("expected empty subscription ID on closed bus")
	}
}
