package events

import (
	"sync"
	"testing"
	"time"

	"github.com/korrelate/ingestcore/internal/model"
)

func TestEmit_DeliversToAllSubscribersInOrder(t *testing.T) {
	bus := New()
	var mu sync.Mutex
	var received []string

	bus.Subscribe(func(ev model.Event) {
		mu.Lock()
		received = append(received, "sub1:"+string(ev.Type))
		mu.Unlock()
	})
	bus.Subscribe(func(ev model.Event) {
		mu.Lock()
		received = append(received, "sub2:"+string(ev.Type))
		mu.Unlock()
	})

	bus.Emit(model.EventDocumentCreated, nil)

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("expected 2 deliveries, got %d: %v", len(received), received)
	}
	if received[0] != "sub1:document.created" || received[1] != "sub2:document.created" {
		t.Errorf("deliveries out of registration order: %v", received)
	}
}

func TestEmit_SlowSubscriberIsDroppedNotBlocking(t *testing.T) {
	bus := New()
	var dropped model.EventType
	var mu sync.Mutex
	bus.OnDrop(func(t model.EventType) {
		mu.Lock()
		dropped = t
		mu.Unlock()
	})

	bus.Subscribe(func(ev model.Event) {
		time.Sleep(2 * time.Second)
	})

	start := time.Now()
	bus.Emit(model.EventDocumentCreated, nil)
	elapsed := time.Since(start)

	if elapsed > deliveryTimeout+200*time.Millisecond {
		t.Fatalf("Emit blocked for %v, expected to return near the %v delivery timeout", elapsed, deliveryTimeout)
	}

	mu.Lock()
	defer mu.Unlock()
	if dropped != model.EventDocumentCreated {
		t.Errorf("expected OnDrop to fire with %q, got %q", model.EventDocumentCreated, dropped)
	}
}

func TestEmit_NoSubscribersIsNoOp(t *testing.T) {
	bus := New()
	bus.Emit(model.EventDocumentCreated, nil)
}

func TestEmit_PayloadIsPassedThrough(t *testing.T) {
	bus := New()
	done := make(chan interface{}, 1)
	bus.Subscribe(func(ev model.Event) {
		done <- ev.Payload
	})

	bus.Emit(model.EventDocumentCreated, map[string]string{"documentId": "doc-1"})

	select {
	case payload := <-done:
		m, ok := payload.(map[string]string)
		if !ok || m["documentId"] != "doc-1" {
			t.Errorf("unexpected payload: %v", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}
