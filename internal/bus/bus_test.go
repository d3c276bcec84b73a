package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("queue.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindQueueReplaced, Timestamp: time.Now(), Payload: 3})

	select {
	case evt := <-ch:
		if evt.Kind != KindQueueReplaced {
			t.Errorf("got kind %q, want %q", evt.Kind, KindQueueReplaced)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("dispatch.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindQueueReplaced})
	b.Publish(Event{Kind: KindDispatchSent})

	select {
	case evt := <-ch:
		if evt.Kind != KindDispatchSent {
			t.Errorf("got kind %q, want %q", evt.Kind, KindDispatchSent)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure the queue event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("queue.", 10)
	unsub()

	b.Publish(Event{Kind: KindQueueReplaced})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: "test.one"})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
}
