package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("order.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindOrderAccepted, Payload: "051024-123456"})

	select {
	case evt := <-ch:
		if evt.Kind != KindOrderAccepted {
			t.Errorf("got kind %q, want %s", evt.Kind, KindOrderAccepted)
		}
		if evt.Timestamp.IsZero() {
			t.Error("Publish did not stamp the event")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPrefixFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("bot.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindOrderAccepted})
	b.Publish(Event{Kind: KindStateChanged})

	select {
	case evt := <-ch:
		if evt.Kind != KindStateChanged {
			t.Errorf("got kind %q, want %s", evt.Kind, KindStateChanged)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("bot.", 10)
	unsub()
	unsub()

	b.Publish(Event{Kind: KindStateChanged})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("order.", 1)
	defer unsub()

	b.Publish(Event{Kind: "order.one"})
	b.Publish(Event{Kind: "order.two"})

	if evt := <-ch; evt.Kind != "order.one" {
		t.Errorf("got %q, want order.one", evt.Kind)
	}
}

func TestPublishOnNilBus(t *testing.T) {
	var b *Bus
	b.Publish(Event{Kind: KindStateChanged})
}
