package signal

import "testing"

func TestBus_PublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus()

	var a, b int
	bus.Subscribe(func(Change) { a++ })
	bus.Subscribe(func(Change) { b++ })

	bus.Publish(Change{Source: "s1"})
	bus.Publish(Change{Source: "s2"})

	if a != 2 || b != 2 {
		t.Errorf("deliveries = %d/%d, want 2/2", a, b)
	}
}

func TestBus_WriterReceivesOwnSignal(t *testing.T) {
	bus := NewBus()

	var got []string
	bus.Subscribe(func(c Change) { got = append(got, c.Source) })

	bus.Publish(Change{Source: "self"})
	if len(got) != 1 || got[0] != "self" {
		t.Errorf("got = %v, want [self]", got)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	var a, b int
	unsub := bus.Subscribe(func(Change) { a++ })
	bus.Subscribe(func(Change) { b++ })

	bus.Publish(Change{})
	unsub()
	bus.Publish(Change{})

	if a != 1 {
		t.Errorf("unsubscribed handler called %d times, want 1", a)
	}
	if b != 2 {
		t.Errorf("remaining handler called %d times, want 2", b)
	}
}

func TestBus_UnsubscribeTwiceIsSafe(t *testing.T) {
	bus := NewBus()
	unsub := bus.Subscribe(func(Change) {})
	unsub()
	unsub()
	bus.Publish(Change{})
}
