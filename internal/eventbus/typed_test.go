package eventbus

import "testing"

func TestTypedBusPublishSubscribe(t *testing.T) {
	bus := NewTyped[string]()
	ch := bus.Subscribe()
	if n := bus.Publish("hello"); n != 0 {
		t.Fatalf("unexpected eviction count %d", n)
	}
	v := <-ch
	if v != "hello" {
		t.Fatalf("expected hello got %v", v)
	}
	bus.Unsubscribe(ch)
	if bus.Len() != 0 {
		t.Fatalf("expected no subscribers got %d", bus.Len())
	}
}

func TestTypedBusEvictsFullSubscriber(t *testing.T) {
	bus := NewTypedWithBuffer[int](1)
	slow := bus.Subscribe()
	fast := bus.Subscribe()

	bus.Publish(1)
	<-fast
	if n := bus.Publish(2); n != 1 {
		t.Fatalf("expected one eviction got %d", n)
	}
	if bus.Len() != 1 {
		t.Fatalf("expected 1 subscriber got %d", bus.Len())
	}
	if v := <-slow; v != 1 {
		t.Fatalf("expected buffered 1 got %d", v)
	}
	if _, ok := <-slow; ok {
		t.Fatalf("expected evicted channel closed")
	}
	if v := <-fast; v != 2 {
		t.Fatalf("expected 2 got %d", v)
	}
	// unsubscribing an evicted channel must not double close
	bus.Unsubscribe(slow)
}

func TestTypedBusClose(t *testing.T) {
	bus := NewTyped[int]()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatalf("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatalf("expected ch2 closed")
	}
	if _, ok := <-bus.Subscribe(); ok {
		t.Fatalf("expected subscribe after close to return closed channel")
	}
}

func TestTypedBusUnsubscribeAfterClose(t *testing.T) {
	bus := NewTyped[float64]()
	ch := bus.Subscribe()
	bus.Close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic on Unsubscribe after Close: %v", r)
		}
	}()
	bus.Unsubscribe(ch)
}
