package eventbus

import "testing"

type stageDone struct {
	stage string
	n     int
}

func TestPublishReachesEverySubscriber(t *testing.T) {
	bus := New[stageDone](4)
	a, b := bus.Subscribe(), bus.Subscribe()
	bus.Publish(stageDone{"cdap", 10})
	for _, ch := range []<-chan stageDone{a, b} {
		if got := <-ch; got.stage != "cdap" || got.n != 10 {
			t.Fatalf("unexpected event %+v", got)
		}
	}
	bus.Unsubscribe(a)
	if _, ok := <-a; ok {
		t.Fatalf("expected unsubscribed channel closed")
	}
	bus.Publish(stageDone{"imtf", 1})
	if got := <-b; got.stage != "imtf" {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestFullBufferDrops(t *testing.T) {
	bus := New[int](1)
	ch := bus.Subscribe()
	bus.Publish(1)
	bus.Publish(2)
	if bus.Dropped() != 1 {
		t.Fatalf("expected 1 drop got %d", bus.Dropped())
	}
	if v := <-ch; v != 1 {
		t.Fatalf("expected 1 got %d", v)
	}
}

func TestCloseEndsSubscriptions(t *testing.T) {
	bus := New[int](0)
	ch := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed")
	}
	bus.Unsubscribe(ch)
	bus.Publish(3)
	bus.Close()
	if _, ok := <-bus.Subscribe(); ok {
		t.Fatalf("subscribe after close must return a closed channel")
	}
}
