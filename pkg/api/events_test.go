package api

import (
	"sync"
	"testing"
)

// fakeSubscriber records a single listener and supports unsubscribe.
type fakeSubscriber struct {
	mu       sync.Mutex
	listener Listener
}

func (s *fakeSubscriber) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listener = nil
	}
}

func (s *fakeSubscriber) emit(ev SimulationEvent) {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	if l != nil {
		l(ev)
	}
}

func TestChannelListener_DeliversAndDropsWhenFull(t *testing.T) {
	sub := &fakeSubscriber{}
	cl := NewChannelListener(2)
	cl.Attach(sub)

	for _, id := range []string{"1", "2", "3"} {
		sub.emit(SimulationEvent{ID: id, Type: EventStepStart})
	}

	if got := cl.Dropped(); got != 1 {
		t.Fatalf("Dropped=%d, want 1", got)
	}
	if ev := <-cl.C(); ev.ID != "1" {
		t.Fatalf("expected first event, got %q", ev.ID)
	}
	if ev := <-cl.C(); ev.ID != "2" {
		t.Fatalf("expected second event, got %q", ev.ID)
	}
}

func TestChannelListener_CloseDetachesAndClosesChannel(t *testing.T) {
	sub := &fakeSubscriber{}
	cl := NewChannelListener(4)
	cl.Attach(sub)

	cl.Close()
	cl.Close()

	if sub.listener != nil {
		t.Fatalf("expected Close to unsubscribe")
	}
	cl.Listen(SimulationEvent{ID: "late"})
	if _, ok := <-cl.C(); ok {
		t.Fatalf("expected closed channel")
	}
}
