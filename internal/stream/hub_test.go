package stream

import (
	"context"
	"testing"
	"time"

	"github.com/ashureev/voice-coach/internal/turn"
	"go.uber.org/goleak"
)

func TestHubSubscribeAndObserve(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe("sess-1")
	other := h.Subscribe("sess-2")

	h.Observe(turn.Event{SessionID: "sess-1", State: turn.StateTranscribing, Turn: 1})

	select {
	case ev := <-sub.C:
		if ev.State != turn.StateTranscribing {
			t.Errorf("Expected transcribing, got %s", ev.State)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an event")
	}

	select {
	case ev := <-other.C:
		t.Fatalf("unexpected event for other session: %+v", ev)
	default:
	}
}

func TestHubUnsubscribe(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe("sess-1")

	h.Unsubscribe(sub)
	h.Unsubscribe(sub)

	if _, ok := <-sub.C; ok {
		t.Fatal("expected channel to be closed")
	}
	if n := h.Subscribers("sess-1"); n != 0 {
		t.Errorf("Expected 0 subscribers, got %d", n)
	}
}

func TestHubUnsubscribeStale(t *testing.T) {
	h := NewHub(nil)
	tab1 := h.Subscribe("sess-1")
	tab2 := h.Subscribe("sess-1")

	h.Unsubscribe(tab1)
	h.Observe(turn.Event{SessionID: "sess-1", State: turn.StateResponding})

	if n := h.Subscribers("sess-1"); n != 1 {
		t.Fatalf("Expected 1 subscriber, got %d", n)
	}
	if ev := <-tab2.C; ev.State != turn.StateResponding {
		t.Errorf("Expected responding, got %s", ev.State)
	}
}

func TestHubDropsWhenSubscriberLags(t *testing.T) {
	h := NewHub(nil)
	sub := h.Subscribe("sess-1")

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			h.Observe(turn.Event{SessionID: "sess-1", State: turn.StateGenerating})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Observe blocked on a lagging subscriber")
	}
	if got := len(sub.C); got != subscriberBuffer {
		t.Errorf("Expected %d buffered events, got %d", subscriberBuffer, got)
	}
}

func TestHubCloseSession(t *testing.T) {
	h := NewHub(nil)
	a := h.Subscribe("sess-1")
	b := h.Subscribe("sess-1")

	h.CloseSession("sess-1")
	h.Unsubscribe(a)

	for _, sub := range []*Subscription{a, b} {
		if _, ok := <-sub.C; ok {
			t.Fatal("expected closed channel")
		}
	}
}

func TestHubReplaysHistoryToLateSubscriber(t *testing.T) {
	h := NewHub(nil)
	h.Observe(turn.Event{SessionID: "sess-1", State: turn.StateTranscribing})
	h.Observe(turn.Event{SessionID: "sess-1", State: turn.StateComposing})

	sub := h.Subscribe("sess-1")
	if got := (<-sub.C).State; got != turn.StateTranscribing {
		t.Errorf("Expected transcribing first, got %s", got)
	}
	if got := (<-sub.C).State; got != turn.StateComposing {
		t.Errorf("Expected composing second, got %s", got)
	}
}

func TestEventRingWraps(t *testing.T) {
	r := newEventRing(3)
	now := time.Now()
	for i := 1; i <= 5; i++ {
		r.push(turn.Event{Turn: i}, now)
	}

	got := r.snapshot()
	if r.len() != 3 || len(got) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(got))
	}
	for i, want := range []int{3, 4, 5} {
		if got[i].Turn != want {
			t.Errorf("snapshot[%d] = %d, want %d", i, got[i].Turn, want)
		}
	}
}

func TestHubEvictsIdleHistory(t *testing.T) {
	h := NewHub(nil)
	now := time.Now()
	h.now = func() time.Time { return now }

	h.Observe(turn.Event{SessionID: "idle"})
	h.Observe(turn.Event{SessionID: "watched"})
	sub := h.Subscribe("watched")
	defer h.Unsubscribe(sub)

	now = now.Add(time.Hour)
	if n := h.evictHistory(time.Minute); n != 1 {
		t.Fatalf("Expected 1 eviction, got %d", n)
	}
	if _, ok := h.history["watched"]; !ok {
		t.Error("history of a watched session must survive")
	}
}

func TestHubEvictionStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	NewHub(nil).StartEviction(ctx, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	cancel()
}
