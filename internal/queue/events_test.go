package queue

import (
	"fmt"
	"testing"
	"time"
)

func TestBrokerClosedMarkersExpire(t *testing.T) {
	b := newBroker()
	b.retention = 10 * time.Millisecond

	for i := range 1000 {
		b.close(Event{Type: EventCompleted, JobID: fmt.Sprintf("job-%d", i)})
	}

	waitFor(t, "closed markers to expire", func() bool { return b.size() == 0 })
}

func TestBrokerLateSubscriberWithinRetention(t *testing.T) {
	b := newBroker()

	b.close(Event{Type: EventCompleted, JobID: "j1"})

	ch, unsub := b.subscribe("j1")
	defer unsub()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("received an event, want closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel of a finished job was not closed")
	}
}

func TestBrokerUnsubscribeDropsIdleTopic(t *testing.T) {
	b := newBroker()

	_, unsub1 := b.subscribe("j1")
	_, unsub2 := b.subscribe("j1")
	if got := b.size(); got != 1 {
		t.Fatalf("topics = %d, want 1", got)
	}

	unsub1()
	if got := b.size(); got != 1 {
		t.Fatalf("topics after first unsubscribe = %d, want 1", got)
	}
	unsub2()
	if got := b.size(); got != 0 {
		t.Errorf("topics after last unsubscribe = %d, want 0", got)
	}
}

func TestBrokerPublishDeliversToSubscribers(t *testing.T) {
	b := newBroker()

	ch, unsub := b.subscribe("j1")
	defer unsub()

	b.publish(Event{Type: EventOutput, JobID: "j1", Line: "hello"})
	b.publish(Event{Type: EventOutput, JobID: "other", Line: "ignored"})

	select {
	case ev := <-ch:
		if ev.Line != "hello" || ev.Time.IsZero() {
			t.Errorf("event = %+v, want line hello with a timestamp", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	select {
	case ev := <-ch:
		t.Errorf("unexpected event %+v", ev)
	default:
	}
}
