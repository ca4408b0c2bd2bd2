package queue

import (
	"sync"
	"time"
)

// Event types.
const (
	EventQueued    = "queued"
	EventRunning   = "running"
	EventOutput    = "output"
	EventCompleted = "completed"
	EventFailed    = "failed"
	EventDropped   = "dropped"
)

// subscriberBufferSize is the channel buffer for each event subscriber.
// Events are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// Event is a progress notification for a single job.
type Event struct {
	Type     string    `json:"type"`
	JobID    string    `json:"job_id"`
	Position int       `json:"position,omitempty"`
	Line     string    `json:"line,omitempty"`
	Error    string    `json:"error,omitempty"`
	Time     time.Time `json:"time"`
}

// closedRetention is how long a finished job's closed marker is kept.
const closedRetention = time.Minute

// broker fans job events out to subscribers. Finished jobs keep a closed
// marker for the retention period so that a subscriber racing the job's end
// gets a closed channel instead of blocking. Later lookups go to the store.
type broker struct {
	mu        sync.Mutex
	topics    map[string]*topic
	retention time.Duration
}

type topic struct {
	subs   map[int]chan Event
	nextID int
	closed bool
}

func newBroker() *broker {
	return &broker{topics: make(map[string]*topic), retention: closedRetention}
}

func (b *broker) subscribe(jobID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[jobID]
	if !ok {
		t = &topic{subs: make(map[int]chan Event)}
		b.topics[jobID] = t
	}

	ch := make(chan Event, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(ch)
		}
		if len(t.subs) == 0 && !t.closed && b.topics[jobID] == t {
			delete(b.topics, jobID)
		}
	}
}

func (b *broker) publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[ev.JobID]
	if !ok || t.closed {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// close ends the stream for jobID after delivering ev, if the subscriber has
// room for it.
func (b *broker) close(ev Event) {
	b.publish(ev)

	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[ev.JobID]
	if !ok {
		t = &topic{subs: make(map[int]chan Event)}
		b.topics[ev.JobID] = t
	}

	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}

	time.AfterFunc(b.retention, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.topics[ev.JobID] == t {
			delete(b.topics, ev.JobID)
		}
	})
}

func (b *broker) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics)
}
