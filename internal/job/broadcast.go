package job

import (
	"sync"

	"github.com/google/uuid"
)

const subscriberBuffer = 16

// Broadcaster fans job snapshots out to live subscribers. It implements
// Notifier so the store pushes every committed change through it. Subscriber
// channels are closed after a terminal snapshot is delivered, or on
// Unsubscribe. A subscriber that stops draining its channel loses intermediate
// updates rather than blocking the writer, but the terminal snapshot is always
// delivered; the poll path always has the full record.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[chan *Job]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uuid.UUID]map[chan *Job]struct{})}
}

// Subscribe registers a channel for updates to one job.
func (b *Broadcaster) Subscribe(id uuid.UUID) chan *Job {
	ch := make(chan *Job, subscriberBuffer)
	b.mu.Lock()
	if b.subs[id] == nil {
		b.subs[id] = make(map[chan *Job]struct{})
	}
	b.subs[id][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes the channel. Safe to call after the
// broadcaster already closed it on a terminal snapshot.
func (b *Broadcaster) Unsubscribe(id uuid.UUID, ch chan *Job) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[id]
	if !ok {
		return
	}
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	if len(set) == 0 {
		delete(b.subs, id)
	}
	close(ch)
}

// Notify delivers a snapshot to every subscriber of the job. Terminal
// snapshots close the channels after delivery.
func (b *Broadcaster) Notify(j *Job) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subs[j.ID]
	if !ok {
		return
	}
	for ch := range set {
		select {
		case ch <- j:
			continue
		default:
		}
		if !j.Terminal() {
			continue // slow subscriber, drop
		}
		// The terminal snapshot must always land: evict the oldest buffered
		// snapshot to make room. Notify is the only sender, so the retry
		// cannot find the buffer full again.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- j:
		default:
		}
	}
	if j.Terminal() {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, j.ID)
	}
}
