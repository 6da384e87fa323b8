package download

import (
	"sync"
	"time"

	"github.com/handiism/dlqueue/internal/model"
)

// EventKind identifies what an Event reports.
type EventKind int

const (
	MetadataReceived EventKind = iota
	ProgressUpdated
	DownloadCompleted
	DownloadError
	DownloadPaused
	DownloadResumed
	DownloadCancelled
	QueueDepthChanged
	WorkerFinished
)

var eventKindNames = [...]string{
	MetadataReceived:  "metadata_received",
	ProgressUpdated:   "progress_updated",
	DownloadCompleted: "download_completed",
	DownloadError:     "download_error",
	DownloadPaused:    "download_paused",
	DownloadResumed:   "download_resumed",
	DownloadCancelled: "download_cancelled",
	QueueDepthChanged: "queue_depth_changed",
	WorkerFinished:    "worker_finished",
}

// String returns the snake_case name of the kind.
func (k EventKind) String() string {
	if int(k) < 0 || int(k) >= len(eventKindNames) {
		return "unknown"
	}
	return eventKindNames[k]
}

// Event is a notification published on the Bus.
//
// ID and Token identify the job instance for every kind except
// QueueDepthChanged, which only sets Depth. Job is a snapshot taken when
// the event was produced.
type Event struct {
	Kind  EventKind
	ID    string
	Token string
	Job   model.Job
	Depth int
	Err   error
	Time  time.Time
}

// Bus fans events out to subscribers over channels.
//
// Publish never blocks: each subscriber owns an unbounded FIFO drained by
// its own goroutine, so a slow consumer delays only itself. Events from a
// single producer reach every subscriber in publish order.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
	closed bool
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe returns a channel of events published from now on and a
// function that detaches it. The channel is closed after Close has
// delivered everything queued, or right away on unsubscribe.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	sub := &subscriber{
		notify: make(chan struct{}, 1),
		out:    make(chan Event),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.out)
		return sub.out, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	go sub.pump()

	var once sync.Once
	return sub.out, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.done)
		})
	}
}

// Publish delivers ev to every current subscriber. It is a no-op after Close.
func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		sub.push(ev)
	}
}

// Close stops accepting events. Subscribers receive what is already queued
// and then see their channel closed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		sub.finish()
	}
}

type subscriber struct {
	mu      sync.Mutex
	queue   []Event
	closing bool

	notify chan struct{}
	out    chan Event
	done   chan struct{}
}

func (s *subscriber) push(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	s.wake()
}

func (s *subscriber) finish() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.wake()
}

func (s *subscriber) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			closing := s.closing
			s.mu.Unlock()
			if closing {
				return
			}
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}
		ev := s.queue[0]
		s.queue[0] = Event{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}
