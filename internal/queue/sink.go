package queue

import (
	"io"
	"sync"

	"github.com/orcaman/writerseeker"
)

// Sink is spec.md's C3, an aggregating output sink: a fan-out publisher
// of string chunks that also retains the full concatenation so far.
// Publication and Current are linearizable with respect to each other
// (§4.3): both take the same mutex, so a Current() observed after a
// Publish sees that chunk.
type Sink struct {
	mu     sync.Mutex
	buf    writerseeker.WriterSeeker
	subs   map[int]chan string
	nextID int
	closed bool
}

func NewSink() *Sink {
	return &Sink{subs: make(map[int]chan string)}
}

// Publish appends line to the sink and fans it out to every subscriber
// registered before this call.
func (s *Sink) Publish(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.buf.Write([]byte(line))
	s.buf.Write([]byte("\n"))
	for _, ch := range s.subs {
		select {
		case ch <- line:
		default:
			// A slow subscriber misses a chunk rather than stalling the
			// publisher; Current() remains authoritative regardless
			// (spec.md §4.3's "late subscribers may miss individual
			// chunks" guarantee, generalized to slow ones too).
		}
	}
}

// Current returns the full concatenation of every line published so
// far, each terminated by '\n'.
func (s *Sink) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked()
}

func (s *Sink) currentLocked() string {
	r := s.buf.BytesReader()
	b, _ := io.ReadAll(r)
	return string(b)
}

// Subscribe registers interest in future chunks. The returned function
// must be called to release the subscription.
func (s *Sink) Subscribe() (<-chan string, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan string, 64)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if ch, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
}

// Close marks the sink complete: Current() remains valid and frozen,
// per spec.md §4.3, but no further Publish calls have any effect and
// all subscriber channels are closed.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
