package dataset

import "sync"

// Sequencer hands out run-scoped catalog ids. Image and annotation ids are
// independent counters that start at 0 and never repeat. It is safe for
// concurrent use.
type Sequencer struct {
	mu         sync.Mutex
	image      int64
	annotation int64
}

func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// NextImageID returns the next unused image id.
func (s *Sequencer) NextImageID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.image
	s.image++
	return id
}

// NextAnnotationID returns the next unused annotation id.
func (s *Sequencer) NextAnnotationID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.annotation
	s.annotation++
	return id
}
