package audioio

import "sync"

// MockSource is an in-memory Source for tests. Frames pushed with Push are
// delivered synchronously to the handler while the source is started.
type MockSource struct {
	mu      sync.Mutex
	handler func(pcm []byte)
	started bool
	stops   int
}

// NewMockSource returns an idle mock source.
func NewMockSource() *MockSource {
	return &MockSource{}
}

func (s *MockSource) Start(handler func(pcm []byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
	s.started = true
	return nil
}

func (s *MockSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	s.handler = nil
	s.stops++
	return nil
}

// Push delivers one PCM frame as if captured from the device.
func (s *MockSource) Push(pcm []byte) {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler != nil {
		handler(pcm)
	}
}

// Started reports whether the source is currently capturing.
func (s *MockSource) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// StopCount returns how many times Stop has been called.
func (s *MockSource) StopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}
