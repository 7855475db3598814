package audioio

import "sync"

// PushSource is a Source fed by an external transport instead of a local
// device. The gateway uses one to route audio received over the wire into
// a session's capture strategy.
type PushSource struct {
	mu      sync.Mutex
	handler func(pcm []byte)
	started bool
}

// NewPushSource returns an idle push source.
func NewPushSource() *PushSource {
	return &PushSource{}
}

func (s *PushSource) Start(handler func(pcm []byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
	s.started = true
	return nil
}

func (s *PushSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = nil
	s.started = false
	return nil
}

// Push delivers one PCM frame. Frames pushed while stopped are dropped.
func (s *PushSource) Push(pcm []byte) {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler != nil {
		handler(pcm)
	}
}
