package audioio

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioSource captures microphone input through PortAudio as 16-bit
// mono PCM. One instance owns the default input device while started.
type PortAudioSource struct {
	sampleRate int
	frameSize  int

	mu      sync.Mutex
	stream  *portaudio.Stream
	done    chan struct{}
	started bool
}

// NewPortAudioSource creates a source reading frameSize samples per
// callback at the given sample rate.
func NewPortAudioSource(sampleRate, frameSize int) *PortAudioSource {
	return &PortAudioSource{
		sampleRate: sampleRate,
		frameSize:  frameSize,
	}
}

// Start opens the default input device and begins delivering frames.
func (s *PortAudioSource) Start(handler func(pcm []byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("portaudio source already started")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}

	in := make([]int16, s.frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(s.sampleRate), len(in), in)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("start input stream: %w", err)
	}

	s.stream = stream
	s.done = make(chan struct{})
	s.started = true

	go s.readLoop(stream, in, handler, s.done)
	return nil
}

func (s *PortAudioSource) readLoop(stream *portaudio.Stream, in []int16, handler func(pcm []byte), done chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			// Device gone or stream stopped under us. Either way capture
			// is over.
			return
		}

		pcm := make([]byte, len(in)*2)
		for i, sample := range in {
			binary.LittleEndian.PutUint16(pcm[i*2:], uint16(sample))
		}
		handler(pcm)
	}
}

// Stop halts capture and releases the device. Idempotent.
func (s *PortAudioSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	close(s.done)

	var firstErr error
	if err := s.stream.Stop(); err != nil {
		firstErr = fmt.Errorf("stop input stream: %w", err)
	}
	if err := s.stream.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close input stream: %w", err)
	}
	s.stream = nil
	portaudio.Terminate()
	return firstErr
}
