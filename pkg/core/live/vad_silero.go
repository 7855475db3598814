package live

import (
	"fmt"
	"sync"

	"github.com/streamer45/silero-vad-go/speech"
)

// SileroClassifier adapts the Silero ONNX voice activity model to the
// SpeechClassifier interface. The detector applies its own internal
// thresholding and reports boundary events, so probabilities are saturated:
// 1.0 between a detected speech start and end, 0.0 outside.
type SileroClassifier struct {
	mu       sync.Mutex
	detector *speech.Detector
	speaking bool
}

// NewSileroClassifier loads the Silero model from modelPath.
func NewSileroClassifier(modelPath string, sampleRate int, threshold float64) (*SileroClassifier, error) {
	detector, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:  modelPath,
		SampleRate: sampleRate,
		Threshold:  float32(threshold),
	})
	if err != nil {
		return nil, fmt.Errorf("load silero model: %w", err)
	}
	return &SileroClassifier{detector: detector}, nil
}

// Probability runs one frame through the model.
func (c *SileroClassifier) Probability(frame []float32) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	event, err := c.detector.DetectStreamFrame(frame)
	if err != nil {
		return 0, fmt.Errorf("silero frame: %w", err)
	}
	if event != nil {
		if event.IsStart {
			c.speaking = true
		}
		if event.IsEnd {
			c.speaking = false
		}
	}
	if c.speaking {
		return 1.0, nil
	}
	return 0.0, nil
}

// Reset clears the model's internal state.
func (c *SileroClassifier) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speaking = false
	return c.detector.Reset()
}

// Close releases the ONNX session.
func (c *SileroClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detector.Destroy()
}
