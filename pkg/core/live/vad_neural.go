package live

import "sync"

// classifierFrameSamples is the frame size the speech classifier consumes,
// 32 ms at 16 kHz.
const classifierFrameSamples = 512

// SpeechClassifier scores small audio frames as speech or non-speech.
// Implementations wrap a pretrained model; tests use a fake.
type SpeechClassifier interface {
	// Probability returns the speech probability (0.0 to 1.0) for one
	// frame of float32 samples.
	Probability(frame []float32) (float64, error)

	// Reset clears any internal model state between utterances.
	Reset() error
}

// NeuralVAD delegates speech detection to a pretrained classifier, with
// asymmetric enter/exit thresholds so probability jitter at the boundary
// does not toggle the detector.
type NeuralVAD struct {
	config     VADConfig
	audio      AudioConfig
	classifier SpeechClassifier

	mu        sync.Mutex
	callbacks VADCallbacks
	running   bool
	paused    bool

	inSpeech  bool
	silenceMs int
	paddingMs int
	pending   []float32
	utterance *AudioBuffer
	padding   *RingBuffer
}

// NewNeuralVAD creates a classifier-backed detector for the given audio
// format.
func NewNeuralVAD(config VADConfig, audio AudioConfig, classifier SpeechClassifier) *NeuralVAD {
	return &NeuralVAD{
		config:     config,
		audio:      audio,
		classifier: classifier,
		utterance:  NewAudioBuffer(audio),
		padding:    NewRingBuffer(audio, int(config.PreSpeechPadding.Milliseconds())),
	}
}

// Start registers callbacks and arms the detector.
func (v *NeuralVAD) Start(callbacks VADCallbacks) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.callbacks = callbacks
	v.running = true
	v.paused = false
	v.resetLocked()
}

// Process feeds one captured PCM frame. Capture frames are re-sliced into
// the classifier's fixed frame size; a partial tail is held until the next
// call.
func (v *NeuralVAD) Process(pcm []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.running || v.paused || len(pcm) == 0 {
		return
	}

	v.pending = append(v.pending, PCMToFloat32(pcm)...)
	for len(v.pending) >= classifierFrameSamples {
		frame := v.pending[:classifierFrameSamples]
		v.pending = v.pending[classifierFrameSamples:]
		v.step(frame)
	}
}

// step runs one classifier frame through the hysteresis state machine.
// Caller holds the mutex.
func (v *NeuralVAD) step(frame []float32) {
	prob, err := v.classifier.Probability(frame)
	if err != nil {
		// A classifier fault on one frame is treated as non-speech
		// rather than killing the session.
		prob = 0
	}
	pcm := Float32ToPCM(frame)
	frameMs := v.audio.DurationMs(len(pcm))

	if !v.inSpeech {
		if prob < v.config.EnterThreshold {
			v.padding.Write(pcm)
			return
		}
		v.inSpeech = true
		v.silenceMs = 0
		lead := v.padding.Read()
		v.paddingMs = v.audio.DurationMs(len(lead))
		v.utterance.Write(lead)
		v.utterance.Write(pcm)
		v.padding.Clear()
		if v.callbacks.OnSpeechStart != nil {
			v.callbacks.OnSpeechStart()
		}
		return
	}

	v.utterance.Write(pcm)
	if prob >= v.config.ExitThreshold {
		v.silenceMs = 0
		return
	}

	v.silenceMs += frameMs
	if v.silenceMs >= int(v.config.SilenceDuration.Milliseconds()) {
		v.finalizeLocked()
	}
}

// finalizeLocked mirrors the energy detector: padding and trailing
// silence ride along in the utterance audio but are excluded from the
// measured speech duration.
func (v *NeuralVAD) finalizeLocked() {
	speechMs := v.utterance.DurationMs() - v.silenceMs - v.paddingMs
	pcm := v.utterance.Read()
	v.resetLocked()

	if speechMs < int(v.config.MinSpeechDuration.Milliseconds()) {
		if v.callbacks.OnMisfire != nil {
			v.callbacks.OnMisfire(speechMs)
		}
		return
	}
	if v.callbacks.OnSpeechEnd != nil {
		v.callbacks.OnSpeechEnd(pcm)
	}
}

func (v *NeuralVAD) resetLocked() {
	v.inSpeech = false
	v.silenceMs = 0
	v.paddingMs = 0
	v.pending = nil
	v.utterance.Clear()
	v.padding.Clear()
	_ = v.classifier.Reset()
}

// Pause discards the in-progress utterance and drops frames until Resume.
func (v *NeuralVAD) Pause() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.paused = true
	v.resetLocked()
}

// Resume re-arms detection.
func (v *NeuralVAD) Resume() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.paused = false
}

// Stop disarms the detector.
func (v *NeuralVAD) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.running = false
	v.resetLocked()
}
