package live

import "sync"

// EnergyVAD detects speech by RMS volume thresholding. Speech begins when
// frame energy exceeds the configured threshold and ends after energy stays
// below it for the configured silence duration. Segments shorter than the
// minimum speech duration are reported as misfires.
type EnergyVAD struct {
	config VADConfig
	audio  AudioConfig

	mu        sync.Mutex
	callbacks VADCallbacks
	running   bool
	paused    bool

	inSpeech  bool
	silenceMs int
	paddingMs int
	utterance *AudioBuffer
	padding   *RingBuffer
}

// NewEnergyVAD creates an energy-threshold detector for the given audio
// format.
func NewEnergyVAD(config VADConfig, audio AudioConfig) *EnergyVAD {
	return &EnergyVAD{
		config:    config,
		audio:     audio,
		utterance: NewAudioBuffer(audio),
		padding:   NewRingBuffer(audio, int(config.PreSpeechPadding.Milliseconds())),
	}
}

// Start registers callbacks and arms the detector.
func (v *EnergyVAD) Start(callbacks VADCallbacks) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.callbacks = callbacks
	v.running = true
	v.paused = false
	v.resetLocked()
}

// Process feeds one captured PCM frame.
func (v *EnergyVAD) Process(pcm []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.running || v.paused || len(pcm) == 0 {
		return
	}

	energy := CalculateRMSEnergy(pcm)
	frameMs := v.audio.DurationMs(len(pcm))

	if !v.inSpeech {
		if energy < v.config.EnergyThreshold {
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
	if energy >= v.config.EnergyThreshold {
		v.silenceMs = 0
		return
	}

	v.silenceMs += frameMs
	if v.silenceMs >= int(v.config.SilenceDuration.Milliseconds()) {
		v.finalizeLocked()
	}
}

// finalizeLocked closes the in-progress utterance and fires the
// appropriate callback. The pre-speech padding and the trailing silence
// are part of the utterance audio but not of the measured speech, so a
// blip with a quiet lead-in still counts as a misfire. Caller holds the
// mutex.
func (v *EnergyVAD) finalizeLocked() {
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

func (v *EnergyVAD) resetLocked() {
	v.inSpeech = false
	v.silenceMs = 0
	v.paddingMs = 0
	v.utterance.Clear()
	v.padding.Clear()
}

// Pause discards the in-progress utterance and drops frames until Resume.
func (v *EnergyVAD) Pause() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.paused = true
	v.resetLocked()
}

// Resume re-arms detection.
func (v *EnergyVAD) Resume() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.paused = false
}

// Stop disarms the detector.
func (v *EnergyVAD) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.running = false
	v.resetLocked()
}
