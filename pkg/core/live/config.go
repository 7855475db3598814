package live

import (
	"fmt"
	"strings"
	"time"
)

// SessionState represents the current state of a voice session.
type SessionState int

const (
	// StateIdle is the initial state and the terminal state after stop.
	StateIdle SessionState = iota
	// StateListening is when the capture strategy is active and waiting
	// for user speech.
	StateListening
	// StateProcessing is when a finalized utterance is being run through
	// the LLM.
	StateProcessing
	// StateSpeaking is when TTS audio is being synthesized and played.
	StateSpeaking
	// StateError is the terminal state after an unrecoverable failure.
	StateError
)

// String returns the wire-level state name.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ASR vendor identifiers. The set is closed: config validation rejects
// anything else so a bad vendor id fails before any connection attempt.
const (
	ASRVendorDeepgram = "deepgram"
	ASRVendorWhisper  = "whisper"
	ASRVendorAzure    = "azure"
)

// LLM vendor identifiers.
const (
	LLMVendorOpenAI = "openai"
	LLMVendorGroq   = "groq"
)

// TTS vendor identifiers.
const (
	TTSVendorElevenLabs = "elevenlabs"
	TTSVendorOpenAI     = "openai"
	TTSVendorPlayHT     = "playht"
)

// ASRConfig selects and parameterizes the speech-to-text vendor.
type ASRConfig struct {
	Vendor   string `json:"vendor"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
	// Region is required for Azure only.
	Region string `json:"region,omitempty"`
}

// Streaming reports whether the vendor supports duplex transcription with
// built-in endpoint detection. Non-streaming vendors go through the local
// VAD + batch path.
func (c ASRConfig) Streaming() bool {
	return c.Vendor == ASRVendorDeepgram
}

// Validate checks vendor-specific required fields.
func (c ASRConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("asr: api key is required")
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("asr: model is required")
	}
	switch c.Vendor {
	case ASRVendorDeepgram, ASRVendorWhisper:
		return nil
	case ASRVendorAzure:
		if strings.TrimSpace(c.Region) == "" {
			return fmt.Errorf("asr: region is required for azure")
		}
		return nil
	default:
		return fmt.Errorf("asr: unknown vendor %q", c.Vendor)
	}
}

// LLMConfig selects and parameterizes the chat-completion vendor.
type LLMConfig struct {
	Vendor string `json:"vendor"`
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

// Validate checks vendor-specific required fields.
func (c LLMConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("llm: api key is required")
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("llm: model is required")
	}
	switch c.Vendor {
	case LLMVendorOpenAI, LLMVendorGroq:
		return nil
	default:
		return fmt.Errorf("llm: unknown vendor %q", c.Vendor)
	}
}

// TTSConfig selects and parameterizes the speech-synthesis vendor.
type TTSConfig struct {
	Vendor  string `json:"vendor"`
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	VoiceID string `json:"voice_id"`
	// UserID is required for PlayHT only.
	UserID string `json:"user_id,omitempty"`
}

// Validate checks vendor-specific required fields.
func (c TTSConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("tts: api key is required")
	}
	if strings.TrimSpace(c.VoiceID) == "" {
		return fmt.Errorf("tts: voice id is required")
	}
	switch c.Vendor {
	case TTSVendorElevenLabs, TTSVendorOpenAI:
		return nil
	case TTSVendorPlayHT:
		if strings.TrimSpace(c.UserID) == "" {
			return fmt.Errorf("tts: user id is required for playht")
		}
		return nil
	default:
		return fmt.Errorf("tts: unknown vendor %q", c.Vendor)
	}
}

// SessionConfig holds all configuration for one voice session.
type SessionConfig struct {
	ASR ASRConfig `json:"asr"`
	LLM LLMConfig `json:"llm"`
	TTS TTSConfig `json:"tts"`

	// SystemPrompt seeds the conversation history.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// MaxDuration is the session deadline. Default: 60s.
	MaxDuration time.Duration `json:"max_duration"`

	// Audio is the capture format. Default: 16 kHz mono 16-bit.
	Audio AudioConfig `json:"audio"`

	// VAD configures the local voice activity detector used on the
	// batched ASR path.
	VAD VADConfig `json:"vad"`
}

// DefaultSessionConfig returns a SessionConfig with standard defaults.
// Vendor selections and API keys must still be filled in.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxDuration: 60 * time.Second,
		Audio:       DefaultAudioConfig(),
		VAD:         DefaultVADConfig(),
	}
}

// Validate checks the full configuration, including all vendor variants.
func (c SessionConfig) Validate() error {
	if err := c.ASR.Validate(); err != nil {
		return err
	}
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.TTS.Validate(); err != nil {
		return err
	}
	if c.MaxDuration <= 0 {
		return fmt.Errorf("max duration must be positive")
	}
	return nil
}

// AudioConfig specifies audio format parameters.
type AudioConfig struct {
	// SampleRate in Hz.
	SampleRate int `json:"sample_rate"`

	// Channels: 1 for mono, 2 for stereo.
	Channels int `json:"channels"`

	// BitsPerSample: typically 16 for PCM.
	BitsPerSample int `json:"bits_per_sample"`

	// FrameSize is the number of samples delivered per capture callback.
	FrameSize int `json:"frame_size"`
}

// DefaultAudioConfig returns the standard capture configuration.
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		SampleRate:    16000,
		Channels:      1,
		BitsPerSample: 16,
		FrameSize:     4096,
	}
}

// BytesPerSecond returns the audio byte rate.
func (c AudioConfig) BytesPerSecond() int {
	return c.SampleRate * c.Channels * (c.BitsPerSample / 8)
}

// DurationMs returns the duration in milliseconds for the given byte count.
func (c AudioConfig) DurationMs(bytes int) int {
	if c.BytesPerSecond() == 0 {
		return 0
	}
	return (bytes * 1000) / c.BytesPerSecond()
}

// BytesForDurationMs returns the byte count for the given duration in
// milliseconds.
func (c AudioConfig) BytesForDurationMs(ms int) int {
	return (c.BytesPerSecond() * ms) / 1000
}

// VADStrategy selects the local voice activity detection implementation.
type VADStrategy string

const (
	// VADStrategyEnergy uses RMS volume thresholding.
	VADStrategyEnergy VADStrategy = "energy"
	// VADStrategyNeural uses a pretrained speech/non-speech classifier.
	VADStrategyNeural VADStrategy = "neural"
)

// VADConfig configures local voice activity detection.
type VADConfig struct {
	// Strategy picks the detector implementation. Default: energy.
	Strategy VADStrategy `json:"strategy"`

	// EnergyThreshold is the RMS level above which audio counts as speech
	// for the energy strategy. Range 0.0 to 1.0. Default: 0.05.
	EnergyThreshold float64 `json:"energy_threshold"`

	// SilenceDuration is how long volume must stay below threshold before
	// speech is considered ended. Default: 1500ms.
	SilenceDuration time.Duration `json:"silence_duration"`

	// MinSpeechDuration discards utterances shorter than this as
	// misfires. Default: 300ms.
	MinSpeechDuration time.Duration `json:"min_speech_duration"`

	// EnterThreshold is the classifier probability above which the neural
	// strategy enters speech. Default: 0.5.
	EnterThreshold float64 `json:"enter_threshold"`

	// ExitThreshold is the classifier probability below which the neural
	// strategy exits speech. Lower than EnterThreshold so the boundary
	// does not toggle rapidly. Default: 0.35.
	ExitThreshold float64 `json:"exit_threshold"`

	// PreSpeechPadding is how much audio before speech onset to keep.
	// Default: 300ms.
	PreSpeechPadding time.Duration `json:"pre_speech_padding"`

	// ModelPath locates the classifier model file. Required for the
	// neural strategy, ignored by the energy strategy.
	ModelPath string `json:"model_path,omitempty"`
}

// DefaultVADConfig returns a VADConfig with standard defaults.
func DefaultVADConfig() VADConfig {
	return VADConfig{
		Strategy:          VADStrategyEnergy,
		EnergyThreshold:   0.05,
		SilenceDuration:   1500 * time.Millisecond,
		MinSpeechDuration: 300 * time.Millisecond,
		EnterThreshold:    0.5,
		ExitThreshold:     0.35,
		PreSpeechPadding:  300 * time.Millisecond,
	}
}
