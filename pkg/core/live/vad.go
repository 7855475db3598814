package live

// VADCallbacks receives voice activity notifications. All callbacks fire
// on the goroutine feeding Process.
type VADCallbacks struct {
	// OnSpeechStart fires when an utterance begins.
	OnSpeechStart func()

	// OnSpeechEnd delivers the complete utterance audio, including
	// pre-speech padding and trailing silence, as raw PCM.
	OnSpeechEnd func(pcm []byte)

	// OnMisfire fires instead of OnSpeechEnd when a detected segment was
	// shorter than the minimum speech duration. Misfires never reach the
	// orchestrator.
	OnMisfire func(durationMs int)
}

// VAD segments a continuous PCM stream into utterances. The two
// implementations (energy and neural) are interchangeable; the capture
// strategy holds one through this interface and never branches on which.
//
// Time is measured in sample time derived from byte counts, not wall
// clock, so detection is deterministic for a given input stream.
type VAD interface {
	// Start registers callbacks and arms the detector.
	Start(callbacks VADCallbacks)

	// Process feeds one captured PCM frame. Frames are dropped while
	// paused.
	Process(pcm []byte)

	// Pause discards the in-progress utterance, if any, and drops
	// subsequent frames until Resume.
	Pause()

	// Resume re-arms detection after Pause.
	Resume()

	// Stop disarms the detector. Idempotent.
	Stop()
}
