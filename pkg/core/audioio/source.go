package audioio

// Source delivers raw PCM audio frames from a capture device.
//
// Frames are 16-bit signed little-endian PCM in capture order. A source is
// exclusively owned by one consumer at a time: Start must not be called
// again until Stop has returned.
type Source interface {
	// Start begins capture and delivers frames to handler until Stop is
	// called. The handler runs on the source's delivery goroutine and must
	// not block.
	Start(handler func(pcm []byte)) error

	// Stop halts capture and releases the device. Idempotent.
	Stop() error
}
