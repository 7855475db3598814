package live

import (
	"bytes"
	"math"
	"testing"

	"github.com/go-audio/wav"
)

func TestCalculateRMSEnergy(t *testing.T) {
	if got := CalculateRMSEnergy(nil); got != 0 {
		t.Errorf("empty input energy = %v, want 0", got)
	}
	if got := CalculateRMSEnergy(make([]byte, 320)); got != 0 {
		t.Errorf("silence energy = %v, want 0", got)
	}

	// Full-scale square wave has RMS 1.0.
	loud := make([]byte, 320)
	for i := 0; i < len(loud); i += 2 {
		loud[i] = 0x00
		loud[i+1] = 0x80 // -32768
	}
	if got := CalculateRMSEnergy(loud); math.Abs(got-1.0) > 0.001 {
		t.Errorf("full scale energy = %v, want 1.0", got)
	}
}

func TestPCMFloatRoundTrip(t *testing.T) {
	pcm := []byte{0x00, 0x00, 0xFF, 0x7F, 0x01, 0x80, 0x00, 0x40}
	samples := PCMToFloat32(pcm)
	if len(samples) != 4 {
		t.Fatalf("sample count = %d, want 4", len(samples))
	}
	if samples[0] != 0 {
		t.Errorf("zero sample = %v", samples[0])
	}
	if samples[1] < 0.99 || samples[2] > -0.99 {
		t.Errorf("extremes wrong: %v %v", samples[1], samples[2])
	}

	back := Float32ToPCM(samples)
	if len(back) != len(pcm) {
		t.Fatalf("round trip length = %d, want %d", len(back), len(pcm))
	}
	for i := range samples {
		orig := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		got := int16(back[i*2]) | int16(back[i*2+1])<<8
		if diff := int(orig) - int(got); diff < -1 || diff > 1 {
			t.Errorf("sample %d: %d became %d", i, orig, got)
		}
	}
}

func TestFloat32ToPCMClamps(t *testing.T) {
	pcm := Float32ToPCM([]float32{2.0, -2.0})
	hi := int16(pcm[0]) | int16(pcm[1])<<8
	lo := int16(pcm[2]) | int16(pcm[3])<<8
	if hi != 32767 {
		t.Errorf("over-range clamped to %d, want 32767", hi)
	}
	if lo != -32767 {
		t.Errorf("under-range clamped to %d, want -32767", lo)
	}
}

func TestEncodeWAV(t *testing.T) {
	audio := DefaultAudioConfig()
	pcm := make([]byte, audio.BytesForDurationMs(100))
	for i := 0; i < len(pcm); i += 2 {
		pcm[i] = byte(i)
	}

	blob, err := EncodeWAV(pcm, audio)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	dec := wav.NewDecoder(bytes.NewReader(blob))
	dec.ReadInfo()
	if !dec.IsValidFile() {
		t.Fatal("encoder produced an invalid wav file")
	}
	if dec.SampleRate != uint32(audio.SampleRate) {
		t.Errorf("sample rate = %d, want %d", dec.SampleRate, audio.SampleRate)
	}
	if dec.NumChans != uint16(audio.Channels) {
		t.Errorf("channels = %d, want %d", dec.NumChans, audio.Channels)
	}
	if dec.BitDepth != uint16(audio.BitsPerSample) {
		t.Errorf("bit depth = %d, want %d", dec.BitDepth, audio.BitsPerSample)
	}
}

func TestAudioBuffer(t *testing.T) {
	audio := DefaultAudioConfig()
	buf := NewAudioBuffer(audio)

	buf.Write([]byte{1, 2, 3, 4})
	buf.Write([]byte{5, 6})
	got := buf.Read()
	if !bytes.Equal(got, []byte{1, 2, 3, 4, 5, 6}) {
		t.Errorf("buffer contents = %v", got)
	}

	buf.Clear()
	if len(buf.Read()) != 0 {
		t.Error("buffer not empty after clear")
	}

	buf.Write(make([]byte, audio.BytesForDurationMs(250)))
	if got := buf.DurationMs(); got != 250 {
		t.Errorf("duration = %dms, want 250", got)
	}
}

func TestRingBufferKeepsMostRecent(t *testing.T) {
	audio := DefaultAudioConfig()
	// 1ms of audio is 32 bytes.
	ring := NewRingBuffer(audio, 1)

	ring.Write([]byte{9, 9})
	got := ring.Read()
	if !bytes.Equal(got, []byte{9, 9}) {
		t.Errorf("partial fill = %v", got)
	}

	data := make([]byte, 40)
	for i := range data {
		data[i] = byte(i)
	}
	ring.Write(data)
	got = ring.Read()
	if len(got) != 32 {
		t.Fatalf("full ring = %d bytes, want 32", len(got))
	}
	// Chronological order: oldest surviving byte first.
	for i := range got {
		if got[i] != byte(i+8) {
			t.Fatalf("byte %d = %d, want %d", i, got[i], i+8)
		}
	}

	ring.Clear()
	if len(ring.Read()) != 0 {
		t.Error("ring not empty after clear")
	}
}

func TestAudioConfigMath(t *testing.T) {
	audio := DefaultAudioConfig()
	if got := audio.BytesPerSecond(); got != 32000 {
		t.Errorf("bytes per second = %d, want 32000", got)
	}
	if got := audio.DurationMs(32000); got != 1000 {
		t.Errorf("duration of one second = %dms", got)
	}
	if got := audio.BytesForDurationMs(500); got != 16000 {
		t.Errorf("bytes for 500ms = %d, want 16000", got)
	}
	if got := (AudioConfig{}).DurationMs(100); got != 0 {
		t.Errorf("zero-config duration = %d, want 0", got)
	}
}
