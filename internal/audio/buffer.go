package audio

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	// DefaultSampleRate is the rate every normalized input is converted to
	DefaultSampleRate = 16000

	// BytesPerSample for signed 16-bit little-endian PCM
	BytesPerSample = 2
)

// Buffer holds mono PCM16 audio ready for transcription.
// A Buffer is never modified after it is produced.
type Buffer struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// NewBuffer validates pcm and wraps it in a mono Buffer.
func NewBuffer(pcm []byte, sampleRate int) (Buffer, error) {
	if len(pcm)%BytesPerSample != 0 {
		return Buffer{}, fmt.Errorf("odd PCM16 length: %d bytes", len(pcm))
	}
	if sampleRate <= 0 {
		return Buffer{}, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	return Buffer{PCM: pcm, SampleRate: sampleRate, Channels: 1}, nil
}

// FromSamples packs int16 samples into a mono Buffer.
func FromSamples(samples []int16, sampleRate int) Buffer {
	pcm := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return Buffer{PCM: pcm, SampleRate: sampleRate, Channels: 1}
}

// Len returns the number of samples in the buffer.
func (b Buffer) Len() int {
	return len(b.PCM) / BytesPerSample
}

// Empty reports whether the buffer carries no audio.
func (b Buffer) Empty() bool {
	return len(b.PCM) == 0
}

// Sample returns the i-th sample.
func (b Buffer) Sample(i int) int16 {
	return int16(binary.LittleEndian.Uint16(b.PCM[i*2:]))
}

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Len()) * time.Second / time.Duration(b.SampleRate)
}

// Quantize converts a float sample in [-1, 1] to PCM16. Out-of-range input
// saturates at the int16 limits instead of wrapping around.
func Quantize(s float32) int16 {
	v := s * 32767
	switch {
	case v != v: // NaN
		return 0
	case v >= 32767:
		return 32767
	case v <= -32768:
		return -32768
	}
	return int16(v)
}

// QuantizeAll converts float samples to a mono Buffer.
func QuantizeAll(samples []float32, sampleRate int) Buffer {
	pcm := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(Quantize(s)))
	}
	return Buffer{PCM: pcm, SampleRate: sampleRate, Channels: 1}
}
